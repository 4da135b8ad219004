package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
)

// AdminTokenMiddleware yêu cầu header "Authorization: Bearer <token>" khớp với admin token.
// token rỗng = tắt xác thực (môi trường development).
func AdminTokenMiddleware(token string) fiber.Handler {
	if token == "" {
		logger.GetAppLogger().Warn("⚠️ [AUTH] ADMIN_TOKEN rỗng, các endpoint quản trị không yêu cầu xác thực")
	}
	expected := []byte(token)

	return func(c fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			logger.WithRequest(c).WithFields(logrus.Fields{
				"path":   c.Path(),
				"method": c.Method(),
			}).Warn("❌ [AUTH] Missing Authorization header")
			return HandleErrorResponse(c, common.ErrTokenMissing)
		}

		// Kiểm tra định dạng token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return HandleErrorResponse(c, common.ErrTokenInvalid)
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), expected) != 1 {
			logger.WithRequest(c).WithField("path", c.Path()).Warn("❌ [AUTH] Invalid admin token")
			return HandleErrorResponse(c, common.ErrTokenInvalid)
		}
		return c.Next()
	}
}
