// Package basehdl chứa phần dùng chung cho các handler: parse body, response chuẩn, recover panic.
package basehdl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v3"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/api/middleware"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/global"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
)

// BaseHandler được embed vào các domain handler
type BaseHandler struct{}

// JSONResponse trả về JSON response với Content-Type: application/json; charset=utf-8
func JSONResponse(c fiber.Ctx, statusCode int, data interface{}) error {
	return middleware.JSONResponse(c, statusCode, data)
}

// SafeHandler bọc handler với recover để luôn trả về response cho client, kể cả khi panic.
func (h *BaseHandler) SafeHandler(c fiber.Ctx, handler func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithRequest(c).WithFields(map[string]interface{}{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Panic trong handler")

			err = h.HandleResponse(c, nil, common.NewError(
				common.ErrCodeInternalServer,
				fmt.Sprintf("Lỗi hệ thống không mong muốn: %v", r),
				common.StatusInternalServerError,
				nil,
			))
		}
	}()
	return handler()
}

// HandleResponse chuẩn hóa response: {code, message, data|details, status}
func (h *BaseHandler) HandleResponse(c fiber.Ctx, data interface{}, err error) error {
	if err != nil {
		return middleware.HandleErrorResponse(c, err)
	}
	return JSONResponse(c, common.StatusOK, fiber.Map{
		"code":    common.StatusOK,
		"message": common.MsgSuccess,
		"data":    data,
		"status":  "success",
	})
}

// ParseRequestBody parse JSON body (UseNumber) rồi validate bằng global validator.
// Body rỗng được coi là object rỗng.
func (h *BaseHandler) ParseRequestBody(c fiber.Ctx, input interface{}) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.UseNumber()
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(input); err != nil {
			return common.NewError(common.ErrCodeValidationFormat, common.MsgInvalidFormat, common.StatusBadRequest, err.Error())
		}
	}

	if err := global.GetValidator().Struct(input); err != nil {
		return common.NewError(common.ErrCodeValidationInput, common.MsgValidationError, common.StatusBadRequest, err.Error())
	}
	return nil
}
