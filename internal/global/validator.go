package global

import (
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate là validator dùng chung (job definitions, request body)
	Validate     *validator.Validate
	validateOnce sync.Once

	collectionNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,119}$`)
	fieldNameRegex      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]{0,119}$`)
)

// InitValidator khởi tạo và đăng ký các custom validator
func InitValidator() {
	validateOnce.Do(func() {
		Validate = validator.New()

		// Đăng ký các custom validator
		_ = Validate.RegisterValidation("collection_name", validateCollectionName)
		_ = Validate.RegisterValidation("field_name", validateFieldName)
		_ = Validate.RegisterValidation("no_xss", validateNoXSS)
	})
}

// GetValidator trả về validator dùng chung, khởi tạo nếu chưa có
func GetValidator() *validator.Validate {
	InitValidator()
	return Validate
}

// validateCollectionName kiểm tra tên collection (Machine, EmployeeMasterDatabase, reconcile_runs)
func validateCollectionName(fl validator.FieldLevel) bool {
	return collectionNameRegex.MatchString(fl.Field().String())
}

// validateFieldName kiểm tra tên field. Không cho phép "$" để tránh operator injection vào MongoDB.
func validateFieldName(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Rỗng = optional, dùng kèm required nếu bắt buộc
	}
	return fieldNameRegex.MatchString(value)
}

// validateNoXSS kiểm tra XSS
func validateNoXSS(fl validator.FieldLevel) bool {
	value := strings.ToLower(fl.Field().String())
	dangerousPatterns := []string{
		"<script",
		"javascript:",
		"onerror=",
		"onload=",
		"eval(",
		"<iframe",
	}
	for _, pattern := range dangerousPatterns {
		if strings.Contains(value, pattern) {
			return false
		}
	}
	return true
}
