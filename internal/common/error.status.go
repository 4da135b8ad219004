package common

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// HTTP Status Code Constants
const (
	StatusOK        = 200 // Thành công
	StatusCreated   = 201 // Tạo mới thành công
	StatusAccepted  = 202 // Yêu cầu được chấp nhận
	StatusNoContent = 204 // Thành công nhưng không có nội dung trả về

	StatusBadRequest      = 400 // Yêu cầu không hợp lệ
	StatusUnauthorized    = 401 // Chưa xác thực
	StatusForbidden       = 403 // Không có quyền truy cập
	StatusNotFound        = 404 // Không tìm thấy tài nguyên
	StatusConflict        = 409 // Xung đột dữ liệu
	StatusTooManyRequests = 429 // Quá nhiều yêu cầu

	StatusInternalServerError = 500 // Lỗi server
	StatusBadGateway          = 502 // Gateway không hợp lệ
	StatusServiceUnavailable  = 503 // Dịch vụ không khả dụng
	StatusGatewayTimeout      = 504 // Gateway timeout
)

// Response Messages
const (
	MsgSuccess = "Thao tác thành công"

	MsgBadRequest         = "Yêu cầu không hợp lệ"
	MsgUnauthorized       = "Vui lòng đăng nhập"
	MsgNotFound           = "Không tìm thấy tài nguyên"
	MsgConflict           = "Xung đột dữ liệu"
	MsgInternalError      = "Lỗi hệ thống"
	MsgServiceUnavailable = "Dịch vụ không khả dụng"

	MsgTokenMissing = "Thiếu token xác thực"
	MsgTokenInvalid = "Token không hợp lệ"

	MsgValidationError = "Dữ liệu không hợp lệ"
	MsgDatabaseError   = "Lỗi tương tác với cơ sở dữ liệu"
	MsgInvalidFormat   = "Định dạng dữ liệu không hợp lệ"
)

// ErrorCode định nghĩa mã lỗi chi tiết
type ErrorCode struct {
	Code        string // Mã lỗi (ví dụ: RECON_001)
	Category    string // Phân loại lỗi (ví dụ: Reconcile)
	SubCategory string // Phân loại con (ví dụ: Read)
	Description string // Mô tả chi tiết
}

// Định nghĩa các mã lỗi theo hệ thống phân cấp
var (
	// System Errors (SYS_xxx)
	ErrCodeInternalServer = ErrorCode{
		Code:        "SYS_001",
		Category:    "System",
		SubCategory: "Internal",
		Description: "Lỗi hệ thống nội bộ",
	}

	// Authentication Errors (AUTH_xxx)
	ErrCodeAuthToken = ErrorCode{
		Code:        "AUTH_001",
		Category:    "Authentication",
		SubCategory: "Token",
		Description: "Lỗi liên quan đến token",
	}

	// Validation Errors (VAL_xxx)
	ErrCodeValidationInput = ErrorCode{
		Code:        "VAL_001",
		Category:    "Validation",
		SubCategory: "Input",
		Description: "Lỗi dữ liệu đầu vào",
	}

	ErrCodeValidationFormat = ErrorCode{
		Code:        "VAL_002",
		Category:    "Validation",
		SubCategory: "Format",
		Description: "Lỗi định dạng dữ liệu",
	}

	// Database Errors (DB_xxx)
	ErrCodeDatabase = ErrorCode{
		Code:        "DB",
		Category:    "Database",
		SubCategory: "General",
		Description: "Lỗi cơ sở dữ liệu chung",
	}

	ErrCodeDatabaseConnection = ErrorCode{
		Code:        "DB_001",
		Category:    "Database",
		SubCategory: "Connection",
		Description: "Lỗi kết nối cơ sở dữ liệu",
	}

	ErrCodeDatabaseQuery = ErrorCode{
		Code:        "DB_002",
		Category:    "Database",
		SubCategory: "Query",
		Description: "Lỗi truy vấn dữ liệu",
	}

	// Reconcile Errors (RECON_xxx) - quy trình hợp nhất collection legacy -> master
	ErrCodeReconcile = ErrorCode{
		Code:        "RECON",
		Category:    "Reconcile",
		SubCategory: "General",
		Description: "Lỗi quy trình hợp nhất dữ liệu",
	}

	ErrCodeReconcileRead = ErrorCode{
		Code:        "RECON_001",
		Category:    "Reconcile",
		SubCategory: "Read",
		Description: "Không đọc được snapshot collection, run bị hủy",
	}

	ErrCodeReconcileJob = ErrorCode{
		Code:        "RECON_002",
		Category:    "Reconcile",
		SubCategory: "Job",
		Description: "Định nghĩa job không hợp lệ hoặc không tồn tại",
	}

	ErrCodeReconcileState = ErrorCode{
		Code:        "RECON_003",
		Category:    "Reconcile",
		SubCategory: "State",
		Description: "Job đang chạy hoặc trạng thái không cho phép",
	}
)

// Error định nghĩa cấu trúc lỗi chi tiết
type Error struct {
	Code       ErrorCode // Mã lỗi chi tiết
	Message    string    // Thông báo lỗi
	StatusCode int       // HTTP status code
	Details    any       // Thông tin chi tiết thêm về lỗi
}

// Error trả về message của lỗi
func (e *Error) Error() string {
	if cause, ok := e.Details.(error); ok && cause != nil {
		return e.Message + ": " + cause.Error()
	}
	return e.Message
}

// Unwrap trả về lỗi gốc nếu Details là error (hỗ trợ errors.Is/errors.As xuyên qua lớp bọc)
func (e *Error) Unwrap() error {
	if cause, ok := e.Details.(error); ok {
		return cause
	}
	return nil
}

// Is so sánh theo mã lỗi và message, không so sánh Details
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code.Code == t.Code.Code && e.Message == t.Message
}

// NewError tạo một error mới với đầy đủ thông tin
func NewError(code ErrorCode, message string, statusCode int, details any) error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// Custom errors
var (
	ErrTokenInvalid = NewError(ErrCodeAuthToken, MsgTokenInvalid, StatusUnauthorized, nil)
	ErrTokenMissing = NewError(ErrCodeAuthToken, MsgTokenMissing, StatusUnauthorized, nil)

	ErrInvalidInput  = NewError(ErrCodeValidationInput, "Dữ liệu đầu vào không hợp lệ", StatusBadRequest, nil)
	ErrInvalidFormat = NewError(ErrCodeValidationFormat, MsgInvalidFormat, StatusBadRequest, nil)
	ErrRequiredField = NewError(ErrCodeValidationInput, "Thiếu thông tin bắt buộc", StatusBadRequest, nil)

	ErrNotFound   = NewError(ErrCodeDatabaseQuery, "Không tìm thấy dữ liệu", StatusNotFound, nil)
	ErrDuplicate  = NewError(ErrCodeDatabaseQuery, "Dữ liệu đã tồn tại", StatusConflict, nil)
	ErrConnection = NewError(ErrCodeDatabaseConnection, "Lỗi kết nối cơ sở dữ liệu", StatusServiceUnavailable, nil)

	ErrReadSnapshot = NewError(ErrCodeReconcileRead, "Không đọc được dữ liệu collection", StatusBadGateway, nil)
	ErrJobNotFound  = NewError(ErrCodeReconcileJob, "Không tìm thấy job hợp nhất", StatusNotFound, nil)
	ErrJobInvalid   = NewError(ErrCodeReconcileJob, "Định nghĩa job hợp nhất không hợp lệ", StatusBadRequest, nil)
	ErrJobRunning   = NewError(ErrCodeReconcileState, "Job hợp nhất đang chạy", StatusConflict, nil)
)

// Wrap bọc lỗi gốc vào một lỗi hệ thống có sẵn, giữ nguyên mã lỗi và status code.
// errors.Is(result, base) và errors.Is(result, cause) đều trả về true.
func Wrap(base error, cause error) error {
	var b *Error
	if !errors.As(base, &b) {
		return cause
	}
	return &Error{
		Code:       b.Code,
		Message:    b.Message,
		StatusCode: b.StatusCode,
		Details:    cause,
	}
}

// MongoDB Error Messages
const (
	MsgMongoNetwork   = "Lỗi mạng khi kết nối MongoDB"
	MsgMongoTimeout   = "Kết nối MongoDB bị timeout"
	MsgMongoQuery     = "Lỗi truy vấn MongoDB"
	MsgMongoWrite     = "Lỗi ghi dữ liệu MongoDB"
	MsgMongoDuplicate = "Dữ liệu trùng lặp trong MongoDB"
	MsgMongoAuth      = "Tài khoản MongoDB không được xác thực hoặc không có quyền"
)

// Mã lỗi xác thực/phân quyền của MongoDB: Unauthorized, AuthenticationFailed
const (
	mongoCodeUnauthorized         = 13
	mongoCodeAuthenticationFailed = 18
)

// isMongoAuthCode kiểm tra mã lỗi server là lỗi xác thực/phân quyền
func isMongoAuthCode(code int) bool {
	return code == mongoCodeUnauthorized || code == mongoCodeAuthenticationFailed
}

// isMongoAuthError kiểm tra lỗi command/write do thiếu quyền hoặc xác thực thất bại
func isMongoAuthError(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && isMongoAuthCode(int(cmdErr.Code)) {
		return true
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if isMongoAuthCode(we.Code) {
				return true
			}
		}
		if writeErr.WriteConcernError != nil && isMongoAuthCode(writeErr.WriteConcernError.Code) {
			return true
		}
	}
	return false
}

// ConvertMongoError chuyển đổi lỗi MongoDB sang lỗi hệ thống
func ConvertMongoError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}

	if mongo.IsDuplicateKeyError(err) {
		return NewError(ErrCodeDatabaseQuery, MsgMongoDuplicate, StatusConflict, err)
	}
	if mongo.IsTimeout(err) {
		return NewError(ErrCodeDatabaseConnection, MsgMongoTimeout, StatusServiceUnavailable, err)
	}
	if mongo.IsNetworkError(err) {
		return NewError(ErrCodeDatabaseConnection, MsgMongoNetwork, StatusServiceUnavailable, err)
	}
	// Lỗi quyền áp dụng cho mọi thao tác ghi, không phải lỗi riêng của một bản ghi
	if isMongoAuthError(err) {
		return NewError(ErrCodeDatabaseConnection, MsgMongoAuth, StatusServiceUnavailable, err)
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return NewError(ErrCodeDatabaseQuery, MsgMongoQuery, StatusInternalServerError, err)
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		return NewError(ErrCodeDatabaseQuery, MsgMongoWrite, StatusInternalServerError, err)
	}

	// Nếu không tìm thấy lỗi cụ thể, trả về lỗi hệ thống chung
	return NewError(ErrCodeDatabase, MsgDatabaseError, StatusInternalServerError, err)
}
