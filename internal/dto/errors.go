package dto

// BaseError универсальный корневой формат ошибки
// Code — машинно-ориентированный код (snake_case)
// Message — краткое человеко-читаемое описание
// Fields — для ошибок по конкретным позициям или полям
type BaseError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError отдельная ошибка по конкретному полю
// Field: путь к полю (например: "items[1]" или "deliveryAddress.city")
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
}

// Машинные коды ошибок API.
const (
	CodeValidation              = "validation_error"
	CodeAgeVerificationRequired = "age_verification_required"
	CodeInsufficientStock       = "insufficient_stock"
	CodeProductUnavailable      = "product_unavailable"
	CodeCartEmpty               = "cart_empty"
	CodeOrderNotCancellable     = "order_not_cancellable"
	CodeInvalidStatusTransition = "invalid_status_transition"
	CodeDeliveryUnavailable     = "delivery_unavailable"
	CodePaymentUnavailable      = "payment_unavailable"
	CodeInvalidSignature        = "invalid_signature"
	CodeConflict                = "conflict"
	CodeNotFound                = "not_found"
	CodeForbidden               = "forbidden"
	CodeUnauthorized            = "unauthorized"
	CodeRateLimited             = "rate_limited"
	CodeInternal                = "internal_error"
)

func NewError(code, msg string) BaseError {
	return BaseError{Code: code, Message: msg}
}

// Helper-функции для быстрого создания
func NewValidationError(msg string, fields []FieldError) BaseError {
	return BaseError{Code: CodeValidation, Message: msg, Fields: fields}
}
func NewConflictError(msg string) BaseError {
	return BaseError{Code: CodeConflict, Message: msg}
}
func NewUnauthorizedError(msg string) BaseError {
	return BaseError{Code: CodeUnauthorized, Message: msg}
}
func NewForbiddenError(msg string) BaseError {
	return BaseError{Code: CodeForbidden, Message: msg}
}
func NewNotFoundError(msg string) BaseError {
	return BaseError{Code: CodeNotFound, Message: msg}
}
func NewRateLimitedError(msg string) BaseError {
	return BaseError{Code: CodeRateLimited, Message: msg}
}

// NewInternalError не раскрывает детали: они только в логе.
func NewInternalError() BaseError {
	return BaseError{Code: CodeInternal, Message: "internal server error"}
}
