package apperrors

// ErrorCode - тип для кодов ошибок
type ErrorCode string

// Общие, не-доменные коды ошибок
const (
	// Системные и неизвестные ошибки
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// Общие ошибки бизнес-логики
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeLimitExceeded    ErrorCode = "LIMIT_EXCEEDED"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"

	// Аутентификация и Авторизация
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	CodeTokenExpired     ErrorCode = "TOKEN_EXPIRED"
	CodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"

	// Платежи и доступ к видео
	CodeAlreadySubscribed ErrorCode = "ALREADY_SUBSCRIBED"
	CodeAlreadyPurchased  ErrorCode = "ALREADY_PURCHASED"
	CodeNotEntitled       ErrorCode = "NOT_ENTITLED"
	CodeAmountMismatch    ErrorCode = "AMOUNT_MISMATCH"
	CodeCallbackExpired   ErrorCode = "CALLBACK_EXPIRED"
	CodeMissingParams     ErrorCode = "MISSING_PARAMS"

	// Anti-piracy
	CodeUserBanned ErrorCode = "USER_BANNED"
)
