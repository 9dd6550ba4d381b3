package contextkeys

// Ключи gin.Context, которые выставляет AuthMiddleware и читают хэндлеры.
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// Заголовки запроса
const (
	RequestIDHeader        = "X-Request-ID"
	WebhookSignatureHeader = "X-Webhook-Signature"
)
