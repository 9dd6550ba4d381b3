package handlers

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	PaymentHandler  *PaymentHandler
	VideoHandler    *VideoHandler
	SecurityHandler *SecurityHandler
	HealthHandler   *HealthHandler
}
