package services

import (
	"time"

	"moviestream_backend/internal/email"
	"moviestream_backend/internal/lock"
	"moviestream_backend/internal/payment"
	"moviestream_backend/internal/repositories"
	"moviestream_backend/internal/videotoken"
)

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	PaymentService  PaymentService
	VideoService    VideoService
	SecurityService SecurityService
}

// Dependencies - все, что нужно сервисам; собирается в internal/app.
type Dependencies struct {
	Store    repositories.Store
	Provider payment.Provider
	Locker   lock.Locker
	Mailer   email.Sender
	Signer   *videotoken.Signer

	Payment PaymentSettings
	Limits  SecurityLimits
	Now     func() time.Time
}

func NewServiceContainer(deps Dependencies) *ServiceContainer {
	security := NewSecurityService(deps.Store, deps.Limits, deps.Now)
	return &ServiceContainer{
		PaymentService:  NewPaymentService(deps.Store, deps.Provider, deps.Locker, deps.Mailer, deps.Payment, deps.Now),
		VideoService:    NewVideoService(deps.Store, security, deps.Signer, deps.Now),
		SecurityService: security,
	}
}
