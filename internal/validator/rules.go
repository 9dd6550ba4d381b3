package validator

import (
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/models"
	"moviestream_backend/internal/security"

	"github.com/go-playground/validator/v10"
)

// registerCustomRules регистрирует кастомные правила в переданном валидаторе.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// без правила приложение запускать нельзя
			logger.Fatal("failed to register custom validation tag", "tag", tag, "error", err)
		}
	}

	// 'violation_type': тип нарушения из таблицы политик
	mustRegister("violation_type", validateViolationType)

	// 'payment_status': статус из словаря провайдера
	mustRegister("payment_status", validatePaymentStatus)
}

func validateViolationType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // для пустых есть 'required'
	}
	return security.IsKnown(value)
}

func validatePaymentStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.PaymentStatus(value).IsValid()
}
