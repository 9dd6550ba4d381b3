package apperrors

import (
	"net/http"
)

/*
Этот файл содержит предопределенные ошибки домена:
платежи, подписки, покупки видео, токены плеера и anti-piracy.
*/

// =========================================================================
// Фабричные ФУНКЦИИ
// =========================================================================

// ErrNotFound - фабрика для ошибки "не найдено" (404)
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrConflict - общая фабрика для конфликтов (409)
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// ErrProviderUnavailable - платежный провайдер не смог создать сессию.
func ErrProviderUnavailable(err error) *AppError {
	return Wrap(err, CodeExternalServiceError, "payment", "Payment provider unavailable", http.StatusBadGateway)
}

// =========================================================================
// Подписки и платежи
// =========================================================================

var ErrAlreadySubscribed = New(
	CodeAlreadySubscribed,
	"subscription",
	"User already has an active subscription",
	http.StatusConflict,
)

var ErrPlanNotFound = New(
	CodeNotFound,
	"subscription",
	"Subscription plan not found",
	http.StatusNotFound,
)

var ErrTransactionNotFound = New(
	CodeNotFound,
	"payment",
	"Payment transaction not found",
	http.StatusNotFound,
)

// ErrPaymentAccessDenied - транзакция принадлежит другому пользователю.
var ErrPaymentAccessDenied = New(
	CodeForbidden,
	"payment",
	"Payment belongs to another user",
	http.StatusForbidden,
)

// ErrInvalidPaymentAmount - сумма в callback не совпадает с сохраненной.
var ErrInvalidPaymentAmount = New(
	CodeAmountMismatch,
	"payment",
	"Invalid payment amount",
	http.StatusBadRequest,
)

var ErrMissingCallbackParams = New(
	CodeMissingParams,
	"payment",
	"Missing required callback parameters",
	http.StatusBadRequest,
)

var ErrCallbackExpired = New(
	CodeCallbackExpired,
	"payment",
	"Callback is too old",
	http.StatusBadRequest,
)

// ErrInvalidPaymentSignature - подпись webhook или callback не прошла проверку.
var ErrInvalidPaymentSignature = New(
	CodeInvalidSignature,
	"payment",
	"Invalid payment signature",
	http.StatusUnauthorized,
)

// =========================================================================
// Видео
// =========================================================================

var ErrMovieNotFound = New(
	CodeNotFound,
	"video",
	"Movie not found",
	http.StatusNotFound,
)

var ErrAlreadyPurchased = New(
	CodeAlreadyPurchased,
	"video",
	"Movie already purchased",
	http.StatusConflict,
)

var ErrNotEntitled = New(
	CodeNotEntitled,
	"video",
	"Please purchase to continue",
	http.StatusForbidden,
)

var ErrTokenMalformed = New(
	CodeInvalidToken,
	"video",
	"Invalid token",
	http.StatusForbidden,
)

var ErrTokenExpired = New(
	CodeTokenExpired,
	"video",
	"Token expired",
	http.StatusForbidden,
)

var ErrTokenSignature = New(
	CodeInvalidSignature,
	"video",
	"Invalid token",
	http.StatusForbidden,
)

// =========================================================================
// Anti-piracy
// =========================================================================

var ErrUserBanned = New(
	CodeUserBanned,
	"security",
	"User is banned",
	http.StatusForbidden,
)

var ErrPlayAttemptLimit = New(
	CodeLimitExceeded,
	"security",
	"Daily play attempt limit reached",
	http.StatusTooManyRequests,
)

var ErrWatchTimeLimit = New(
	CodeLimitExceeded,
	"security",
	"Daily watch time limit reached",
	http.StatusTooManyRequests,
)

var ErrUnknownViolationType = New(
	CodeValidationFailed,
	"security",
	"Unknown violation type",
	http.StatusBadRequest,
)

var ErrRateLimited = New(
	CodeRateLimited,
	"request",
	"Too many requests",
	http.StatusTooManyRequests,
)
