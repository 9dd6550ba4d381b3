package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/models"
	"moviestream_backend/internal/services"
	"moviestream_backend/pkg/apperrors"
	"moviestream_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
)

const (
	maxWebhookBody = 1 << 20
	defaultQRSize  = 256
	maxQRSize      = 1024
)

type PaymentHandler struct {
	*BaseHandler
	paymentService services.PaymentService
	// frontendURL - куда возвращается пользователь после оплаты
	frontendURL string
}

func NewPaymentHandler(base *BaseHandler, paymentService services.PaymentService, frontendURL string) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:    base,
		paymentService: paymentService,
		frontendURL:    strings.TrimRight(frontendURL, "/"),
	}
}

func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	// Внешние вызовы провайдера - без auth, проверяются подписью
	public := r.Group("/payments")
	{
		public.POST("/webhook", h.Webhook)
		public.GET("/callback", h.Callback)
		public.GET("/mock-checkout", h.MockCheckout)
	}

	payments := r.Group("/payments")
	payments.Use(h.requireAuth)
	{
		payments.POST("/initiate", h.InitiateSubscription)
		payments.POST("/verify/:paymentRef", h.VerifyPayment)
		payments.GET("/history", h.GetPaymentHistory)
		payments.GET("/:paymentRef/qr", h.GetPaymentQR)
	}

	subscriptions := r.Group("/subscriptions")
	subscriptions.Use(h.requireAuth)
	{
		subscriptions.GET("/me", h.GetSubscriptionStatus)
	}
}

// --- Создание и проверка оплаты ---

func (h *PaymentHandler) InitiateSubscription(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	session, err := h.paymentService.InitiateSubscriptionPayment(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	res, err := h.paymentService.VerifyPayment(c.Request.Context(), userID, c.Param("paymentRef"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) GetPaymentHistory(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	history, err := h.paymentService.GetPaymentHistory(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *PaymentHandler) GetPaymentQR(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	size := ParseQueryInt(c, "size", defaultQRSize)
	if size <= 0 || size > maxQRSize {
		size = defaultQRSize
	}

	png, err := h.paymentService.GetPaymentQR(c.Request.Context(), userID, c.Param("paymentRef"), size)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *PaymentHandler) GetSubscriptionStatus(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	status, err := h.paymentService.GetSubscriptionStatus(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// --- Вызовы провайдера ---

// Webhook - подпись проверяется по сырому телу запроса.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Failed to read request body"))
		return
	}

	res, err := h.paymentService.HandleWebhook(c.Request.Context(), body, c.GetHeader(contextkeys.WebhookSignatureHeader))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": res.Status})
}

// Callback всегда отвечает редиректом на страницу результата во фронтенде.
func (h *PaymentHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	res, err := h.paymentService.HandleCallback(ctx, c.Request.URL.Query())
	if err != nil {
		reason := "internal_error"
		if appErr, ok := apperrors.AsAppError(err); ok {
			reason = strings.ToLower(string(appErr.Code))
		}
		logger.CtxWarn(ctx, "Payment callback rejected", "reason", reason)
		c.Redirect(http.StatusFound, h.resultURL("error", reason))
		return
	}

	status := "pending"
	switch res.Status {
	case models.PaymentStatusCompleted:
		status = "success"
	case models.PaymentStatusFailed, models.PaymentStatusCancelled:
		status = "error"
	}
	c.Redirect(http.StatusFound, h.resultURL(status, ""))
}

// MockCheckout - страница "оплаты" mock-провайдера: сразу подписывает
// callback и отправляет пользователя на него.
func (h *PaymentHandler) MockCheckout(c *gin.Context) {
	callbackURL, err := h.paymentService.MockCheckout(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Redirect(http.StatusFound, callbackURL)
}

func (h *PaymentHandler) resultURL(status, reason string) string {
	q := url.Values{}
	q.Set("status", status)
	if reason != "" {
		q.Set("reason", reason)
	}
	return h.frontendURL + "/payment/result?" + q.Encode()
}
