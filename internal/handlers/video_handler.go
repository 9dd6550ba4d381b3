package handlers

import (
	"bytes"
	"net/http"

	"moviestream_backend/internal/dto"
	"moviestream_backend/internal/logger"
	"moviestream_backend/internal/player"
	"moviestream_backend/internal/services"
	"moviestream_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VideoHandler struct {
	*BaseHandler
	videoService   services.VideoService
	paymentService services.PaymentService
}

func NewVideoHandler(base *BaseHandler, videoService services.VideoService, paymentService services.PaymentService) *VideoHandler {
	return &VideoHandler{
		BaseHandler:    base,
		videoService:   videoService,
		paymentService: paymentService,
	}
}

func (h *VideoHandler) RegisterRoutes(r *gin.RouterGroup) {
	videos := r.Group("/videos")
	videos.Use(h.requireAuth)
	{
		videos.POST("/:movieId/purchase", h.Purchase)
		videos.POST("/:movieId/verify-purchase", h.VerifyPurchase)
		videos.GET("/:movieId/purchased", h.IsPurchased)
		videos.GET("/:movieId/stream", h.Stream)
	}

	// Токен в URL и есть авторизация
	r.GET("/v/play/:token", h.Play)
}

func (h *VideoHandler) Purchase(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	movieID, ok := h.movieIDParam(c)
	if !ok {
		return
	}

	session, err := h.paymentService.InitiateVideoPurchase(c.Request.Context(), userID, movieID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// VerifyPurchase - тело необязательно; paymentRef можно передать и в query.
func (h *VideoHandler) VerifyPurchase(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	movieID, ok := h.movieIDParam(c)
	if !ok {
		return
	}

	var req dto.VerifyPurchaseRequest
	if c.Request.ContentLength > 0 {
		if !h.BindAndValidate_JSON(c, &req) {
			return
		}
	}
	if req.PaymentRef == "" {
		req.PaymentRef = c.Query("paymentRef")
	}

	status, err := h.paymentService.VerifyVideoPurchase(c.Request.Context(), userID, movieID, req.PaymentRef)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *VideoHandler) IsPurchased(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	movieID, ok := h.movieIDParam(c)
	if !ok {
		return
	}

	purchased, err := h.paymentService.HasPurchased(c.Request.Context(), userID, movieID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"isPurchased": purchased})
}

func (h *VideoHandler) Stream(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	movieID, ok := h.movieIDParam(c)
	if !ok {
		return
	}

	resp, err := h.videoService.RequestStream(c.Request.Context(), dto.StreamRequest{
		UserID:    userID,
		MovieID:   movieID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}

// Play отдает HTML-страницу плеера. Исходный URL в разметку не попадает.
func (h *VideoHandler) Play(c *gin.Context) {
	setPlayerHeaders(c)

	target, err := h.videoService.ResolvePlayToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := player.Render(&buf, player.PageData{
		Title:    target.Movie.Title,
		EmbedURL: target.EmbedURL,
		Trusted:  target.Trusted,
		UserID:   target.UserID,
	}); err != nil {
		logger.CtxWithError(c.Request.Context(), "Failed to render player page", err)
		h.HandleServiceError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// movieIDParam - id фильма в БД имеет тип uuid; иное значение - сразу 404.
func (h *VideoHandler) movieIDParam(c *gin.Context) (string, bool) {
	movieID := c.Param("movieId")
	if uuid.Validate(movieID) != nil {
		h.HandleServiceError(c, apperrors.ErrMovieNotFound)
		return "", false
	}
	return movieID, true
}

func setPlayerHeaders(c *gin.Context) {
	c.Header("X-Frame-Options", "SAMEORIGIN")
	c.Header("Content-Security-Policy", "frame-ancestors 'self'")
	c.Header("Cache-Control", "no-store")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("X-Content-Type-Options", "nosniff")
}
