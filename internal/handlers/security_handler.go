package handlers

import (
	"net/http"

	"moviestream_backend/internal/dto"
	"moviestream_backend/internal/middleware"
	"moviestream_backend/internal/models"
	"moviestream_backend/internal/ratelimit"
	"moviestream_backend/internal/services"

	"github.com/gin-gonic/gin"
)

type SecurityHandler struct {
	*BaseHandler
	securityService services.SecurityService
	limiter         *ratelimit.Limiter
}

func NewSecurityHandler(base *BaseHandler, securityService services.SecurityService, limiter *ratelimit.Limiter) *SecurityHandler {
	return &SecurityHandler{
		BaseHandler:     base,
		securityService: securityService,
		limiter:         limiter,
	}
}

func (h *SecurityHandler) RegisterRoutes(r *gin.RouterGroup) {
	security := r.Group("/security")
	security.Use(h.requireAuth)
	{
		security.POST("/violation", middleware.RateLimitMiddleware(h.limiter), h.ReportViolation)
		security.GET("/ban-status", h.GetBanStatus)
		security.POST("/watch-time", h.RecordWatchTime)
	}
}

func (h *SecurityHandler) ReportViolation(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.ViolationRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	res, err := h.securityService.LogViolation(c.Request.Context(), dto.ViolationInput{
		UserID:        userID,
		ViolationType: models.ViolationType(req.ViolationType),
		Description:   req.Description,
		MovieID:       req.MovieID,
		IPAddress:     c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
		Metadata:      req.Metadata,
	})
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *SecurityHandler) GetBanStatus(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	ban, banned, err := h.securityService.CheckUserBan(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	status := dto.BanStatus{Banned: banned}
	if banned {
		status.Ban = dto.NewBanInfo(ban)
	}
	c.JSON(http.StatusOK, status)
}

func (h *SecurityHandler) RecordWatchTime(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.WatchTimeRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	status, err := h.securityService.RecordWatchTime(c.Request.Context(), userID, req.Seconds)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
