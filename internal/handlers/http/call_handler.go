package http

import (
	"net/http"
	"time"

	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/domain"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/ports"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/core/services"
	"github.com/MustafaAldelaimi/video-calling-app-fs/internal/infrastructure/middleware"
	"github.com/MustafaAldelaimi/video-calling-app-fs/pkg/validation"

	"github.com/gin-gonic/gin"
)

type CallHandler struct {
	callService    ports.CallService
	qualityService ports.QualityService
	qualityRepo    ports.QualityMetricsRepository
	authService    services.AuthService
}

func NewCallHandler(
	callService ports.CallService,
	qualityService ports.QualityService,
	qualityRepo ports.QualityMetricsRepository,
	authService services.AuthService,
) *CallHandler {
	return &CallHandler{
		callService:    callService,
		qualityService: qualityService,
		qualityRepo:    qualityRepo,
		authService:    authService,
	}
}

func (h *CallHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(h.authService))
	{
		api.POST("/calls", h.CreateCall)
		api.GET("/calls", h.ListCalls)

		member := api.Group("/calls/:id")
		member.Use(middleware.CallAccessMiddleware(h.authService))
		{
			member.GET("", h.GetCall)
			member.POST("/join", h.JoinCall)
			member.POST("/leave", h.LeaveCall)
			member.POST("/end", h.EndCall)
			member.POST("/quality", h.SubmitQualityReport)
			member.GET("/quality", h.GetQualityReports)
		}

		api.GET("/quality/profile", h.GetQualityProfile)
	}
}

func (h *CallHandler) CreateCall(c *gin.Context) {
	var req struct {
		Type domain.CallType `json:"type" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Type {
	case domain.CallTypeAudio, domain.CallTypeVideo, domain.CallTypeScreenShare:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call type"})
		return
	}

	userID, _ := c.Get("user_id")
	initiator := domain.ParticipantID(userID.(domain.UserID))

	call, err := h.callService.CreateCall(c.Request.Context(), initiator, req.Type)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"call": call,
	})
}

func (h *CallHandler) GetCall(c *gin.Context) {
	callID := domain.CallID(c.Param("id"))

	call, err := h.callService.GetCall(c.Request.Context(), callID)
	if err != nil {
		if err == domain.ErrCallNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"call": call,
	})
}

func (h *CallHandler) ListCalls(c *gin.Context) {
	calls, err := h.callService.ListActiveCalls(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"calls": calls,
	})
}

func (h *CallHandler) JoinCall(c *gin.Context) {
	callID := domain.CallID(c.Param("id"))

	var req struct {
		DisplayName string `json:"display_name" binding:"max=100"`
	}
	// Body is optional; joining without a profile is fine.
	c.ShouldBindJSON(&req)

	if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("user_id")
	participant := domain.Participant{
		ID:          domain.ParticipantID(userID.(domain.UserID)),
		DisplayName: req.DisplayName,
	}

	err := h.callService.JoinCall(c.Request.Context(), callID, participant)
	if err != nil {
		switch err {
		case domain.ErrCallNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		case domain.ErrCallEnded:
			c.JSON(http.StatusConflict, gin.H{"error": "call has ended"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "joined",
	})
}

func (h *CallHandler) LeaveCall(c *gin.Context) {
	callID := domain.CallID(c.Param("id"))

	userID, _ := c.Get("user_id")
	participantID := domain.ParticipantID(userID.(domain.UserID))

	err := h.callService.LeaveCall(c.Request.Context(), callID, participantID)
	if err != nil {
		switch err {
		case domain.ErrCallNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		case domain.ErrParticipantNotFound:
			c.JSON(http.StatusConflict, gin.H{"error": "not an active participant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "left",
	})
}

func (h *CallHandler) EndCall(c *gin.Context) {
	callID := domain.CallID(c.Param("id"))

	err := h.callService.EndCall(c.Request.Context(), callID)
	if err != nil {
		if err == domain.ErrCallNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ended",
	})
}

func (h *CallHandler) SubmitQualityReport(c *gin.Context) {
	callID := domain.CallID(c.Param("id"))

	var req struct {
		BandwidthKbps int                 `json:"bandwidth_kbps" binding:"min=0"`
		LatencyMs     int                 `json:"latency_ms" binding:"min=0"`
		PacketLoss    float64             `json:"packet_loss" binding:"min=0,max=1"`
		VideoQuality  domain.QualityLevel `json:"video_quality" binding:"required"`
		AudioQuality  domain.QualityLevel `json:"audio_quality" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("user_id")
	report := &domain.CallQualityReport{
		CallID:        callID,
		ParticipantID: domain.ParticipantID(userID.(domain.UserID)),
		Timestamp:     time.Now(),
		BandwidthKbps: req.BandwidthKbps,
		LatencyMs:     req.LatencyMs,
		PacketLoss:    req.PacketLoss,
		VideoQuality:  req.VideoQuality,
		AudioQuality:  req.AudioQuality,
	}

	if err := h.qualityService.RecordReport(c.Request.Context(), report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "recorded",
	})
}

func (h *CallHandler) GetQualityReports(c *gin.Context) {
	callID := domain.CallID(c.Param("id"))

	reports, err := h.qualityRepo.ListByCall(c.Request.Context(), callID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
	})
}

// GetQualityProfile maps measured conditions to a quality level and its
// capture constraints.
func (h *CallHandler) GetQualityProfile(c *gin.Context) {
	var req struct {
		BandwidthKbps   int     `form:"bandwidth_kbps" binding:"min=0"`
		CPUUsagePercent float64 `form:"cpu_percent" binding:"min=0,max=100"`
	}

	if err := c.BindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level := h.qualityService.OptimalQuality(req.BandwidthKbps, req.CPUUsagePercent)
	constraints := h.qualityService.ConstraintsFor(level)

	c.JSON(http.StatusOK, gin.H{
		"quality":     level,
		"constraints": constraints,
	})
}
