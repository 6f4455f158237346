package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vetrodar/cabinbooking/internal/weather"
)

type WeatherSyncer interface {
	Sync(ctx context.Context, spot string) (*weather.SyncStats, error)
}

type WeatherHandler struct {
	syncer     WeatherSyncer
	adminToken string
}

type syncRequest struct {
	Spot string `json:"spot"`
}

func NewWeatherHandler(syncer WeatherSyncer, adminToken string) *WeatherHandler {
	return &WeatherHandler{syncer: syncer, adminToken: adminToken}
}

func (h *WeatherHandler) Register(router *gin.RouterGroup) {
	router.POST("/weather/sync", h.sync)
}

func (h *WeatherHandler) sync(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if h.adminToken == "" || token == auth || token != h.adminToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Spot == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "spot is required"})
		return
	}

	stats, err := h.syncer.Sync(c.Request.Context(), req.Spot)
	if err != nil {
		if errors.Is(err, weather.ErrSyncDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, stats)
}
