package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"insiderlens/internal/service"
)

type MonitoringHandler struct {
	Svc *service.MonitoringService
}

func (h *MonitoringHandler) Register(group *gin.RouterGroup) {
	group.GET("/monitoring", h.snapshot)
}

// @Summary Queue health snapshot over a trailing window
// @Tags admin
// @Router /api/v1/admin/monitoring [get]
func (h *MonitoringHandler) snapshot(c *gin.Context) {
	if h.Svc == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	windowHours := intQuery(c, "window_hours", 24)
	if windowHours <= 0 || windowHours > 24*14 {
		windowHours = 24
	}
	snapshot, err := h.Svc.Snapshot(c.Request.Context(), time.Duration(windowHours)*time.Hour)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, snapshot, nil)
}
