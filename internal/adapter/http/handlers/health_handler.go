package handlers

import (
	"net/http"

	"restbucks/internal/usecase"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	usecase usecase.IOrderUseCase
}

func NewHealthHandler(uc usecase.IOrderUseCase) *HealthHandler {
	return &HealthHandler{usecase: uc}
}

// Health godoc
// @Summary      Dependency health
// @Description  Store, cache and resilience state. 503 only when the store is down.
// @Tags         health
// @Produce      json
// @Success      200  {object}  usecase.HealthReport
// @Failure      503  {object}  usecase.HealthReport
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	report := h.usecase.Health(c.Request.Context())
	status := http.StatusOK
	if report.Status == usecase.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// Ping godoc
// @Summary      Liveness
// @Tags         health
// @Success      200
// @Router       /ping [get]
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
