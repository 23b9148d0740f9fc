package routes

import (
	"net/http"

	"restbucks/internal/adapter/http/handlers"

	"github.com/gin-gonic/gin"
)

const (
	PathOrders = "/orders"
	PathPing   = "/ping"
	PathHealth = "/health"
)

func addOrderRoutes(rg *gin.RouterGroup, orderHandler *handlers.OrderHandler, streamHandler *handlers.StreamHandler) {
	orders := rg.Group(PathOrders)
	{
		orders.POST("", orderHandler.CreateOrder)
		orders.GET("", orderHandler.ListOrders)
		if streamHandler != nil {
			orders.GET("/stream", streamHandler.StreamOrders)
		}
		orders.GET("/:id", orderHandler.GetOrder)
		orders.PUT("/:id", orderHandler.UpdateOrder)
		orders.PUT("/:id/payment", orderHandler.PayOrder)
		orders.PUT("/:id/status", orderHandler.AdvanceStatus)
		orders.DELETE("/:id", orderHandler.CancelOrder)
	}
}

func addPingRoutes(rg *gin.RouterGroup, healthHandler *handlers.HealthHandler) {
	rg.GET(PathPing, healthHandler.Ping)
}

func addHealthRoutes(r *gin.Engine, healthHandler *handlers.HealthHandler, metrics http.Handler) {
	r.GET(PathHealth, healthHandler.Health)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
}
