package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Orders        *OrderHandler
	Payments      *PaymentHandler
	Webhooks      *WebhookHandler
	Notifications *NotificationHandler
}

// NewRouter assembles the gin engine: CORS, health probe, webhook ingress
// (unauthenticated, signature-checked per provider), and the authenticated
// API surface.
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/paystack", h.Webhooks.Paystack)
		webhooks.POST("/flutterwave", h.Webhooks.Flutterwave)
	}

	api := r.Group("/api", RequireUser())
	{
		orders := api.Group("/orders")
		{
			orders.POST("", h.Orders.Create)
			orders.GET("", h.Orders.List)
			orders.GET("/stats", h.Orders.Stats)
			orders.GET("/:id", h.Orders.Detail)
			orders.PUT("/:id/status", RequireStaff(), h.Orders.UpdateStatus)
			orders.POST("/:id/cancel", h.Orders.Cancel)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/initialize", h.Payments.Initialize)
			payments.POST("/verify", h.Payments.Verify)
			payments.GET("/transactions", h.Payments.List)
			payments.GET("/transactions/:reference", h.Payments.Detail)
			payments.POST("/transactions/:reference/retry", h.Payments.Retry)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.Notifications.List)
			notifications.GET("/unread-count", h.Notifications.UnreadCount)
			notifications.POST("/:id/read", h.Notifications.MarkRead)
			notifications.POST("/read-all", h.Notifications.MarkAllRead)
		}
	}

	return r
}
