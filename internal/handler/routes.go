package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/middleware"
)

// Handlers is every HTTP handler the server mounts
type Handlers struct {
	Health      *HealthHandler
	Auth        *AuthHandler
	Webhook     *WebhookHandler
	WS          *WSHandler
	Analytics   *AnalyticsHandler
	Insights    *InsightsHandler
	Customers   *CustomerHandler
	Products    *ProductHandler
	Orders      *OrderHandler
	Branches    *BranchHandler
	Events      *EventHandler
	Tenants     *TenantHandler
	DeadLetters *DeadLetterHandler
}

// RegisterRoutes mounts the API. Every route except health, auth, webhooks and the
// websocket upgrade requires a bearer token.
func RegisterRoutes(e *echo.Echo, h Handlers, tokens middleware.TokenValidator) {
	e.GET("/health", h.Health.Health)

	authGroup := e.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)

	e.POST("/webhooks", h.Webhook.Receive)
	e.GET("/ws", h.WS.Connect)

	api := e.Group("", middleware.JWTAuth(tokens))

	analytics := api.Group("/analytics")
	analytics.GET("/overview", h.Analytics.Overview)
	analytics.GET("/revenue-trends", h.Analytics.RevenueTrends)
	analytics.GET("/top-customers", h.Analytics.TopCustomers)
	analytics.GET("/branch-performance", h.Analytics.BranchPerformance)
	analytics.GET("/abandonment", h.Analytics.Abandonment)
	analytics.GET("/customer-segments", h.Analytics.CustomerSegments)
	analytics.GET("/global-overview", h.Analytics.GlobalOverview, middleware.RequireAdmin)

	insights := api.Group("/insights")
	insights.GET("/orders", h.Insights.Orders)
	insights.GET("/customers", h.Insights.Customers)
	insights.GET("/products", h.Insights.Products)
	insights.GET("/events", h.Insights.Events)

	customers := api.Group("/customers")
	customers.GET("", h.Customers.List)
	customers.POST("", h.Customers.Create)
	customers.GET("/:id", h.Customers.Get)
	customers.PUT("/:id", h.Customers.Update)
	customers.DELETE("/:id", h.Customers.Delete)

	products := api.Group("/products")
	products.GET("", h.Products.List)
	products.POST("", h.Products.Create)
	products.GET("/:id", h.Products.Get)
	products.PUT("/:id", h.Products.Update)
	products.DELETE("/:id", h.Products.Delete)

	orders := api.Group("/orders")
	orders.GET("", h.Orders.List)
	orders.POST("", h.Orders.Create)
	orders.GET("/:id", h.Orders.Get)
	orders.PUT("/:id", h.Orders.Update)
	orders.DELETE("/:id", h.Orders.Delete)

	api.GET("/branches", h.Branches.List)
	api.POST("/branches", h.Branches.Create)
	api.GET("/events", h.Events.List)

	tenants := api.Group("/tenants", middleware.RequireAdmin)
	tenants.GET("", h.Tenants.List)
	tenants.POST("", h.Tenants.Create)
	tenants.POST("/:id/sync", h.Tenants.Sync)

	admin := api.Group("/admin", middleware.RequireAdmin)
	admin.GET("/dead-letters", h.DeadLetters.List)
	admin.POST("/dead-letters/:id/replay", h.DeadLetters.Replay)
	admin.DELETE("/dead-letters/:id", h.DeadLetters.Delete)
}
