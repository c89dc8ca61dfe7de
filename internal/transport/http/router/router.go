package router

import (
	"context"
	"net/http"
	"time"

	"bottlestore-service/internal/service"
	"bottlestore-service/internal/transport/http/handlers"
	"bottlestore-service/internal/transport/http/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Deps struct {
	Auth      handlers.Authenticator
	Catalog   service.CatalogService
	Stock     handlers.StockAdjuster
	Carts     service.CartService
	Addresses service.AddressService
	Orders    service.OrderService
	Tokens    service.TokenProvider
	Verifier  service.WebhookVerifier
	Events    handlers.EventHandler
	Seen      service.RateLimiter

	AllowedOrigins []string
	// Ready проверяет зависимости для /ready (БД и т.п.)
	Ready func(ctx context.Context) error
}

func Router(d Deps, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: len(origins) != 1 || origins[0] != "*",
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c.Request.Context()); err != nil {
				log.Warn("Сервис не готов", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	authH := handlers.NewAuthHandler(d.Auth, log)
	productH := handlers.NewProductHandler(d.Catalog, d.Stock, log)
	cartH := handlers.NewCartHandler(d.Carts, log)
	addressH := handlers.NewAddressHandler(d.Addresses, log)
	orderH := handlers.NewOrderHandler(d.Orders, log)
	webhookH := handlers.NewWebhookHandler(d.Verifier, d.Events, d.Seen, log)

	authRequired := middleware.AuthRequired(d.Tokens, log)

	api := r.Group("/api/v1")
	{
		api.POST("/auth/register", authH.Register)
		api.POST("/auth/login", authH.Login)
		api.GET("/auth/me", authRequired, authH.Me)
		api.POST("/auth/verify-age", authRequired, authH.VerifyAge)

		public := api.Group("", middleware.OptionalAuth(d.Tokens, log))
		public.GET("/products", productH.List)
		public.GET("/products/featured", productH.Featured)
		public.GET("/products/:id", productH.Get)
		public.GET("/categories", productH.Categories)

		api.POST("/payments/webhook", webhookH.Handle)

		user := api.Group("", authRequired)
		user.GET("/cart", cartH.Get)
		user.DELETE("/cart", cartH.Clear)
		user.POST("/cart/items", cartH.AddItem)
		user.PUT("/cart/items/:id", cartH.UpdateItem)
		user.DELETE("/cart/items/:id", cartH.RemoveItem)

		user.GET("/addresses", addressH.List)
		user.POST("/addresses", addressH.Create)
		user.PUT("/addresses/:id", addressH.Update)
		user.DELETE("/addresses/:id", addressH.Delete)
		user.PUT("/addresses/:id/set-default", addressH.SetDefault)

		user.POST("/orders/checkout", orderH.Checkout)
		user.POST("/orders", orderH.Create)
		user.GET("/orders", orderH.List)
		user.GET("/orders/:id", orderH.Get)
		user.GET("/orders/:id/payment-status", orderH.PaymentStatus)
		user.POST("/orders/:id/cancel", orderH.Cancel)

		admin := api.Group("/admin", authRequired, middleware.AdminOnly())
		admin.GET("/products", productH.List)
		admin.POST("/products", productH.Create)
		admin.PATCH("/products/:id", productH.Update)
		admin.DELETE("/products/:id", productH.Delete)
		admin.POST("/products/:id/stock", productH.AdjustStock)

		admin.GET("/orders", orderH.List)
		admin.GET("/orders/:id", orderH.Get)
		admin.PATCH("/orders/:id/status", orderH.UpdateStatus)
		admin.POST("/orders/:id/cancel", orderH.Cancel)
		admin.POST("/orders/:id/reconcile", orderH.ResolveReconciliation)
	}

	return r
}
