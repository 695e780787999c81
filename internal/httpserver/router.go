package httpserver

import (
	"context"
	"errors"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/monitoring"
	cartsvc "storefront-cart/internal/service/cart"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CartService is what the cart routes need from the service layer.
type CartService interface {
	Get(ctx context.Context, ownerID string) (*domain.Cart, error)
	AddItem(ctx context.Context, ownerID string, in cartsvc.AddItemInput) (*domain.CartItem, error)
	UpdateItem(ctx context.Context, ownerID string, itemID int64, in cartsvc.UpdateItemInput) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, ownerID string, itemID int64) error
}

// Deps carries the collaborators of the router.
type Deps struct {
	CartSvc     CartService
	CORSOrigins []string
	// Checks are probed by /readyz, keyed by the name reported on failure.
	Checks map[string]Checker
}

// buildRouter wires routes for the API.
func buildRouter(log *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.CartSvc == nil {
		return nil, errors.New("cart service required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	router := gin.New()
	router.Use(
		logger.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		monitoring.GinMiddleware(),
		cors.New(corsConfig(deps.CORSOrigins)),
	)

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Checks))
	router.GET("/metrics", monitoring.Handler())

	h := &cartHandler{svc: deps.CartSvc}
	carts := router.Group("/cart", ownerMiddleware())
	carts.GET("/me", h.get)
	carts.POST("/items", h.addItem)
	carts.PATCH("/items/:id", h.updateItem)
	carts.DELETE("/items/:id", h.removeItem)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", ownerHeader, "X-Request-ID", "Idempotency-Key"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
