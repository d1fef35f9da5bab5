// Package httpapi exposes the commerce core over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"storefront-be/internal/cart"
	"storefront-be/internal/identity"
	"storefront-be/internal/inventory"
	"storefront-be/internal/logger"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/savedcart"
	"storefront-be/internal/sharing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type CartService interface {
	GetActiveCart(ctx context.Context, id identity.Identity) (*cart.View, error)
	AddItem(ctx context.Context, id identity.Identity, params cart.AddItemParams) (*cart.Item, error)
	UpdateItemQuantity(ctx context.Context, id identity.Identity, itemID string, quantity int) (*cart.Item, error)
	RemoveItem(ctx context.Context, id identity.Identity, itemID string) error
	ClearCart(ctx context.Context, id identity.Identity, cartID string) error
}

type SavedCartService interface {
	Snapshot(ctx context.Context, id identity.Identity, params savedcart.SnapshotParams) (*savedcart.SavedCart, error)
	Restore(ctx context.Context, id identity.Identity, savedID string) (*savedcart.RestoreResult, error)
	List(ctx context.Context, id identity.Identity) ([]savedcart.SavedCart, error)
	Get(ctx context.Context, id identity.Identity, savedID string) (*savedcart.SavedCart, error)
	Delete(ctx context.Context, id identity.Identity, savedID string) error
}

type OrderService interface {
	CreateOrder(ctx context.Context, id identity.Identity, params order.CreateParams) (*order.CheckoutResult, error)
	RetryAuthorization(ctx context.Context, id identity.Identity, orderID string) (*order.CheckoutResult, error)
	CancelOrder(ctx context.Context, id identity.Identity, orderID string) (*order.Order, error)
	MarkFulfilled(ctx context.Context, orderID string) (*order.Order, error)
	GetOrder(ctx context.Context, id identity.Identity, orderID string) (*order.Order, error)
	ListOrders(ctx context.Context, id identity.Identity, limit, offset int) ([]order.Order, error)
}

type InventoryService interface {
	RecordMovement(ctx context.Context, in inventory.MovementInput) (*inventory.Level, error)
	GetLevel(ctx context.Context, variantID string) (*inventory.Level, error)
	ListMovements(ctx context.Context, variantID string, limit int) ([]inventory.Movement, error)
	Reconcile(ctx context.Context, variantID string) (*inventory.Reconciliation, error)
}

// Pinger reports database reachability for the health check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Resolver      *identity.Resolver
	Limiter       *middleware.Limiter
	ServiceSecret string
	// AllowOrigins defaults to any origin when empty.
	AllowOrigins []string

	Carts     CartService
	Sharing   sharing.Service
	Saved     SavedCartService
	Orders    OrderService
	Inventory InventoryService
	Webhook   http.Handler
	DB        Pinger
}

type handlers struct {
	carts     CartService
	sharing   sharing.Service
	saved     SavedCartService
	orders    OrderService
	inventory InventoryService
	db        Pinger
}

// New builds the echo server with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = errorHandler

	e.Use(echomw.Recover())
	e.Use(echo.WrapMiddleware(logger.RequestIDMiddleware))
	e.Use(echo.WrapMiddleware(logger.LoggingMiddleware))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			identity.SessionTokenHeader,
			logger.RequestIDHeader,
		},
		AllowOrigins: d.AllowOrigins,
	}))
	if d.Resolver != nil {
		e.Use(echo.WrapMiddleware(d.Resolver.Middleware))
	}
	e.Use(echo.WrapMiddleware(middleware.ServiceAuth(d.ServiceSecret)))
	if d.Limiter != nil {
		e.Use(echo.WrapMiddleware(d.Limiter.Middleware))
	}

	h := &handlers{
		carts:     d.Carts,
		sharing:   d.Sharing,
		saved:     d.Saved,
		orders:    d.Orders,
		inventory: d.Inventory,
		db:        d.DB,
	}

	e.GET("/health", h.health)

	c := e.Group("/cart")
	{
		c.GET("", h.getCart)
		c.POST("/items", h.addItem)
		c.PATCH("/items/:itemId", h.updateItem)
		c.DELETE("/items/:itemId", h.removeItem)
		c.DELETE("/:cartId/items", h.clearCart)
		c.POST("/:cartId/share", h.enableSharing)
		c.DELETE("/:cartId/share", h.disableSharing)
	}

	s := e.Group("/shared")
	{
		s.GET("/:token", h.viewShared)
		s.POST("/:token/clone", h.cloneShared)
	}

	sc := e.Group("/saved-carts")
	{
		sc.POST("", h.snapshot)
		sc.GET("", h.listSaved)
		sc.GET("/:id", h.getSaved)
		sc.DELETE("/:id", h.deleteSaved)
		sc.POST("/:id/restore", h.restore)
	}

	o := e.Group("/orders")
	{
		o.POST("", h.createOrder)
		o.GET("", h.listOrders)
		o.GET("/:id", h.getOrder)
		o.POST("/:id/authorize", h.retryAuthorization)
		o.POST("/:id/cancel", h.cancelOrder)
	}

	internal := e.Group("/internal", echo.WrapMiddleware(middleware.RequireInternal))
	{
		internal.POST("/orders/:id/fulfill", h.fulfillOrder)
		internal.POST("/inventory/movements", h.recordMovement)
		internal.GET("/inventory/:variantId", h.inventoryStatus)
	}

	if d.Webhook != nil {
		e.POST("/webhooks/payment", echo.WrapHandler(d.Webhook))
	}

	return e
}

func (h *handlers) health(c echo.Context) error {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			return Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database unreachable", "")
		}
	}
	return Success(c, http.StatusOK, map[string]string{"status": "ok"}, "")
}

// owner returns the caller identity resolved by the identity middleware.
func owner(c echo.Context) (identity.Identity, error) {
	return identity.FromRequestContext(c.Request().Context())
}
