package httpapi

import (
	"net/http"
	"strconv"

	"storefront-be/internal/apperror"
	"storefront-be/internal/inventory"
	"storefront-be/internal/order"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

type shippingRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"max=40"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,len=2"`
}

type createOrderRequest struct {
	Shipping       shippingRequest `json:"shipping" validate:"required"`
	ShippingRateID string          `json:"shipping_rate_id"`
	PromoCode      string          `json:"promo_code" validate:"max=64"`
}

type movementRequest struct {
	VariantID string `json:"variant_id" validate:"required"`
	DeltaQty  int    `json:"delta_qty" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
	Note      string `json:"note" validate:"max=500"`
}

func (h *handlers) createOrder(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	var req createOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleAppError(c, err)
	}

	sh := req.Shipping
	res, err := h.orders.CreateOrder(c.Request().Context(), id, order.CreateParams{
		Shipping: order.ShippingInfo{
			Name:       sh.Name,
			Email:      sh.Email,
			Phone:      sh.Phone,
			Line1:      sh.Line1,
			Line2:      sh.Line2,
			City:       sh.City,
			State:      sh.State,
			PostalCode: sh.PostalCode,
			Country:    sh.Country,
		},
		ShippingRateID: req.ShippingRateID,
		PromoCode:      req.PromoCode,
	})
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusCreated, res, "Order created")
}

func (h *handlers) listOrders(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	orders, err := h.orders.ListOrders(c.Request().Context(), id, limit, offset)
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, orders, "")
}

func (h *handlers) getOrder(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	o, err := h.orders.GetOrder(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, o, "")
}

func (h *handlers) retryAuthorization(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	res, err := h.orders.RetryAuthorization(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, res, "Payment authorization created")
}

func (h *handlers) cancelOrder(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	o, err := h.orders.CancelOrder(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, o, "Order cancelled")
}

// ----------------- Internal -----------------

func (h *handlers) fulfillOrder(c echo.Context) error {
	o, err := h.orders.MarkFulfilled(c.Request().Context(), c.Param("id"))
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, o, "Order fulfilled")
}

func (h *handlers) recordMovement(c echo.Context) error {
	var req movementRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleAppError(c, err)
	}

	level, err := h.inventory.RecordMovement(c.Request().Context(), inventory.MovementInput{
		VariantID:     req.VariantID,
		DeltaQty:      req.DeltaQty,
		Reason:        inventory.Reason(req.Reason),
		ReferenceType: inventory.RefTypeManual,
		Note:          req.Note,
	})
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusCreated, level, "Movement recorded")
}

type inventoryStatus struct {
	Level          *inventory.Level          `json:"level"`
	Reconciliation *inventory.Reconciliation `json:"reconciliation"`
	Movements      []inventory.Movement      `json:"movements"`
}

func (h *handlers) inventoryStatus(c echo.Context) error {
	ctx := c.Request().Context()
	variantID := c.Param("variantId")
	if variantID == "" {
		return HandleAppError(c, apperror.ErrInvalidInput)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	var (
		level *inventory.Level
		rec   *inventory.Reconciliation
		moves []inventory.Movement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		level, err = h.inventory.GetLevel(gctx, variantID)
		return err
	})
	g.Go(func() (err error) {
		rec, err = h.inventory.Reconcile(gctx, variantID)
		return err
	})
	g.Go(func() (err error) {
		moves, err = h.inventory.ListMovements(gctx, variantID, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return HandleAppError(c, err)
	}

	return Success(c, http.StatusOK, inventoryStatus{
		Level:          level,
		Reconciliation: rec,
		Movements:      moves,
	}, "")
}
