package httpapi

import (
	"net/http"

	"storefront-be/internal/apperror"
	"storefront-be/internal/cart"
	"storefront-be/internal/sharing"

	"github.com/labstack/echo/v4"
)

type addItemRequest struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note" validate:"max=500"`
}

// Quantity range is checked by the cart store so callers get
// INVALID_QUANTITY; below 1 removes the item.
type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type enableShareRequest struct {
	Label     string `json:"label" validate:"max=120"`
	Message   string `json:"message" validate:"max=1000"`
	DaysValid int    `json:"days_valid" validate:"min=0"`
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperror.New(apperror.CodeInvalidInput, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return apperror.New(apperror.CodeInvalidInput, "validation failed").WithDetails(err.Error())
	}
	return nil
}

func (h *handlers) getCart(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	view, err := h.carts.GetActiveCart(c.Request().Context(), id)
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, view, "")
}

func (h *handlers) addItem(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	var req addItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleAppError(c, err)
	}

	item, err := h.carts.AddItem(c.Request().Context(), id, cart.AddItemParams{
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Note:      req.Note,
	})
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusCreated, item, "Item added to cart")
}

func (h *handlers) updateItem(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	var req updateItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleAppError(c, err)
	}

	item, err := h.carts.UpdateItemQuantity(c.Request().Context(), id, c.Param("itemId"), *req.Quantity)
	if err != nil {
		return HandleAppError(c, err)
	}
	if item == nil {
		return Success(c, http.StatusOK, nil, "Item removed from cart")
	}
	return Success(c, http.StatusOK, item, "Quantity updated")
}

func (h *handlers) removeItem(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	if err := h.carts.RemoveItem(c.Request().Context(), id, c.Param("itemId")); err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, nil, "Item removed from cart")
}

func (h *handlers) clearCart(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	if err := h.carts.ClearCart(c.Request().Context(), id, c.Param("cartId")); err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, nil, "Cart cleared")
}

func (h *handlers) enableSharing(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	var req enableShareRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleAppError(c, err)
	}

	info, err := h.sharing.EnableSharing(c.Request().Context(), id, c.Param("cartId"), sharing.EnableParams{
		Label:     req.Label,
		Message:   req.Message,
		DaysValid: req.DaysValid,
	})
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, info, "Sharing enabled")
}

func (h *handlers) disableSharing(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	if err := h.sharing.DisableSharing(c.Request().Context(), id, c.Param("cartId")); err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, nil, "Sharing disabled")
}
