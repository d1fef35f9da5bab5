package httpapi

import (
	"net/http"

	"storefront-be/internal/savedcart"

	"github.com/labstack/echo/v4"
)

type snapshotRequest struct {
	Label string `json:"label" validate:"max=120"`
}

func (h *handlers) snapshot(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	var req snapshotRequest
	if err := bindAndValidate(c, &req); err != nil {
		return HandleAppError(c, err)
	}

	saved, err := h.saved.Snapshot(c.Request().Context(), id, savedcart.SnapshotParams{
		Trigger: savedcart.TriggerManual,
		Label:   req.Label,
	})
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusCreated, saved, "Cart saved")
}

func (h *handlers) listSaved(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	list, err := h.saved.List(c.Request().Context(), id)
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, list, "")
}

func (h *handlers) getSaved(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	saved, err := h.saved.Get(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, saved, "")
}

func (h *handlers) deleteSaved(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	if err := h.saved.Delete(c.Request().Context(), id, c.Param("id")); err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, nil, "Saved cart deleted")
}

func (h *handlers) restore(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	res, err := h.saved.Restore(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, res, res.Message)
}
