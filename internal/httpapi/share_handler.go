package httpapi

import (
	"net/http"

	"storefront-be/internal/identity"
	"storefront-be/internal/sharing"

	"github.com/labstack/echo/v4"
)

func viewContext(c echo.Context) sharing.ViewContext {
	req := c.Request()
	vc := sharing.ViewContext{
		IP:        c.RealIP(),
		UserAgent: req.UserAgent(),
		Referrer:  req.Referer(),
	}
	if id, err := owner(c); err == nil {
		vc.ViewerSessionID = id.Key()
	} else {
		vc.ViewerSessionID = req.Header.Get(identity.SessionTokenHeader)
	}
	return vc
}

// viewShared is public: no identity is required.
func (h *handlers) viewShared(c echo.Context) error {
	view, err := h.sharing.ViewShared(c.Request().Context(), c.Param("token"), viewContext(c))
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, view, "")
}

func (h *handlers) cloneShared(c echo.Context) error {
	id, err := owner(c)
	if err != nil {
		return HandleAppError(c, err)
	}

	res, err := h.sharing.CloneShared(c.Request().Context(), c.Param("token"), id, viewContext(c))
	if err != nil {
		return HandleAppError(c, err)
	}
	return Success(c, http.StatusOK, res, "Shared cart copied into your cart")
}
