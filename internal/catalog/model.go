package catalog

import "storefront-be/internal/apperror"

// Variant is the purchasable unit as seen by the commerce core. The catalog
// itself is managed elsewhere; this view is read-only.
type Variant struct {
	ID             string
	ProductID      string
	ProductTitle   string
	Title          string
	SKU            string
	PriceCents     int64
	IsActive       bool
	TrackInventory bool
	AllowBackorder bool
	StockQuantity  int
	ImageURL       *string
}

// Available reports the quantity that can still be sold, or -1 when the
// variant is not stock-limited.
func (v *Variant) Available() int {
	if !v.TrackInventory || v.AllowBackorder {
		return -1
	}
	if v.StockQuantity < 0 {
		return 0
	}
	return v.StockQuantity
}

// Validate checks that qty units of the variant may be placed in a cart.
func (v *Variant) Validate(qty int) error {
	if !v.IsActive {
		return apperror.ErrVariantInactive
	}
	if avail := v.Available(); avail >= 0 && qty > avail {
		return apperror.OutOfStock(avail)
	}
	return nil
}
