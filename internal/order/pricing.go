package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingRate struct {
	ID          string
	Name        string
	AmountCents int64
	// FreeOverCents waives the rate when the subtotal reaches it.
	FreeOverCents *int64
}

type TaxRate struct {
	ID    string
	State string
	// Rate is a fraction, 0.0725 for 7.25%.
	Rate decimal.Decimal
}

type PromoKind string

const (
	PromoPercentage   PromoKind = "percentage"
	PromoFixed        PromoKind = "fixed"
	PromoFreeShipping PromoKind = "free_shipping"
)

type Promo struct {
	ID   string
	Code string
	Kind PromoKind
	// Value is a percentage (15 for 15%) or an amount in cents.
	Value            decimal.Decimal
	MaxDiscountCents *int64
	MinSubtotalCents int64
	StartsAt         *time.Time
	EndsAt           *time.Time
	UsageLimit       *int
	UsageCount       int
	IsActive         bool
}

// Quote is the full price breakdown of an order.
type Quote struct {
	SubtotalCents int64
	ShippingCents int64
	TaxCents      int64
	DiscountCents int64
	TotalCents    int64
}

var hundred = decimal.NewFromInt(100)

func (r *ShippingRate) CostFor(subtotalCents int64) int64 {
	if r == nil {
		return 0
	}
	if r.FreeOverCents != nil && subtotalCents >= *r.FreeOverCents {
		return 0
	}
	return r.AmountCents
}

// Tax applies the summed rates to the taxable amount, rounded half away
// from zero to whole cents.
func Tax(rates []TaxRate, taxableCents int64) int64 {
	if taxableCents <= 0 || len(rates) == 0 {
		return 0
	}
	total := decimal.Zero
	for _, r := range rates {
		total = total.Add(r.Rate)
	}
	return decimal.NewFromInt(taxableCents).Mul(total).Round(0).IntPart()
}

func (p *Promo) Check(now time.Time, subtotalCents int64) error {
	switch {
	case !p.IsActive:
		return ErrPromoInactive
	case p.StartsAt != nil && now.Before(*p.StartsAt):
		return ErrPromoNotStarted
	case p.EndsAt != nil && !now.Before(*p.EndsAt):
		return ErrPromoExpired
	case p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit:
		return ErrPromoExhausted
	case subtotalCents < p.MinSubtotalCents:
		return ErrPromoMinSubtotal
	}
	return nil
}

// Discount is capped at MaxDiscountCents when set. It may exceed the order
// value; Total clamps the result.
func (p *Promo) Discount(subtotalCents, shippingCents int64) int64 {
	if p == nil {
		return 0
	}

	var d int64
	switch p.Kind {
	case PromoPercentage:
		d = decimal.NewFromInt(subtotalCents).Mul(p.Value).Div(hundred).Round(0).IntPart()
	case PromoFixed:
		d = p.Value.Round(0).IntPart()
	case PromoFreeShipping:
		d = shippingCents
	}

	if d < 0 {
		d = 0
	}
	if p.MaxDiscountCents != nil && d > *p.MaxDiscountCents {
		d = *p.MaxDiscountCents
	}
	return d
}

func Total(subtotal, shipping, tax, discount int64) int64 {
	t := subtotal + shipping + tax - discount
	if t < 0 {
		return 0
	}
	return t
}

func BuildQuote(subtotalCents int64, rate *ShippingRate, taxes []TaxRate, promo *Promo) Quote {
	q := Quote{SubtotalCents: subtotalCents}
	q.ShippingCents = rate.CostFor(subtotalCents)
	q.TaxCents = Tax(taxes, subtotalCents)
	q.DiscountCents = promo.Discount(subtotalCents, q.ShippingCents)
	q.TotalCents = Total(q.SubtotalCents, q.ShippingCents, q.TaxCents, q.DiscountCents)
	return q
}
