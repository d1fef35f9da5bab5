package cart

import "storefront-be/internal/utils"

// buildView assembles the display model. Totals use the stored snapshot
// price; the live price only sets PriceChanged.
func buildView(c *Cart, lines []Line) *View {
	v := &View{Lines: []Line{}}
	if c == nil {
		return v
	}

	id := c.ID
	v.CartID = &id
	v.Status = c.Status
	v.ShareEnabled = c.ShareEnabled
	if c.ShareEnabled {
		v.ShareToken = c.ShareToken
		v.ShareLabel = c.ShareLabel
		v.ShareMessage = c.ShareMessage
		v.ShareExpires = utils.FormatTimePtr(c.ShareExpiresAt)
	}

	for _, l := range lines {
		l.LineTotalCents = l.UnitPriceCents * int64(l.Quantity)
		l.PriceChanged = l.LivePriceCents != l.UnitPriceCents
		v.SubtotalCents += l.LineTotalCents
		v.ItemCount += l.Quantity
		v.Lines = append(v.Lines, l)
	}

	return v
}
