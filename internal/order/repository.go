package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Repository interface {
	WithTx(q db.DBTX) Repository

	// Pricing lookups
	GetShippingRate(ctx context.Context, rateID string) (*ShippingRate, error)
	ListTaxRates(ctx context.Context, state string) ([]TaxRate, error)
	GetPromoByCode(ctx context.Context, code string) (*Promo, error)
	IncrementPromoUsage(ctx context.Context, promoID string) error

	// Orders
	InsertOrder(ctx context.Context, o *Order) (*Order, error)
	InsertItems(ctx context.Context, orderID string, items []Item) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	LockOrder(ctx context.Context, orderID string) (*Order, error)
	ListItems(ctx context.Context, orderID string) ([]Item, error)
	ListByOwner(ctx context.Context, ownerKey string, limit, offset int) ([]Order, error)
	SetPaymentReference(ctx context.Context, orderID, reference string) error
	UpdateState(ctx context.Context, o *Order) error
}

type repository struct {
	db db.DBTX
}

func NewRepository(db db.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(q db.DBTX) Repository {
	return &repository{db: q}
}

// ----------------- Pricing -----------------

// GetShippingRate returns the given active rate, or the cheapest active
// rate when rateID is empty.
func (r *repository) GetShippingRate(ctx context.Context, rateID string) (*ShippingRate, error) {
	query := `
	SELECT id, name, amount_cents, free_over_cents
	FROM shipping_rates
	WHERE is_active = TRUE
	  AND ($1 = '' OR id::text = $1)
	ORDER BY amount_cents ASC
	LIMIT 1`

	var rate ShippingRate
	err := r.db.QueryRowContext(ctx, query, rateID).Scan(
		&rate.ID,
		&rate.Name,
		&rate.AmountCents,
		&rate.FreeOverCents,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShippingRateNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get shipping rate",
			zap.String("layer", "repository"),
			zap.String("rate_id", rateID),
			zap.Error(err),
		)
		return nil, err
	}
	return &rate, nil
}

func (r *repository) ListTaxRates(ctx context.Context, state string) ([]TaxRate, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, state, rate
	FROM tax_rates
	WHERE is_active = TRUE AND UPPER(state) = UPPER($1)
	ORDER BY id`, state)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list tax rates",
			zap.String("layer", "repository"),
			zap.String("state", state),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	var rates []TaxRate
	for rows.Next() {
		var t TaxRate
		var rate string
		if err := rows.Scan(&t.ID, &t.State, &rate); err != nil {
			return nil, err
		}
		if t.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		rates = append(rates, t)
	}
	return rates, rows.Err()
}

func (r *repository) GetPromoByCode(ctx context.Context, code string) (*Promo, error) {
	query := `
	SELECT
		id,
		code,
		kind,
		value,
		max_discount_cents,
		min_subtotal_cents,
		starts_at,
		ends_at,
		usage_limit,
		usage_count,
		is_active
	FROM promo_codes
	WHERE UPPER(code) = $1`

	var p Promo
	var value string
	err := r.db.QueryRowContext(ctx, query, strings.ToUpper(strings.TrimSpace(code))).Scan(
		&p.ID,
		&p.Code,
		&p.Kind,
		&value,
		&p.MaxDiscountCents,
		&p.MinSubtotalCents,
		&p.StartsAt,
		&p.EndsAt,
		&p.UsageLimit,
		&p.UsageCount,
		&p.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPromoNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get promo code",
			zap.String("layer", "repository"),
			zap.Error(err),
		)
		return nil, err
	}

	if p.Value, err = decimal.NewFromString(value); err != nil {
		return nil, err
	}
	return &p, nil
}

// IncrementPromoUsage consumes one use. The conditional update keeps
// concurrent checkouts from exceeding the limit.
func (r *repository) IncrementPromoUsage(ctx context.Context, promoID string) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE promo_codes
	SET usage_count = usage_count + 1
	WHERE id = $1
	  AND (usage_limit IS NULL OR usage_count < usage_limit)`, promoID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPromoExhausted
	}
	return nil
}

// ----------------- Orders -----------------

const orderColumns = `
	id,
	order_number,
	owner_key,
	account_id,
	session_token,
	cart_id,
	status,
	payment_status,
	subtotal_cents,
	shipping_cents,
	tax_cents,
	discount_cents,
	total_cents,
	currency,
	promo_code,
	shipping_rate_id,
	shipping_address,
	payment_reference,
	requires_action,
	failure_reason,
	paid_at,
	cancelled_at,
	fulfilled_at,
	refunded_at,
	created_at,
	updated_at
`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	o := &Order{}
	var shipping []byte
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.OwnerKey,
		&o.AccountID,
		&o.SessionToken,
		&o.CartID,
		&o.Status,
		&o.PaymentStatus,
		&o.SubtotalCents,
		&o.ShippingCents,
		&o.TaxCents,
		&o.DiscountCents,
		&o.TotalCents,
		&o.Currency,
		&o.PromoCode,
		&o.ShippingRateID,
		&shipping,
		&o.PaymentReference,
		&o.RequiresAction,
		&o.FailureReason,
		&o.PaidAt,
		&o.CancelledAt,
		&o.FulfilledAt,
		&o.RefundedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(shipping) > 0 {
		if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (r *repository) InsertOrder(ctx context.Context, o *Order) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "InsertOrder"),
		zap.String("order_number", o.OrderNumber),
	)

	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO orders (
		order_number,
		owner_key,
		account_id,
		session_token,
		cart_id,
		status,
		payment_status,
		subtotal_cents,
		shipping_cents,
		tax_cents,
		discount_cents,
		total_cents,
		currency,
		promo_code,
		shipping_rate_id,
		shipping_address,
		paid_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	RETURNING` + orderColumns

	saved, err := scanOrder(r.db.QueryRowContext(ctx, query,
		o.OrderNumber,
		o.OwnerKey,
		o.AccountID,
		o.SessionToken,
		o.CartID,
		o.Status,
		o.PaymentStatus,
		o.SubtotalCents,
		o.ShippingCents,
		o.TaxCents,
		o.DiscountCents,
		o.TotalCents,
		o.Currency,
		o.PromoCode,
		o.ShippingRateID,
		shipping,
		o.PaidAt,
	))
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return nil, err
	}

	log.Debug("order inserted", zap.String("order_id", saved.ID))
	return saved, nil
}

func (r *repository) InsertItems(ctx context.Context, orderID string, items []Item) error {
	for i, item := range items {
		_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_items (
			order_id, variant_id, product_id, product_title, variant_title,
			sku, quantity, unit_price_cents, line_total_cents, stock_tracked
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			orderID,
			item.VariantID,
			item.ProductID,
			item.ProductTitle,
			item.VariantTitle,
			item.SKU,
			item.Quantity,
			item.UnitPriceCents,
			item.LineTotalCents,
			item.StockTracked,
		)
		if err != nil {
			logger.FromCtx(ctx).Error("failed to insert order item",
				zap.String("layer", "repository"),
				zap.String("order_id", orderID),
				zap.Int("item_index", i),
				zap.String("variant_id", item.VariantID),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func (r *repository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return r.getOrder(ctx, `SELECT`+orderColumns+`FROM orders WHERE id = $1`, orderID)
}

func (r *repository) LockOrder(ctx context.Context, orderID string) (*Order, error) {
	return r.getOrder(ctx, `SELECT`+orderColumns+`FROM orders WHERE id = $1 FOR UPDATE`, orderID)
}

func (r *repository) getOrder(ctx context.Context, query, orderID string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get order",
			zap.String("layer", "repository"),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}
	return o, nil
}

func (r *repository) ListItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT
		id, order_id, variant_id, product_id, product_title, variant_title,
		sku, quantity, unit_price_cents, line_total_cents, stock_tracked
	FROM order_items
	WHERE order_id = $1
	ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.VariantID,
			&it.ProductID,
			&it.ProductTitle,
			&it.VariantTitle,
			&it.SKU,
			&it.Quantity,
			&it.UnitPriceCents,
			&it.LineTotalCents,
			&it.StockTracked,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) ListByOwner(ctx context.Context, ownerKey string, limit, offset int) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT`+orderColumns+`
	FROM orders
	WHERE owner_key = $1
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`, ownerKey, limit, offset)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list orders",
			zap.String("layer", "repository"),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *repository) SetPaymentReference(ctx context.Context, orderID, reference string) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE orders
	SET payment_reference = $2, updated_at = NOW()
	WHERE id = $1`, orderID, reference)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateState persists every mutable field of the order state machine.
func (r *repository) UpdateState(ctx context.Context, o *Order) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE orders
	SET status = $2,
	    payment_status = $3,
	    payment_reference = $4,
	    requires_action = $5,
	    failure_reason = $6,
	    paid_at = $7,
	    cancelled_at = $8,
	    fulfilled_at = $9,
	    refunded_at = $10,
	    updated_at = NOW()
	WHERE id = $1`,
		o.ID,
		o.Status,
		o.PaymentStatus,
		o.PaymentReference,
		o.RequiresAction,
		o.FailureReason,
		o.PaidAt,
		o.CancelledAt,
		o.FulfilledAt,
		o.RefundedAt,
	)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to update order state",
			zap.String("layer", "repository"),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
