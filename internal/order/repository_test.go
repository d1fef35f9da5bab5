package order

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderRowColumns = []string{
	"id", "order_number", "owner_key", "account_id", "session_token", "cart_id",
	"status", "payment_status", "subtotal_cents", "shipping_cents", "tax_cents",
	"discount_cents", "total_cents", "currency", "promo_code", "shipping_rate_id",
	"shipping_address", "payment_reference", "requires_action", "failure_reason",
	"paid_at", "cancelled_at", "fulfilled_at", "refunded_at", "created_at", "updated_at",
}

func orderRow(id string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderRowColumns).AddRow(
		id, "ORD-1", "session:tok", nil, "tok", "cart-1",
		"pending", "pending", int64(2000), int64(500), int64(145),
		int64(0), int64(2645), "USD", nil, "rate-1",
		[]byte(`{"name":"Ada","state":"CA","city":"LA"}`), nil, false, nil,
		nil, nil, nil, nil, now, now,
	)
}

func TestRepository_GetShippingRate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)

	t.Run("Cheapest when empty", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, amount_cents, free_over_cents FROM shipping_rates WHERE is_active = TRUE AND \\(\\$1 = '' OR id::text = \\$1\\) ORDER BY amount_cents ASC LIMIT 1").
			WithArgs("").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "amount_cents", "free_over_cents"}).
				AddRow("rate-1", "Standard", int64(500), int64(5000)))

		rate, err := repo.GetShippingRate(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, "Standard", rate.Name)
		require.NotNil(t, rate.FreeOverCents)
		assert.Equal(t, int64(5000), *rate.FreeOverCents)
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery("FROM shipping_rates").
			WithArgs("rate-x").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetShippingRate(context.Background(), "rate-x")
		assert.ErrorIs(t, err, ErrShippingRateNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListTaxRates(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)

	mock.ExpectQuery("SELECT id, state, rate FROM tax_rates WHERE is_active = TRUE AND UPPER\\(state\\) = UPPER\\(\\$1\\)").
		WithArgs("ca").
		WillReturnRows(sqlmock.NewRows([]string{"id", "state", "rate"}).
			AddRow("tax-1", "CA", "0.0725").
			AddRow("tax-2", "CA", "0.01"))

	rates, err := repo.ListTaxRates(context.Background(), "ca")
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.True(t, rates[0].Rate.Equal(decimal.RequireFromString("0.0725")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetPromoByCode(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)
	cols := []string{
		"id", "code", "kind", "value", "max_discount_cents", "min_subtotal_cents",
		"starts_at", "ends_at", "usage_limit", "usage_count", "is_active",
	}

	t.Run("Found, code normalized", func(t *testing.T) {
		mock.ExpectQuery("FROM promo_codes WHERE UPPER\\(code\\) = \\$1").
			WithArgs("SPRING15").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("promo-1", "SPRING15", "percentage", "15", int64(1000), int64(0), nil, nil, 100, 3, true))

		p, err := repo.GetPromoByCode(context.Background(), " spring15 ")
		require.NoError(t, err)
		assert.Equal(t, PromoPercentage, p.Kind)
		assert.True(t, p.Value.Equal(decimal.NewFromInt(15)))
		require.NotNil(t, p.UsageLimit)
		assert.Equal(t, 100, *p.UsageLimit)
	})

	t.Run("Unknown", func(t *testing.T) {
		mock.ExpectQuery("FROM promo_codes").
			WithArgs("NOPE").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetPromoByCode(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrPromoNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_IncrementPromoUsage(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)

	mock.ExpectExec("UPDATE promo_codes SET usage_count = usage_count \\+ 1 WHERE id = \\$1 AND \\(usage_limit IS NULL OR usage_count < usage_limit\\)").
		WithArgs("promo-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.IncrementPromoUsage(context.Background(), "promo-1"))

	mock.ExpectExec("UPDATE promo_codes").
		WithArgs("promo-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.IncrementPromoUsage(context.Background(), "promo-1"), ErrPromoExhausted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertOrder(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)
	rateID := "rate-1"
	tok := "tok"
	o := &Order{
		OrderNumber:    "ORD-1",
		OwnerKey:       "session:tok",
		SessionToken:   &tok,
		CartID:         "cart-1",
		Status:         StatusPending,
		PaymentStatus:  PaymentPending,
		SubtotalCents:  2000,
		ShippingCents:  500,
		TaxCents:       145,
		TotalCents:     2645,
		Currency:       "USD",
		ShippingRateID: &rateID,
		Shipping:       ShippingInfo{Name: "Ada", City: "LA", State: "CA"},
	}

	mock.ExpectQuery("INSERT INTO orders .* RETURNING").
		WillReturnRows(orderRow("order-1"))

	saved, err := repo.InsertOrder(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, "order-1", saved.ID)
	assert.Equal(t, "Ada", saved.Shipping.Name)
	assert.Equal(t, StatusPending, saved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertOrder_SettledAtCreation(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)
	paidAt := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	o := &Order{
		OrderNumber:   "ORD-2",
		OwnerKey:      "session:tok",
		CartID:        "cart-1",
		Status:        StatusProcessing,
		PaymentStatus: PaymentPaid,
		Currency:      "USD",
		PaidAt:        &paidAt,
	}

	mock.ExpectQuery("INSERT INTO orders .*paid_at.* RETURNING").
		WithArgs(
			"ORD-2", "session:tok", sqlmock.AnyArg(), sqlmock.AnyArg(), "cart-1",
			"processing", "paid",
			int64(0), int64(0), int64(0), int64(0), int64(0),
			"USD", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			paidAt,
		).
		WillReturnRows(orderRow("order-2"))

	_, err = repo.InsertOrder(context.Background(), o)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertItems(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)
	items := []Item{
		{VariantID: "v1", ProductID: "p1", ProductTitle: "Mug", VariantTitle: "Blue", SKU: "MUG-B", Quantity: 2, UnitPriceCents: 1000, LineTotalCents: 2000, StockTracked: true},
		{VariantID: "v2", ProductID: "p2", ProductTitle: "Card", VariantTitle: "Digital", SKU: "GC", Quantity: 1, UnitPriceCents: 500, LineTotalCents: 500},
	}

	mock.ExpectExec("INSERT INTO order_items").
		WithArgs("order-1", "v1", "p1", "Mug", "Blue", "MUG-B", 2, int64(1000), int64(2000), true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs("order-1", "v2", "p2", "Card", "Digital", "GC", 1, int64(500), int64(500), false).
		WillReturnError(errors.New("fk violation"))

	err = repo.InsertItems(context.Background(), "order-1", items)
	assert.EqualError(t, err, "fk violation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetAndLockOrder(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)

	mock.ExpectQuery("SELECT .* FROM orders WHERE id = \\$1$").
		WithArgs("order-1").
		WillReturnRows(orderRow("order-1"))
	o, err := repo.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "session:tok", o.OwnerKey)

	mock.ExpectQuery("SELECT .* FROM orders WHERE id = \\$1 FOR UPDATE").
		WithArgs("order-1").
		WillReturnRows(orderRow("order-1"))
	_, err = repo.LockOrder(context.Background(), "order-1")
	require.NoError(t, err)

	mock.ExpectQuery("FROM orders WHERE id = \\$1").
		WithArgs("order-x").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetOrder(context.Background(), "order-x")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListItems(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)

	mock.ExpectQuery("FROM order_items WHERE order_id = \\$1 ORDER BY id").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "variant_id", "product_id", "product_title", "variant_title",
			"sku", "quantity", "unit_price_cents", "line_total_cents", "stock_tracked",
		}).AddRow("item-1", "order-1", "v1", "p1", "Mug", "Blue", "MUG-B", 2, int64(1000), int64(2000), true))

	items, err := repo.ListItems(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].StockTracked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListByOwner(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)

	mock.ExpectQuery("FROM orders WHERE owner_key = \\$1 ORDER BY created_at DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs("session:tok", 20, 0).
		WillReturnRows(orderRow("order-1"))

	orders, err := repo.ListByOwner(context.Background(), "session:tok", 20, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateState(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewRepository(sqlDB)
	paidAt := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	o := &Order{ID: "order-1", Status: StatusProcessing, PaymentStatus: PaymentPaid, PaidAt: &paidAt}

	mock.ExpectExec("UPDATE orders SET status = \\$2, payment_status = \\$3").
		WithArgs("order-1", StatusProcessing, PaymentPaid, nil, false, nil, &paidAt, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.UpdateState(context.Background(), o))

	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateState(context.Background(), o), ErrOrderNotFound)

	mock.ExpectExec("UPDATE orders SET payment_reference = \\$2").
		WithArgs("order-1", "auth_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.SetPaymentReference(context.Background(), "order-1", "auth_1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
