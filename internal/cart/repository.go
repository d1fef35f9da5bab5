package cart

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	WithTx(q db.DBTX) Repository

	UpsertActiveCart(ctx context.Context, ownerKey string, accountID *uuid.UUID, sessionToken *string) (*Cart, error)
	GetActiveCartByOwner(ctx context.Context, ownerKey string) (*Cart, error)
	LockActiveCartByOwner(ctx context.Context, ownerKey string) (*Cart, error)
	GetCart(ctx context.Context, cartID string) (*Cart, error)
	LockCart(ctx context.Context, cartID string) (*Cart, error)
	SetStatus(ctx context.Context, cartID string, status Status) error

	GetCartByShareToken(ctx context.Context, token string) (*Cart, error)
	UpdateShare(ctx context.Context, cartID string, settings ShareSettings) (*Cart, error)
	DisableShare(ctx context.Context, cartID string) error

	GetItem(ctx context.Context, itemID string) (*Item, error)
	GetItemByVariant(ctx context.Context, cartID, variantID string) (*Item, error)
	ListItems(ctx context.Context, cartID string) ([]Item, error)
	ListLines(ctx context.Context, cartID string) ([]Line, error)
	UpsertItem(ctx context.Context, params upsertItemParams) (*Item, error)
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) (*Item, error)
	DeleteItem(ctx context.Context, itemID string) error
	DeleteItems(ctx context.Context, cartID string) (int64, error)
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

const cartColumns = `
	id,
	owner_key,
	account_id,
	session_token,
	status,
	share_token,
	share_enabled,
	share_expires_at,
	share_label,
	share_message,
	created_at,
	updated_at
`

const itemColumns = `
	id,
	cart_id,
	variant_id,
	quantity,
	price_cents_snapshot,
	added_note,
	created_at,
	updated_at
`

type scanner interface {
	Scan(dest ...any) error
}

func scanCart(row scanner) (*Cart, error) {
	c := &Cart{}
	err := row.Scan(
		&c.ID,
		&c.OwnerKey,
		&c.AccountID,
		&c.SessionToken,
		&c.Status,
		&c.ShareToken,
		&c.ShareEnabled,
		&c.ShareExpiresAt,
		&c.ShareLabel,
		&c.ShareMessage,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanItem(row scanner) (*Item, error) {
	it := &Item{}
	err := row.Scan(
		&it.ID,
		&it.CartID,
		&it.VariantID,
		&it.Quantity,
		&it.PriceCentsSnapshot,
		&it.AddedNote,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// UpsertActiveCart returns the owner's active cart, creating it if needed.
// The partial unique index on owner_key makes concurrent callers converge on
// one row.
func (r *repository) UpsertActiveCart(
	ctx context.Context,
	ownerKey string,
	accountID *uuid.UUID,
	sessionToken *string,
) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "UpsertActiveCart"),
	)

	query := `
	INSERT INTO carts (owner_key, account_id, session_token, status)
	VALUES ($1, $2, $3, 'active')
	ON CONFLICT (owner_key) WHERE status = 'active'
	DO UPDATE SET updated_at = NOW()
	RETURNING` + cartColumns

	c, err := scanCart(r.db.QueryRowContext(ctx, query, ownerKey, accountID, sessionToken))
	if err != nil {
		log.Error("failed to upsert active cart", zap.Error(err))
		return nil, err
	}

	log.Debug("active cart resolved", zap.String("cart_id", c.ID))
	return c, nil
}

func (r *repository) GetActiveCartByOwner(ctx context.Context, ownerKey string) (*Cart, error) {
	query := `SELECT` + cartColumns + `FROM carts WHERE owner_key = $1 AND status = 'active'`
	return r.getCart(ctx, "GetActiveCartByOwner", query, ownerKey)
}

func (r *repository) LockActiveCartByOwner(ctx context.Context, ownerKey string) (*Cart, error) {
	query := `SELECT` + cartColumns + `FROM carts WHERE owner_key = $1 AND status = 'active' FOR UPDATE`
	return r.getCart(ctx, "LockActiveCartByOwner", query, ownerKey)
}

func (r *repository) GetCart(ctx context.Context, cartID string) (*Cart, error) {
	query := `SELECT` + cartColumns + `FROM carts WHERE id = $1`
	return r.getCart(ctx, "GetCart", query, cartID)
}

// LockCart reads the cart with a row lock held until the surrounding
// transaction ends. Item mutations of one cart are serialized on it.
func (r *repository) LockCart(ctx context.Context, cartID string) (*Cart, error) {
	query := `SELECT` + cartColumns + `FROM carts WHERE id = $1 FOR UPDATE`
	return r.getCart(ctx, "LockCart", query, cartID)
}

func (r *repository) getCart(ctx context.Context, method, query string, arg any) (*Cart, error) {
	c, err := scanCart(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get cart",
			zap.String("layer", "repository"),
			zap.String("method", method),
			zap.Error(err),
		)
		return nil, err
	}
	return c, nil
}

func (r *repository) SetStatus(ctx context.Context, cartID string, status Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE carts SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, cartID,
	)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to set cart status",
			zap.String("layer", "repository"),
			zap.String("cart_id", cartID),
			zap.Error(err),
		)
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (r *repository) GetCartByShareToken(ctx context.Context, token string) (*Cart, error) {
	query := `SELECT` + cartColumns + `FROM carts WHERE share_token = $1`
	return r.getCart(ctx, "GetCartByShareToken", query, token)
}

// UpdateShare enables sharing with the given token and expiry. A unique
// violation on share_token is returned as is so the caller can retry with a
// fresh token.
func (r *repository) UpdateShare(ctx context.Context, cartID string, settings ShareSettings) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "UpdateShare"),
		zap.String("cart_id", cartID),
	)

	query := `
	UPDATE carts
	SET share_token = $1,
	    share_enabled = TRUE,
	    share_expires_at = $2,
	    share_label = $3,
	    share_message = $4,
	    updated_at = NOW()
	WHERE id = $5
	RETURNING` + cartColumns

	c, err := scanCart(r.db.QueryRowContext(ctx, query,
		settings.Token,
		settings.ExpiresAt,
		settings.Label,
		settings.Message,
		cartID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		log.Error("failed to update share settings", zap.Error(err))
		return nil, err
	}

	return c, nil
}

func (r *repository) DisableShare(ctx context.Context, cartID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE carts SET share_enabled = FALSE, updated_at = NOW() WHERE id = $1`,
		cartID,
	)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to disable sharing",
			zap.String("layer", "repository"),
			zap.String("cart_id", cartID),
			zap.Error(err),
		)
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (r *repository) GetItem(ctx context.Context, itemID string) (*Item, error) {
	query := `SELECT` + itemColumns + `FROM cart_items WHERE id = $1`

	it, err := scanItem(r.db.QueryRowContext(ctx, query, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get cart item",
			zap.String("layer", "repository"),
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return nil, err
	}
	return it, nil
}

// GetItemByVariant returns nil, nil when the variant is not in the cart.
func (r *repository) GetItemByVariant(ctx context.Context, cartID, variantID string) (*Item, error) {
	query := `SELECT` + itemColumns + `FROM cart_items WHERE cart_id = $1 AND variant_id = $2`

	it, err := scanItem(r.db.QueryRowContext(ctx, query, cartID, variantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get cart item by variant",
			zap.String("layer", "repository"),
			zap.String("cart_id", cartID),
			zap.String("variant_id", variantID),
			zap.Error(err),
		)
		return nil, err
	}
	return it, nil
}

func (r *repository) ListItems(ctx context.Context, cartID string) ([]Item, error) {
	query := `SELECT` + itemColumns + `FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list cart items",
			zap.String("layer", "repository"),
			zap.String("cart_id", cartID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (r *repository) ListLines(ctx context.Context, cartID string) ([]Line, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListLines"),
		zap.String("cart_id", cartID),
	)

	query := `
	SELECT
		ci.id,
		ci.variant_id,
		v.product_id,
		p.title,
		v.title,
		v.sku,
		v.image_url,
		ci.quantity,
		ci.price_cents_snapshot,
		v.price_cents,
		(v.is_active AND p.is_active),
		ci.added_note,
		ci.created_at
	FROM cart_items ci
	JOIN variants v ON v.id = ci.variant_id
	JOIN products p ON p.id = v.product_id
	WHERE ci.cart_id = $1
	ORDER BY ci.created_at, ci.id
	`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		log.Error("failed to query cart lines", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(
			&l.ItemID,
			&l.VariantID,
			&l.ProductID,
			&l.ProductTitle,
			&l.VariantTitle,
			&l.SKU,
			&l.ImageURL,
			&l.Quantity,
			&l.UnitPriceCents,
			&l.LivePriceCents,
			&l.IsActive,
			&l.Note,
			&l.AddedAt,
		); err != nil {
			log.Error("failed to scan cart line", zap.Error(err))
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, err
	}

	return lines, nil
}

// UpsertItem writes the merged quantity for (cart, variant). The caller holds
// the cart lock and has already computed the final quantity.
func (r *repository) UpsertItem(ctx context.Context, params upsertItemParams) (*Item, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "UpsertItem"),
		zap.String("cart_id", params.CartID),
		zap.String("variant_id", params.VariantID),
	)

	query := `
	INSERT INTO cart_items (
		cart_id,
		variant_id,
		quantity,
		price_cents_snapshot,
		added_note
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (cart_id, variant_id) DO UPDATE
	SET quantity = LEAST(99, EXCLUDED.quantity),
	    price_cents_snapshot = CASE WHEN $6 THEN EXCLUDED.price_cents_snapshot
	                                ELSE cart_items.price_cents_snapshot END,
	    added_note = COALESCE(cart_items.added_note, EXCLUDED.added_note),
	    updated_at = NOW()
	RETURNING` + itemColumns

	it, err := scanItem(r.db.QueryRowContext(ctx, query,
		params.CartID,
		params.VariantID,
		params.Quantity,
		params.PriceCents,
		params.Note,
		params.Reprice,
	))
	if err != nil {
		log.Error("failed to upsert cart item", zap.Error(err))
		return nil, err
	}

	log.Info("cart item saved",
		zap.String("cart_item_id", it.ID),
		zap.Int("quantity", it.Quantity),
	)
	return it, nil
}

func (r *repository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) (*Item, error) {
	query := `
	UPDATE cart_items
	SET quantity = $1,
	    updated_at = NOW()
	WHERE id = $2
	RETURNING` + itemColumns

	it, err := scanItem(r.db.QueryRowContext(ctx, query, quantity, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to update cart item quantity",
			zap.String("layer", "repository"),
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return nil, err
	}
	return it, nil
}

func (r *repository) DeleteItem(ctx context.Context, itemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *repository) DeleteItems(ctx context.Context, cartID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
