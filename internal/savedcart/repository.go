package savedcart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Insert(ctx context.Context, sc *SavedCart) (*SavedCart, error)
	Get(ctx context.Context, id string) (*SavedCart, error)
	ListByOwner(ctx context.Context, ownerKey string, now time.Time) ([]SavedCart, error)
	// Claim soft-deletes a live snapshot of ownerKey. It reports false when
	// the snapshot was already consumed, deleted or expired.
	Claim(ctx context.Context, id, ownerKey string, now time.Time) (bool, error)
	SoftDelete(ctx context.Context, id, ownerKey string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(db db.DBTX) Repository {
	return &repository{db: db}
}

const savedCartColumns = `
	id,
	owner_key,
	account_id,
	session_token,
	label,
	trigger,
	source_cart_id,
	items,
	item_count,
	subtotal_cents,
	created_at,
	expires_at,
	deleted_at
`

func scanSavedCart(row interface{ Scan(...any) error }) (*SavedCart, error) {
	sc := &SavedCart{}
	var raw []byte
	err := row.Scan(
		&sc.ID,
		&sc.OwnerKey,
		&sc.AccountID,
		&sc.SessionToken,
		&sc.Label,
		&sc.Trigger,
		&sc.SourceCartID,
		&raw,
		&sc.ItemCount,
		&sc.SubtotalCents,
		&sc.CreatedAt,
		&sc.ExpiresAt,
		&sc.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	sc.Items = []ItemSnapshot{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sc.Items); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

func (r *repository) Insert(ctx context.Context, sc *SavedCart) (*SavedCart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Insert"),
		zap.String("trigger", string(sc.Trigger)),
	)

	items, err := json.Marshal(sc.Items)
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO saved_carts (
		owner_key,
		account_id,
		session_token,
		label,
		trigger,
		source_cart_id,
		items,
		item_count,
		subtotal_cents,
		expires_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING` + savedCartColumns

	saved, err := scanSavedCart(r.db.QueryRowContext(ctx, query,
		sc.OwnerKey,
		sc.AccountID,
		sc.SessionToken,
		sc.Label,
		sc.Trigger,
		sc.SourceCartID,
		items,
		sc.ItemCount,
		sc.SubtotalCents,
		sc.ExpiresAt,
	))
	if err != nil {
		log.Error("failed to insert saved cart", zap.Error(err))
		return nil, err
	}

	log.Info("saved cart created", zap.String("saved_cart_id", saved.ID), zap.Int("items", len(saved.Items)))
	return saved, nil
}

func (r *repository) Get(ctx context.Context, id string) (*SavedCart, error) {
	query := `SELECT` + savedCartColumns + `FROM saved_carts WHERE id = $1`

	sc, err := scanSavedCart(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSavedCartNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get saved cart",
			zap.String("layer", "repository"),
			zap.String("saved_cart_id", id),
			zap.Error(err),
		)
		return nil, err
	}
	return sc, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerKey string, now time.Time) ([]SavedCart, error) {
	query := `SELECT` + savedCartColumns + `
	FROM saved_carts
	WHERE owner_key = $1
	  AND deleted_at IS NULL
	  AND expires_at > $2
	ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerKey, now)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list saved carts",
			zap.String("layer", "repository"),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	out := []SavedCart{}
	for rows.Next() {
		sc, err := scanSavedCart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

func (r *repository) Claim(ctx context.Context, id, ownerKey string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE saved_carts
	SET deleted_at = $3
	WHERE id = $1
	  AND owner_key = $2
	  AND deleted_at IS NULL
	  AND expires_at > $3`,
		id, ownerKey, now,
	)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to claim saved cart",
			zap.String("layer", "repository"),
			zap.String("saved_cart_id", id),
			zap.Error(err),
		)
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repository) SoftDelete(ctx context.Context, id, ownerKey string) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE saved_carts
	SET deleted_at = NOW()
	WHERE id = $1
	  AND owner_key = $2
	  AND deleted_at IS NULL`,
		id, ownerKey,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSavedCartNotFound
	}
	return nil
}

// PurgeExpired hard-deletes snapshots past their expiry, consumed or not.
func (r *repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_carts WHERE expires_at <= $1`, now)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to purge saved carts",
			zap.String("layer", "repository"),
			zap.Error(err),
		)
		return 0, err
	}
	return res.RowsAffected()
}
