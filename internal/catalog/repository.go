package catalog

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	GetVariant(ctx context.Context, variantID string) (*Variant, error)
	GetVariants(ctx context.Context, variantIDs []string) (map[string]*Variant, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(db db.DBTX) Repository {
	return &repository{db: db}
}

const variantSelect = `
	SELECT
		v.id,
		v.product_id,
		p.title,
		v.title,
		v.sku,
		v.price_cents,
		(v.is_active AND p.is_active),
		v.track_inventory,
		v.allow_backorder,
		COALESCE(il.quantity, 0),
		v.image_url
	FROM variants v
	JOIN products p ON p.id = v.product_id
	LEFT JOIN inventory_levels il ON il.variant_id = v.id
`

func scanVariant(row interface{ Scan(...any) error }) (*Variant, error) {
	v := &Variant{}
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.ProductTitle,
		&v.Title,
		&v.SKU,
		&v.PriceCents,
		&v.IsActive,
		&v.TrackInventory,
		&v.AllowBackorder,
		&v.StockQuantity,
		&v.ImageURL,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *repository) GetVariant(ctx context.Context, variantID string) (*Variant, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetVariant"),
		zap.String("variant_id", variantID),
	)

	v, err := scanVariant(r.db.QueryRowContext(ctx, variantSelect+`WHERE v.id = $1`, variantID))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("variant not found")
		return nil, ErrVariantNotFound
	}
	if err != nil {
		log.Error("failed to get variant", zap.Error(err))
		return nil, err
	}

	return v, nil
}

// GetVariants loads several variants at once. Missing ids are simply absent
// from the result.
func (r *repository) GetVariants(ctx context.Context, variantIDs []string) (map[string]*Variant, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetVariants"),
		zap.Int("count", len(variantIDs)),
	)

	out := make(map[string]*Variant, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, variantSelect+`WHERE v.id = ANY($1)`, pq.Array(variantIDs))
	if err != nil {
		log.Error("failed to query variants", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			log.Error("failed to scan variant", zap.Error(err))
			return nil, err
		}
		out[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, err
	}

	return out, nil
}
