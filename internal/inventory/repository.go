package inventory

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/apperror"
	"storefront-be/internal/db"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

type Repository interface {
	// WithTx returns a repository bound to q.
	WithTx(q db.DBTX) Repository

	AddToLevel(ctx context.Context, variantID string, delta int) (*Level, error)
	SubtractFromLevelGuarded(ctx context.Context, variantID string, qty int) (*Level, error)
	InsertMovement(ctx context.Context, in MovementInput) (*Movement, error)
	GetLevel(ctx context.Context, variantID string) (*Level, error)
	ListMovements(ctx context.Context, variantID string, limit int) ([]Movement, error)
	SumMovements(ctx context.Context, variantID string) (int, error)
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

// AddToLevel upserts the counter by delta, creating it on first movement.
func (r *repository) AddToLevel(ctx context.Context, variantID string, delta int) (*Level, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "AddToLevel"),
		zap.String("variant_id", variantID),
		zap.Int("delta", delta),
	)

	query := `
	INSERT INTO inventory_levels (variant_id, quantity, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (variant_id) DO UPDATE
	SET quantity = inventory_levels.quantity + EXCLUDED.quantity,
	    updated_at = NOW()
	RETURNING variant_id, quantity, updated_at
	`

	lvl := &Level{}
	err := r.db.QueryRowContext(ctx, query, variantID, delta).
		Scan(&lvl.VariantID, &lvl.Quantity, &lvl.UpdatedAt)
	if err != nil {
		log.Error("failed to update inventory level", zap.Error(err))
		return nil, err
	}

	return lvl, nil
}

// SubtractFromLevelGuarded lowers the counter by qty only if it stays
// non-negative. Otherwise it reports OUT_OF_STOCK with the remaining count.
func (r *repository) SubtractFromLevelGuarded(ctx context.Context, variantID string, qty int) (*Level, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "SubtractFromLevelGuarded"),
		zap.String("variant_id", variantID),
		zap.Int("qty", qty),
	)

	query := `
	UPDATE inventory_levels
	SET quantity = quantity - $2,
	    updated_at = NOW()
	WHERE variant_id = $1
	  AND quantity - $2 >= 0
	RETURNING variant_id, quantity, updated_at
	`

	lvl := &Level{}
	err := r.db.QueryRowContext(ctx, query, variantID, qty).
		Scan(&lvl.VariantID, &lvl.Quantity, &lvl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := r.GetLevel(ctx, variantID)
		if getErr != nil {
			return nil, getErr
		}
		log.Info("guarded decrement rejected", zap.Int("available", current.Quantity))
		return nil, apperror.OutOfStock(current.Quantity)
	}
	if err != nil {
		log.Error("failed to decrement inventory level", zap.Error(err))
		return nil, err
	}

	return lvl, nil
}

func (r *repository) InsertMovement(ctx context.Context, in MovementInput) (*Movement, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "InsertMovement"),
		zap.String("variant_id", in.VariantID),
		zap.String("reason", string(in.Reason)),
	)

	query := `
	INSERT INTO inventory_movements (
		variant_id,
		delta_qty,
		reason,
		reference_type,
		reference_id,
		note
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, variant_id, delta_qty, reason, reference_type, reference_id, note, created_at
	`

	m := &Movement{}
	err := r.db.QueryRowContext(ctx, query,
		in.VariantID,
		in.DeltaQty,
		in.Reason,
		utils.NilIfEmpty(in.ReferenceType),
		utils.NilIfEmpty(in.ReferenceID),
		utils.NilIfEmpty(in.Note),
	).Scan(
		&m.ID,
		&m.VariantID,
		&m.DeltaQty,
		&m.Reason,
		&m.ReferenceType,
		&m.ReferenceID,
		&m.Note,
		&m.CreatedAt,
	)
	if err != nil {
		log.Error("failed to insert movement", zap.Error(err))
		return nil, err
	}

	return m, nil
}

func (r *repository) GetLevel(ctx context.Context, variantID string) (*Level, error) {
	query := `
	SELECT variant_id, quantity, updated_at
	FROM inventory_levels
	WHERE variant_id = $1
	`

	lvl := &Level{}
	err := r.db.QueryRowContext(ctx, query, variantID).
		Scan(&lvl.VariantID, &lvl.Quantity, &lvl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// no movement yet
		return &Level{VariantID: variantID}, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get inventory level",
			zap.String("layer", "repository"),
			zap.String("variant_id", variantID),
			zap.Error(err),
		)
		return nil, err
	}

	return lvl, nil
}

func (r *repository) ListMovements(ctx context.Context, variantID string, limit int) ([]Movement, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListMovements"),
		zap.String("variant_id", variantID),
	)

	query := `
	SELECT id, variant_id, delta_qty, reason, reference_type, reference_id, note, created_at
	FROM inventory_movements
	WHERE variant_id = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, variantID, limit)
	if err != nil {
		log.Error("failed to query movements", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(
			&m.ID,
			&m.VariantID,
			&m.DeltaQty,
			&m.Reason,
			&m.ReferenceType,
			&m.ReferenceID,
			&m.Note,
			&m.CreatedAt,
		); err != nil {
			log.Error("failed to scan movement", zap.Error(err))
			return nil, err
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

func (r *repository) SumMovements(ctx context.Context, variantID string) (int, error) {
	var sum int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta_qty), 0) FROM inventory_movements WHERE variant_id = $1`,
		variantID,
	).Scan(&sum)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to sum movements",
			zap.String("layer", "repository"),
			zap.String("variant_id", variantID),
			zap.Error(err),
		)
		return 0, err
	}
	return sum, nil
}
