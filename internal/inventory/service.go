package inventory

import (
	"context"

	"storefront-be/internal/apperror"
	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 500
)

// Service is the inventory ledger. Every stock change goes through
// RecordMovement or RecordInTx so the counter and the ledger move together.
type Service interface {
	RecordMovement(ctx context.Context, in MovementInput) (*Level, error)
	RecordInTx(ctx context.Context, q db.DBTX, in MovementInput, guard Guard) (*Level, error)
	GetLevel(ctx context.Context, variantID string) (*Level, error)
	ListMovements(ctx context.Context, variantID string, limit int) ([]Movement, error)
	Reconcile(ctx context.Context, variantID string) (*Reconciliation, error)
}

type service struct {
	repo Repository
	tx   db.Transactor
}

func NewService(repo Repository, tx db.Transactor) Service {
	return &service{repo: repo, tx: tx}
}

func (in MovementInput) Validate() error {
	if in.VariantID == "" {
		return ErrMissingID
	}
	if in.DeltaQty == 0 {
		return ErrZeroDelta
	}
	if !in.Reason.Valid() {
		return ErrInvalidReason
	}
	return nil
}

func (s *service) RecordMovement(ctx context.Context, in MovementInput) (*Level, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var level *Level
	err := s.tx.WithTx(ctx, func(q db.DBTX) error {
		var err error
		level, err = s.RecordInTx(ctx, q, in, GuardNone)
		return err
	})
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedRecordMovement, err)
	}

	return level, nil
}

// RecordInTx applies in within the caller's transaction q. The counter is
// updated first so a guarded decrement fails before anything is appended.
func (s *service) RecordInTx(ctx context.Context, q db.DBTX, in MovementInput, guard Guard) (*Level, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RecordInTx"),
		zap.String("variant_id", in.VariantID),
		zap.Int("delta", in.DeltaQty),
		zap.String("reason", string(in.Reason)),
	)

	if err := in.Validate(); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(q)

	var (
		level *Level
		err   error
	)
	if guard == GuardNonNegative && in.DeltaQty < 0 {
		level, err = repo.SubtractFromLevelGuarded(ctx, in.VariantID, -in.DeltaQty)
	} else {
		level, err = repo.AddToLevel(ctx, in.VariantID, in.DeltaQty)
	}
	if err != nil {
		return nil, err
	}

	if _, err := repo.InsertMovement(ctx, in); err != nil {
		return nil, err
	}

	log.Info("inventory movement recorded", zap.Int("quantity", level.Quantity))
	return level, nil
}

func (s *service) GetLevel(ctx context.Context, variantID string) (*Level, error) {
	if variantID == "" {
		return nil, ErrMissingID
	}
	level, err := s.repo.GetLevel(ctx, variantID)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, "failed to load inventory level", err)
	}
	return level, nil
}

func (s *service) ListMovements(ctx context.Context, variantID string, limit int) ([]Movement, error) {
	if variantID == "" {
		return nil, ErrMissingID
	}
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}

	movements, err := s.repo.ListMovements(ctx, variantID, limit)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, "failed to load movements", err)
	}
	return movements, nil
}

// Reconcile compares the materialized counter with the ledger sum. Drift
// means some write bypassed the ledger.
func (s *service) Reconcile(ctx context.Context, variantID string) (*Reconciliation, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Reconcile"),
		zap.String("variant_id", variantID),
	)

	if variantID == "" {
		return nil, ErrMissingID
	}

	var rec *Reconciliation
	err := s.tx.WithTx(ctx, func(q db.DBTX) error {
		repo := s.repo.WithTx(q)

		level, err := repo.GetLevel(ctx, variantID)
		if err != nil {
			return err
		}
		sum, err := repo.SumMovements(ctx, variantID)
		if err != nil {
			return err
		}

		rec = &Reconciliation{
			VariantID: variantID,
			Counter:   level.Quantity,
			LedgerSum: sum,
			Drift:     level.Quantity - sum,
		}
		rec.InSync = rec.Drift == 0
		return nil
	})
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, "failed to reconcile inventory", err)
	}

	if !rec.InSync {
		log.Error("inventory counter drifted from ledger",
			zap.Int("counter", rec.Counter),
			zap.Int("ledger_sum", rec.LedgerSum),
		)
	}

	return rec, nil
}
