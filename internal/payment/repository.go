package payment

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// Repository stores received gateway events. The unique (provider, event_id)
// pair makes redelivered events detectable inside the applying transaction.
type Repository interface {
	WithTx(q db.DBTX) Repository

	SaveEvent(ctx context.Context, e Event) (eventRowID int64, isDuplicate bool, err error)
	MarkEventProcessed(ctx context.Context, eventRowID int64, applied bool, note string) error
	MarkEventFailed(ctx context.Context, eventRowID int64, reason string) error
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

func (r *repository) SaveEvent(ctx context.Context, e Event) (int64, bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "SaveEvent"),
		zap.String("event_id", e.EventID),
		zap.String("event_type", string(e.Type)),
	)

	provider := e.Provider
	if provider == "" {
		provider = ProviderDefault
	}

	payload := e.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	const q = `
	INSERT INTO payment_events (
		provider,
		event_id,
		event_type,
		order_id,
		payload
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, event_id)
	DO NOTHING
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(ctx, q,
		provider,
		e.EventID,
		e.Type,
		e.OrderID,
		[]byte(payload),
	).Scan(&id)
	if err != nil {
		// Duplicate delivery: nothing inserted, nothing returned.
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("duplicate payment event")
			return 0, true, nil
		}
		log.Error("failed to save payment event", zap.Error(err))
		return 0, false, err
	}

	return id, false, nil
}

func (r *repository) MarkEventProcessed(ctx context.Context, eventRowID int64, applied bool, note string) error {
	const q = `
	UPDATE payment_events
	SET processed_at = NOW(),
	    applied = $2,
	    process_note = NULLIF($3, '')
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, eventRowID, applied, note)
	return err
}

func (r *repository) MarkEventFailed(ctx context.Context, eventRowID int64, reason string) error {
	const q = `
	UPDATE payment_events
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, eventRowID, reason)
	return err
}
