package savedcart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/cart"
	"storefront-be/internal/catalog"
	"storefront-be/internal/identity"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

const (
	DefaultTTL = 30 * 24 * time.Hour

	preRestoreTimeout = 3 * time.Second
)

// Carts is the part of the cart store snapshots read from and restore into.
type Carts interface {
	GetActiveCart(ctx context.Context, id identity.Identity) (*cart.View, error)
	GetOrCreateActiveCart(ctx context.Context, id identity.Identity) (*cart.Cart, error)
	MergeItem(ctx context.Context, cartID string, params cart.MergeParams) (*cart.MergeResult, error)
}

type Service interface {
	// Snapshot copies the identity's active cart. A pre-restore snapshot of
	// an empty cart is skipped and returns (nil, nil).
	Snapshot(ctx context.Context, id identity.Identity, params SnapshotParams) (*SavedCart, error)
	Restore(ctx context.Context, id identity.Identity, savedID string) (*RestoreResult, error)

	List(ctx context.Context, id identity.Identity) ([]SavedCart, error)
	Get(ctx context.Context, id identity.Identity, savedID string) (*SavedCart, error)
	Delete(ctx context.Context, id identity.Identity, savedID string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type service struct {
	repo     Repository
	carts    Carts
	variants catalog.Repository
	ttl      time.Duration

	now func() time.Time
}

func NewService(repo Repository, carts Carts, variants catalog.Repository, ttl time.Duration) Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &service{
		repo:     repo,
		carts:    carts,
		variants: variants,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *service) Snapshot(ctx context.Context, id identity.Identity, params SnapshotParams) (*SavedCart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Snapshot"),
	)

	if err := id.Validate(); err != nil {
		return nil, err
	}
	if params.Trigger == "" {
		params.Trigger = TriggerManual
	}
	if !params.Trigger.Valid() {
		return nil, ErrInvalidTrigger
	}

	view, err := s.carts.GetActiveCart(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(view.Lines) == 0 && params.Trigger == TriggerPreRestore {
		log.Debug("pre-restore snapshot skipped, cart is empty")
		return nil, nil
	}

	sc := &SavedCart{
		OwnerKey:      id.Key(),
		AccountID:     id.AccountID,
		SessionToken:  id.SessionToken,
		Label:         utils.NilIfEmpty(params.Label),
		Trigger:       params.Trigger,
		SourceCartID:  view.CartID,
		Items:         make([]ItemSnapshot, 0, len(view.Lines)),
		ItemCount:     view.ItemCount,
		SubtotalCents: view.SubtotalCents,
		ExpiresAt:     s.now().Add(s.ttl),
	}
	for _, l := range view.Lines {
		sc.Items = append(sc.Items, ItemSnapshot{
			VariantID:    l.VariantID,
			ProductID:    l.ProductID,
			ProductTitle: l.ProductTitle,
			VariantTitle: l.VariantTitle,
			SKU:          l.SKU,
			ImageURL:     l.ImageURL,
			Quantity:     l.Quantity,
			PriceCents:   l.UnitPriceCents,
			Note:         l.Note,
		})
	}

	saved, err := s.repo.Insert(ctx, sc)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedSnapshot, err)
	}
	return saved, nil
}

// loadOwned returns a live snapshot of id. Snapshots of other owners are
// reported as missing.
func (s *service) loadOwned(ctx context.Context, id identity.Identity, savedID string) (*SavedCart, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	sc, err := s.repo.Get(ctx, savedID)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedLoad, err)
	}
	if sc.OwnerKey != id.Key() || sc.DeletedAt != nil {
		return nil, ErrSavedCartNotFound
	}
	if !sc.ExpiresAt.After(s.now()) {
		return nil, ErrSavedCartExpired
	}
	return sc, nil
}

// Restore merges a snapshot back into the identity's active cart. The
// snapshot is claimed before anything is merged, so it applies at most once.
func (s *service) Restore(ctx context.Context, id identity.Identity, savedID string) (*RestoreResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Restore"),
		zap.String("saved_cart_id", savedID),
	)

	sc, err := s.loadOwned(ctx, id, savedID)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{Warnings: []string{}}
	if len(sc.Items) == 0 {
		result.Message = "This saved cart is empty, nothing to restore."
		return result, nil
	}

	target, err := s.carts.GetOrCreateActiveCart(ctx, id)
	if err != nil {
		return nil, err
	}
	result.CartID = target.ID

	ids := make([]string, 0, len(sc.Items))
	for _, it := range sc.Items {
		ids = append(ids, it.VariantID)
	}
	variants, err := s.variants.GetVariants(ctx, ids)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedRestore, err)
	}

	claimed, err := s.repo.Claim(ctx, savedID, id.Key(), s.now())
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedRestore, err)
	}
	if !claimed {
		log.Info("saved cart already consumed")
		return nil, ErrSavedCartNotFound
	}

	if pre, err := s.preRestoreSnapshot(ctx, id, sc); err != nil {
		log.Warn("pre-restore snapshot failed", zap.Error(err))
		result.Warnings = append(result.Warnings, "could not back up your current cart before restoring")
	} else if pre != nil {
		result.PreRestoreSnapshotID = &pre.ID
	}

	for i, it := range sc.Items {
		if err := ctx.Err(); err != nil {
			log.Warn("restore interrupted", zap.Error(err))
			stopEarly(result, sc.Items[i:])
			break
		}

		v, ok := variants[it.VariantID]
		if !ok || !v.IsActive {
			result.Skipped++
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s is no longer available", itemName(it)))
			continue
		}

		qty := it.Quantity
		if avail := v.Available(); avail >= 0 && avail < qty {
			if avail < 1 {
				result.Skipped++
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s is out of stock", itemName(it)))
				continue
			}
			qty = avail
			result.Warnings = append(result.Warnings, fmt.Sprintf("only %d of %s could be restored", avail, itemName(it)))
		}

		res, err := s.carts.MergeItem(ctx, target.ID, cart.MergeParams{
			VariantID: it.VariantID,
			Quantity:  qty,
			Reprice:   true,
			Note:      utils.PtrString(it.Note),
		})
		if isTimeout(err) {
			log.Warn("restore interrupted", zap.String("variant_id", it.VariantID), zap.Error(err))
			stopEarly(result, sc.Items[i:])
			break
		}
		if err != nil {
			log.Warn("restore item failed", zap.String("variant_id", it.VariantID), zap.Error(err))
			result.Skipped++
			result.Warnings = append(result.Warnings, mergeWarning(it, err))
			continue
		}

		result.Restored++
		if res.LivePriceCents != it.PriceCents {
			result.Warnings = append(result.Warnings, fmt.Sprintf("price of %s changed from %s to %s",
				itemName(it), utils.FormatCents(it.PriceCents), utils.FormatCents(res.LivePriceCents)))
		}
		if res.Capped {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s was capped at %d", itemName(it), cart.MaxItemQuantity))
		}
	}

	result.Message = fmt.Sprintf("Restored %d of %d items.", result.Restored, len(sc.Items))
	if result.Interrupted {
		result.Message = fmt.Sprintf("Restored %d of %d items before the request timed out.", result.Restored, len(sc.Items))
	}

	log.Info("saved cart restored",
		zap.String("cart_id", target.ID),
		zap.Int("restored", result.Restored),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// preRestoreSnapshot backs up the destination cart. It is bounded by its own
// timeout and never fails the restore.
func (s *service) preRestoreSnapshot(ctx context.Context, id identity.Identity, sc *SavedCart) (*SavedCart, error) {
	ctx, cancel := context.WithTimeout(ctx, preRestoreTimeout)
	defer cancel()

	label := "Before restore"
	if sc.Label != nil {
		label = fmt.Sprintf("Before restoring %q", *sc.Label)
	}
	return s.Snapshot(ctx, id, SnapshotParams{Trigger: TriggerPreRestore, Label: label})
}

// stopEarly closes out a restore cut short after the snapshot was claimed.
// The snapshot is already consumed, so the unprocessed items are reported
// instead of failing the whole restore.
func stopEarly(result *RestoreResult, rest []ItemSnapshot) {
	result.Interrupted = true
	for _, it := range rest {
		result.Skipped++
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s was not restored before the request timed out", itemName(it)))
	}
}

func isTimeout(err error) bool {
	return err != nil && (apperror.IsTimeout(err) || apperror.CodeOf(err) == apperror.CodeTimeout)
}

func itemName(it ItemSnapshot) string {
	if it.VariantTitle == "" {
		return it.ProductTitle
	}
	return it.ProductTitle + " (" + it.VariantTitle + ")"
}

func mergeWarning(it ItemSnapshot, err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Code == apperror.CodeOutOfStock {
		return fmt.Sprintf("%s: %s", itemName(it), appErr.Message)
	}
	return fmt.Sprintf("could not restore %s", itemName(it))
}

func (s *service) List(ctx context.Context, id identity.Identity) ([]SavedCart, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	list, err := s.repo.ListByOwner(ctx, id.Key(), s.now())
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedLoad, err)
	}
	return list, nil
}

func (s *service) Get(ctx context.Context, id identity.Identity, savedID string) (*SavedCart, error) {
	return s.loadOwned(ctx, id, savedID)
}

func (s *service) Delete(ctx context.Context, id identity.Identity, savedID string) error {
	if err := id.Validate(); err != nil {
		return err
	}

	err := s.repo.SoftDelete(ctx, savedID, id.Key())
	return apperror.Store(apperror.CodeCreateFailed, msgFailedDelete, err)
}

func (s *service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, apperror.Store(apperror.CodeCreateFailed, msgFailedPurge, err)
	}
	if n > 0 {
		logger.FromCtx(ctx).Info("expired saved carts purged", zap.Int64("count", n))
	}
	return n, nil
}
