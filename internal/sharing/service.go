package sharing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/cart"
	"storefront-be/internal/db"
	"storefront-be/internal/events"
	"storefront-be/internal/identity"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

// Carts is the part of the cart store sharing builds on.
type Carts interface {
	GetOrCreateActiveCart(ctx context.Context, id identity.Identity) (*cart.Cart, error)
	GetOwnedCart(ctx context.Context, id identity.Identity, cartID string) (*cart.Cart, error)
	MergeItem(ctx context.Context, cartID string, params cart.MergeParams) (*cart.MergeResult, error)
	ViewOf(ctx context.Context, c *cart.Cart) (*cart.View, error)
}

// Store holds the share columns of a cart. cart.Repository satisfies it.
type Store interface {
	GetCartByShareToken(ctx context.Context, token string) (*cart.Cart, error)
	UpdateShare(ctx context.Context, cartID string, settings cart.ShareSettings) (*cart.Cart, error)
	DisableShare(ctx context.Context, cartID string) error
	ListLines(ctx context.Context, cartID string) ([]cart.Line, error)
}

type Service interface {
	EnableSharing(ctx context.Context, id identity.Identity, cartID string, params EnableParams) (*ShareInfo, error)
	DisableSharing(ctx context.Context, id identity.Identity, cartID string) error
	ViewShared(ctx context.Context, token string, vc ViewContext) (*SharedView, error)
	CloneShared(ctx context.Context, token string, viewer identity.Identity, vc ViewContext) (*CloneResult, error)
}

type service struct {
	carts   Carts
	store   Store
	tracker events.ViewTracker
	cfg     Config

	now      func() time.Time
	newToken func() (string, error)
}

func NewService(carts Carts, store Store, tracker events.ViewTracker, cfg Config) Service {
	if cfg.DefaultDays == 0 {
		cfg.DefaultDays = 7
	}
	return &service{
		carts:    carts,
		store:    store,
		tracker:  tracker,
		cfg:      cfg,
		now:      time.Now,
		newToken: utils.GenerateShareToken,
	}
}

func (s *service) EnableSharing(ctx context.Context, id identity.Identity, cartID string, params EnableParams) (*ShareInfo, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "EnableSharing"),
		zap.String("cart_id", cartID),
	)

	days := params.DaysValid
	if days == 0 {
		days = s.cfg.DefaultDays
	}
	if days < MinDaysValid || days > MaxDaysValid {
		return nil, ErrInvalidDaysValid
	}

	c, err := s.carts.GetOwnedCart(ctx, id, cartID)
	if err != nil {
		return nil, err
	}
	if c.Status != cart.StatusActive {
		return nil, cart.ErrCartClosed
	}

	settings := cart.ShareSettings{
		ExpiresAt: s.now().Add(time.Duration(days) * 24 * time.Hour),
		Label:     utils.NilIfEmpty(params.Label),
		Message:   utils.NilIfEmpty(params.Message),
	}

	reuse := c.ShareToken != nil && *c.ShareToken != ""
	var updated *cart.Cart
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		if reuse {
			settings.Token = *c.ShareToken
		} else if settings.Token, err = s.newToken(); err != nil {
			log.Error("failed to generate share token", zap.Error(err))
			return nil, apperror.Wrap(apperror.CodeCreateFailed, msgFailedEnableShare, err)
		}

		updated, err = s.store.UpdateShare(ctx, cartID, settings)
		if err == nil {
			break
		}
		if reuse || !db.IsUniqueViolation(err) {
			return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedEnableShare, err)
		}
		log.Warn("share token collision, regenerating", zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeCreateFailed, msgFailedEnableShare, err)
	}

	log.Info("sharing enabled",
		zap.Bool("rotated", reuse),
		zap.Time("expires_at", settings.ExpiresAt),
	)

	return &ShareInfo{
		CartID:    updated.ID,
		Token:     settings.Token,
		URL:       s.shareURL(settings.Token),
		Label:     updated.ShareLabel,
		Message:   updated.ShareMessage,
		ExpiresAt: settings.ExpiresAt,
	}, nil
}

func (s *service) shareURL(token string) string {
	return strings.TrimRight(s.cfg.StoreURL, "/") + "/shared/" + token
}

func (s *service) DisableSharing(ctx context.Context, id identity.Identity, cartID string) error {
	if _, err := s.carts.GetOwnedCart(ctx, id, cartID); err != nil {
		return err
	}

	if err := s.store.DisableShare(ctx, cartID); err != nil {
		return apperror.Store(apperror.CodeCreateFailed, msgFailedDisableShare, err)
	}

	logger.FromCtx(ctx).Info("sharing disabled",
		zap.String("layer", "service"),
		zap.String("cart_id", cartID),
	)
	return nil
}

// lookup resolves a public token. Unknown, disabled and closed carts all look
// the same to the caller; expiry is reported separately.
func (s *service) lookup(ctx context.Context, token string) (*cart.Cart, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrShareNotFound
	}

	c, err := s.store.GetCartByShareToken(ctx, token)
	if errors.Is(err, cart.ErrCartNotFound) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedLoadShare, err)
	}

	if !c.ShareEnabled || c.Status != cart.StatusActive {
		return nil, ErrShareNotFound
	}
	if c.ShareExpiresAt != nil && c.ShareExpiresAt.Before(s.now()) {
		return nil, ErrShareExpired
	}
	return c, nil
}

func (s *service) ViewShared(ctx context.Context, token string, vc ViewContext) (*SharedView, error) {
	c, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	view, err := s.carts.ViewOf(ctx, c)
	if err != nil {
		return nil, err
	}

	s.recordView(token, vc, false)

	return &SharedView{
		Label:         c.ShareLabel,
		Message:       c.ShareMessage,
		ExpiresAt:     c.ShareExpiresAt,
		Lines:         view.Lines,
		ItemCount:     view.ItemCount,
		SubtotalCents: view.SubtotalCents,
	}, nil
}

func (s *service) recordView(token string, vc ViewContext, cloned bool) {
	if s.tracker == nil {
		return
	}
	s.tracker.RecordView(events.ShareView{
		ShareToken:      token,
		ViewerSessionID: vc.ViewerSessionID,
		IP:              vc.IP,
		UserAgent:       vc.UserAgent,
		Referrer:        vc.Referrer,
		Cloned:          cloned,
	})
}

// CloneShared merges every item of the shared cart into the viewer's active
// cart at the live price. Items that can no longer be bought are skipped
// silently; other write failures are skipped with a warning.
func (s *service) CloneShared(ctx context.Context, token string, viewer identity.Identity, vc ViewContext) (*CloneResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CloneShared"),
	)

	if err := viewer.Validate(); err != nil {
		return nil, err
	}

	source, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	target, err := s.carts.GetOrCreateActiveCart(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if target.ID == source.ID {
		return nil, ErrCloneIntoSelf
	}

	lines, err := s.store.ListLines(ctx, source.ID)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedClone, err)
	}

	result := &CloneResult{CartID: target.ID, Warnings: []string{}}
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			if stop := stopEarly(result, lines[i:], apperror.Store(apperror.CodeCreateFailed, msgFailedClone, err)); stop != nil {
				return nil, stop
			}
			log.Warn("clone interrupted", zap.Error(err))
			break
		}

		if !line.IsActive {
			result.Skipped++
			continue
		}

		res, err := s.carts.MergeItem(ctx, target.ID, cart.MergeParams{
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			Reprice:   true,
			Note:      utils.PtrString(line.Note),
		})
		if apperror.IsTimeout(err) || apperror.CodeOf(err) == apperror.CodeTimeout {
			if stop := stopEarly(result, lines[i:], err); stop != nil {
				return nil, stop
			}
			log.Warn("clone interrupted", zap.String("variant_id", line.VariantID), zap.Error(err))
			break
		}
		switch {
		case err == nil:
		case unavailable(err):
			result.Skipped++
			continue
		default:
			log.Warn("clone item failed", zap.String("variant_id", line.VariantID), zap.Error(err))
			result.Skipped++
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not add %s", lineName(line)))
			continue
		}

		result.Cloned++
		if res.LivePriceCents != line.UnitPriceCents {
			result.Warnings = append(result.Warnings, priceWarning(line, res.LivePriceCents))
		}
	}

	s.recordView(token, vc, true)

	log.Info("shared cart cloned",
		zap.String("target_cart_id", target.ID),
		zap.Int("cloned", result.Cloned),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// stopEarly ends a clone cut short by a timeout. Before any line merged the
// error is returned and the clone can be retried as a whole; afterwards the
// merged lines are reported and the rest are listed as not copied, since a
// retry would add the merged lines twice.
func stopEarly(result *CloneResult, rest []cart.Line, err error) error {
	if result.Cloned == 0 {
		return err
	}
	result.Interrupted = true
	for _, l := range rest {
		result.Skipped++
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s was not copied before the request timed out", lineName(l)))
	}
	return nil
}

// unavailable reports merge failures that mean the variant cannot be bought
// right now.
func unavailable(err error) bool {
	return errors.Is(err, apperror.ErrVariantInactive) ||
		errors.Is(err, apperror.ErrOutOfStock) ||
		errors.Is(err, apperror.ErrNotFound)
}

func lineName(l cart.Line) string {
	if l.VariantTitle == "" {
		return l.ProductTitle
	}
	return l.ProductTitle + " (" + l.VariantTitle + ")"
}

func priceWarning(l cart.Line, live int64) string {
	return fmt.Sprintf("price of %s changed from %s to %s", lineName(l), utils.FormatCents(l.UnitPriceCents), utils.FormatCents(live))
}
