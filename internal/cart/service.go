package cart

import (
	"context"
	"errors"

	"storefront-be/internal/apperror"
	"storefront-be/internal/catalog"
	"storefront-be/internal/db"
	"storefront-be/internal/identity"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

// Service defines the cart store. Every operation takes the caller identity
// explicitly and checks ownership before mutating.
type Service interface {
	GetOrCreateActiveCart(ctx context.Context, id identity.Identity) (*Cart, error)
	AddItem(ctx context.Context, id identity.Identity, params AddItemParams) (*Item, error)
	MergeItem(ctx context.Context, cartID string, params MergeParams) (*MergeResult, error)
	UpdateItemQuantity(ctx context.Context, id identity.Identity, itemID string, quantity int) (*Item, error)
	RemoveItem(ctx context.Context, id identity.Identity, itemID string) error
	ClearCart(ctx context.Context, id identity.Identity, cartID string) error
	GetActiveCart(ctx context.Context, id identity.Identity) (*View, error)

	// GetOwnedCart loads cartID and checks it belongs to id.
	GetOwnedCart(ctx context.Context, id identity.Identity, cartID string) (*Cart, error)
	// ViewOf renders any cart without an ownership check.
	ViewOf(ctx context.Context, c *Cart) (*View, error)

	// LockForCheckout locks the identity's active cart inside q and returns it
	// with its items.
	LockForCheckout(ctx context.Context, q db.DBTX, id identity.Identity) (*Cart, []Item, error)
	CloseCart(ctx context.Context, q db.DBTX, cartID string) error
}

type service struct {
	repo     Repository
	variants catalog.Repository
	tx       db.Transactor
}

func NewService(repo Repository, variants catalog.Repository, tx db.Transactor) Service {
	return &service{repo: repo, variants: variants, tx: tx}
}

func validQuantity(qty int) bool {
	return qty >= 1 && qty <= MaxItemQuantity
}

func (s *service) GetOrCreateActiveCart(ctx context.Context, id identity.Identity) (*Cart, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.UpsertActiveCart(ctx, id.Key(), id.AccountID, id.SessionToken)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedGetCart, err)
	}
	return c, nil
}

func (s *service) AddItem(ctx context.Context, id identity.Identity, params AddItemParams) (*Item, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AddItem"),
		zap.String("variant_id", params.VariantID),
		zap.Int("quantity", params.Quantity),
	)

	if err := id.Validate(); err != nil {
		return nil, err
	}
	if !validQuantity(params.Quantity) {
		return nil, apperror.ErrInvalidQuantity
	}

	c, err := s.GetOrCreateActiveCart(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := s.MergeItem(ctx, c.ID, MergeParams{
		VariantID: params.VariantID,
		Quantity:  params.Quantity,
		Note:      params.Note,
	})
	if err != nil {
		log.Info("add item rejected", zap.String("code", string(apperror.CodeOf(err))))
		return nil, err
	}

	return res.Item, nil
}

// MergeItem applies the merge-or-insert rule: an existing line for the
// variant grows to min(99, existing+qty), otherwise a new line is created at
// the live price. Stock is validated against the merged quantity.
func (s *service) MergeItem(ctx context.Context, cartID string, params MergeParams) (*MergeResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "MergeItem"),
		zap.String("cart_id", cartID),
		zap.String("variant_id", params.VariantID),
	)

	if !validQuantity(params.Quantity) {
		return nil, apperror.ErrInvalidQuantity
	}

	variant, err := s.variants.GetVariant(ctx, params.VariantID)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedAddItem, err)
	}

	res := &MergeResult{LivePriceCents: variant.PriceCents}

	err = s.tx.WithTx(ctx, func(q db.DBTX) error {
		repo := s.repo.WithTx(q)

		c, err := repo.LockCart(ctx, cartID)
		if err != nil {
			return err
		}
		if c.Status != StatusActive {
			return ErrCartClosed
		}

		existing, err := repo.GetItemByVariant(ctx, cartID, params.VariantID)
		if err != nil {
			return err
		}

		newQty := params.Quantity
		if existing != nil {
			res.Existed = true
			newQty += existing.Quantity
		}
		if newQty > MaxItemQuantity {
			newQty = MaxItemQuantity
			res.Capped = true
		}

		if err := variant.Validate(newQty); err != nil {
			return err
		}

		res.Item, err = repo.UpsertItem(ctx, upsertItemParams{
			CartID:     cartID,
			VariantID:  params.VariantID,
			Quantity:   newQty,
			PriceCents: variant.PriceCents,
			Reprice:    params.Reprice || existing == nil,
			Note:       utils.NilIfEmpty(params.Note),
		})
		return err
	})
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedAddItem, err)
	}

	log.Info("item merged",
		zap.Bool("existed", res.Existed),
		zap.Bool("capped", res.Capped),
		zap.Int("quantity", res.Item.Quantity),
	)
	return res, nil
}

// UpdateItemQuantity sets an absolute quantity. Anything below one removes
// the item.
func (s *service) UpdateItemQuantity(ctx context.Context, id identity.Identity, itemID string, quantity int) (*Item, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, s.RemoveItem(ctx, id, itemID)
	}
	if quantity > MaxItemQuantity {
		return nil, apperror.ErrInvalidQuantity
	}

	var updated *Item
	err := s.tx.WithTx(ctx, func(q db.DBTX) error {
		repo := s.repo.WithTx(q)

		item, err := s.lockOwnedItem(ctx, repo, id, itemID)
		if err != nil {
			return err
		}

		variant, err := s.variants.GetVariant(ctx, item.VariantID)
		if err != nil {
			return err
		}
		if err := variant.Validate(quantity); err != nil {
			return err
		}

		updated, err = repo.UpdateItemQuantity(ctx, itemID, quantity)
		return err
	})
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedUpdateItem, err)
	}

	return updated, nil
}

func (s *service) RemoveItem(ctx context.Context, id identity.Identity, itemID string) error {
	if err := id.Validate(); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(q db.DBTX) error {
		repo := s.repo.WithTx(q)

		if _, err := s.lockOwnedItem(ctx, repo, id, itemID); err != nil {
			return err
		}
		return repo.DeleteItem(ctx, itemID)
	})
	return apperror.Store(apperror.CodeCreateFailed, msgFailedRemoveItem, err)
}

// lockOwnedItem loads the item and locks its cart after checking ownership.
func (s *service) lockOwnedItem(ctx context.Context, repo Repository, id identity.Identity, itemID string) (*Item, error) {
	item, err := repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	c, err := repo.LockCart(ctx, item.CartID)
	if err != nil {
		return nil, err
	}
	if c.OwnerKey != id.Key() {
		logger.FromCtx(ctx).Warn("cart item ownership mismatch",
			zap.String("layer", "service"),
			zap.String("cart_id", c.ID),
			zap.String("item_id", itemID),
		)
		return nil, ErrNotCartOwner
	}
	if c.Status != StatusActive {
		return nil, ErrCartClosed
	}
	return item, nil
}

func (s *service) ClearCart(ctx context.Context, id identity.Identity, cartID string) error {
	if err := id.Validate(); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(q db.DBTX) error {
		repo := s.repo.WithTx(q)

		c, err := repo.LockCart(ctx, cartID)
		if err != nil {
			return err
		}
		if c.OwnerKey != id.Key() {
			return ErrNotCartOwner
		}

		n, err := repo.DeleteItems(ctx, cartID)
		if err != nil {
			return err
		}
		logger.FromCtx(ctx).Info("cart cleared",
			zap.String("cart_id", cartID),
			zap.Int64("removed", n),
		)
		return nil
	})
	return apperror.Store(apperror.CodeCreateFailed, msgFailedClearCart, err)
}

// GetActiveCart returns the display view of the identity's active cart, or
// an empty view when none exists yet. It never creates a cart.
func (s *service) GetActiveCart(ctx context.Context, id identity.Identity) (*View, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.GetActiveCartByOwner(ctx, id.Key())
	if errors.Is(err, ErrCartNotFound) {
		return buildView(nil, nil), nil
	}
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedGetCart, err)
	}

	return s.ViewOf(ctx, c)
}

func (s *service) ViewOf(ctx context.Context, c *Cart) (*View, error) {
	lines, err := s.repo.ListLines(ctx, c.ID)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedGetCart, err)
	}
	return buildView(c, lines), nil
}

func (s *service) GetOwnedCart(ctx context.Context, id identity.Identity, cartID string) (*Cart, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedGetCart, err)
	}
	if c.OwnerKey != id.Key() {
		return nil, ErrNotCartOwner
	}
	return c, nil
}

func (s *service) LockForCheckout(ctx context.Context, q db.DBTX, id identity.Identity) (*Cart, []Item, error) {
	if err := id.Validate(); err != nil {
		return nil, nil, err
	}

	repo := s.repo.WithTx(q)

	c, err := repo.LockActiveCartByOwner(ctx, id.Key())
	if err != nil {
		return nil, nil, err
	}

	items, err := repo.ListItems(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	return c, items, nil
}

func (s *service) CloseCart(ctx context.Context, q db.DBTX, cartID string) error {
	return s.repo.WithTx(q).SetStatus(ctx, cartID, StatusClosed)
}
