package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/cart"
	"storefront-be/internal/catalog"
	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/events"
	"storefront-be/internal/identity"
	"storefront-be/internal/inventory"
	"storefront-be/internal/logger"
	"storefront-be/internal/payment"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CartLocker is the part of the cart store checkout runs inside its
// transaction.
type CartLocker interface {
	LockForCheckout(ctx context.Context, q db.DBTX, id identity.Identity) (*cart.Cart, []cart.Item, error)
	CloseCart(ctx context.Context, q db.DBTX, cartID string) error
}

// Ledger records stock movements inside an existing transaction.
type Ledger interface {
	RecordInTx(ctx context.Context, q db.DBTX, in inventory.MovementInput, guard inventory.Guard) (*inventory.Level, error)
}

type Config struct {
	Currency  string
	TaxPolicy string
	StoreURL  string
}

type Service interface {
	CreateOrder(ctx context.Context, id identity.Identity, params CreateParams) (*CheckoutResult, error)
	RetryAuthorization(ctx context.Context, id identity.Identity, orderID string) (*CheckoutResult, error)
	HandlePaymentEvent(ctx context.Context, e payment.Event) (*EventOutcome, error)

	CancelOrder(ctx context.Context, id identity.Identity, orderID string) (*Order, error)
	MarkFulfilled(ctx context.Context, orderID string) (*Order, error)

	GetOrder(ctx context.Context, id identity.Identity, orderID string) (*Order, error)
	ListOrders(ctx context.Context, id identity.Identity, limit, offset int) ([]Order, error)
}

type service struct {
	repo     Repository
	carts    CartLocker
	variants catalog.Repository
	ledger   Ledger
	payments payment.Repository
	gateway  payment.Gateway
	notifier events.Notifier
	tx       db.Transactor
	cfg      Config

	now func() time.Time
}

func NewService(
	repo Repository,
	carts CartLocker,
	variants catalog.Repository,
	ledger Ledger,
	payments payment.Repository,
	gateway payment.Gateway,
	notifier events.Notifier,
	tx db.Transactor,
	cfg Config,
) Service {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.TaxPolicy == "" {
		cfg.TaxPolicy = config.TaxPolicySum
	}
	return &service{
		repo:     repo,
		carts:    carts,
		variants: variants,
		ledger:   ledger,
		payments: payments,
		gateway:  gateway,
		notifier: notifier,
		tx:       tx,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (p CreateParams) validate() error {
	sh := p.Shipping
	for _, f := range []string{sh.Name, sh.Email, sh.Line1, sh.City, sh.State, sh.PostalCode, sh.Country} {
		if strings.TrimSpace(f) == "" {
			return ErrShippingRequired
		}
	}
	return nil
}

// ----------------- CreateOrder -----------------

func (s *service) CreateOrder(ctx context.Context, id identity.Identity, params CreateParams) (*CheckoutResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.String("owner", id.LogValue()),
	)

	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	rate, err := s.repo.GetShippingRate(ctx, params.ShippingRateID)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedCreateOrder, err)
	}

	taxes, err := s.repo.ListTaxRates(ctx, params.Shipping.State)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedCreateOrder, err)
	}
	if len(taxes) > 1 {
		if s.cfg.TaxPolicy == config.TaxPolicyStrict {
			return nil, ErrAmbiguousTax.WithDetails(params.Shipping.State)
		}
		log.Warn("multiple tax rates apply, summing",
			zap.String("state", params.Shipping.State),
			zap.Int("rates", len(taxes)),
		)
	}

	var promo *Promo
	if code := strings.TrimSpace(params.PromoCode); code != "" {
		promo, err = s.repo.GetPromoByCode(ctx, code)
		if err != nil {
			return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedCreateOrder, err)
		}
	}

	now := s.now()
	var created *Order

	err = s.tx.WithTx(ctx, func(q db.DBTX) error {
		repo := s.repo.WithTx(q)

		c, items, err := s.carts.LockForCheckout(ctx, q, id)
		if errors.Is(err, apperror.ErrNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		ids := make([]string, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.VariantID)
		}
		variants, err := s.variants.GetVariants(ctx, ids)
		if err != nil {
			return err
		}

		var subtotal int64
		lines := make([]Item, 0, len(items))
		for _, it := range items {
			v, ok := variants[it.VariantID]
			if !ok || !v.IsActive {
				return apperror.ErrVariantInactive.WithDetails(it.VariantID)
			}
			lineTotal := it.PriceCentsSnapshot * int64(it.Quantity)
			subtotal += lineTotal
			lines = append(lines, Item{
				VariantID:      v.ID,
				ProductID:      v.ProductID,
				ProductTitle:   v.ProductTitle,
				VariantTitle:   v.Title,
				SKU:            v.SKU,
				Quantity:       it.Quantity,
				UnitPriceCents: it.PriceCentsSnapshot,
				LineTotalCents: lineTotal,
				StockTracked:   v.TrackInventory,
			})
		}

		if promo != nil {
			if err := promo.Check(now, subtotal); err != nil {
				return err
			}
		}
		quote := BuildQuote(subtotal, rate, taxes, promo)

		o := &Order{
			OrderNumber:    utils.GenerateOrderNumber(),
			OwnerKey:       id.Key(),
			AccountID:      id.AccountID,
			SessionToken:   id.SessionToken,
			CartID:         c.ID,
			Status:         StatusPending,
			PaymentStatus:  PaymentPending,
			SubtotalCents:  quote.SubtotalCents,
			ShippingCents:  quote.ShippingCents,
			TaxCents:       quote.TaxCents,
			DiscountCents:  quote.DiscountCents,
			TotalCents:     quote.TotalCents,
			Currency:       s.cfg.Currency,
			ShippingRateID: &rate.ID,
			Shipping:       params.Shipping,
		}
		if promo != nil {
			o.PromoCode = &promo.Code
		}
		if o.TotalCents == 0 {
			o.Status = StatusProcessing
			o.PaymentStatus = PaymentPaid
			o.PaidAt = &now
		}

		created, err = repo.InsertOrder(ctx, o)
		if err != nil {
			return err
		}
		if err := repo.InsertItems(ctx, created.ID, lines); err != nil {
			return err
		}

		for _, line := range lines {
			if !line.StockTracked {
				continue
			}
			guard := inventory.GuardNonNegative
			if variants[line.VariantID].AllowBackorder {
				guard = inventory.GuardNone
			}
			_, err := s.ledger.RecordInTx(ctx, q, inventory.MovementInput{
				VariantID:     line.VariantID,
				DeltaQty:      -line.Quantity,
				Reason:        inventory.ReasonSale,
				ReferenceType: inventory.RefTypeOrder,
				ReferenceID:   created.ID,
			}, guard)
			if err != nil {
				return err
			}
		}

		if promo != nil {
			if err := repo.IncrementPromoUsage(ctx, promo.ID); err != nil {
				return err
			}
		}

		created.Items = lines
		return s.carts.CloseCart(ctx, q, c.ID)
	})
	if err != nil {
		log.Warn("checkout failed", zap.Error(err))
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedCreateOrder, err)
	}

	log = log.With(zap.String("order_id", created.ID), zap.Int64("total_cents", created.TotalCents))
	log.Info("order created")

	// zero-total orders are settled inside the checkout transaction
	if created.PaymentStatus == PaymentPaid {
		s.notify(created, notifyPaid)
		return &CheckoutResult{Order: created}, nil
	}

	return s.authorize(ctx, created)
}

// authorize asks the gateway for an authorization and stores its reference.
// On failure the order stays pending without a reference.
func (s *service) authorize(ctx context.Context, o *Order) (*CheckoutResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "authorize"),
		zap.String("order_id", o.ID),
	)

	auth, err := s.gateway.CreateAuthorization(ctx, payment.AuthorizationRequest{
		AmountCents: o.TotalCents,
		Currency:    o.Currency,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
	})
	if err != nil {
		log.Error("payment authorization failed", zap.Error(err))
		return nil, apperror.Wrap(apperror.CodePaymentGatewayError, msgFailedAuthorize, err).WithDetails(o.ID)
	}

	if err := s.repo.SetPaymentReference(ctx, o.ID, auth.Reference); err != nil {
		// The gateway echoes the reference in its events, which fill it in.
		log.Error("failed to store payment reference", zap.Error(err))
	} else {
		o.PaymentReference = &auth.Reference
	}

	return &CheckoutResult{Order: o, ClientSecret: auth.ClientSecret}, nil
}

// ----------------- RetryAuthorization -----------------

func (s *service) RetryAuthorization(ctx context.Context, id identity.Identity, orderID string) (*CheckoutResult, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var o *Order
	err := s.tx.WithTx(ctx, func(q db.DBTX) error {
		repo := s.repo.WithTx(q)

		var err error
		o, err = repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.OwnerKey != id.Key() {
			return ErrNotOrderOwner
		}
		if o.Status != StatusPending || o.TotalCents == 0 {
			return ErrAuthorizationDone
		}

		switch o.PaymentStatus {
		case PaymentPending:
			return nil
		case PaymentFailed:
			o.PaymentStatus = PaymentPending
			o.FailureReason = nil
			o.RequiresAction = false
			return repo.UpdateState(ctx, o)
		default:
			return ErrAuthorizationDone
		}
	})
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedUpdateOrder, err)
	}

	return s.authorize(ctx, o)
}

// ----------------- HandlePaymentEvent -----------------

func (s *service) HandlePaymentEvent(ctx context.Context, e payment.Event) (*EventOutcome, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "HandlePaymentEvent"),
		zap.String("event_id", e.EventID),
		zap.String("event_type", string(e.Type)),
		zap.String("order_id", e.OrderID),
	)

	if e.EventID == "" || e.OrderID == "" {
		return nil, ErrMissingEventFields
	}

	now := s.now()
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = now
	}

	out := &EventOutcome{OrderID: e.OrderID}
	var (
		o  *Order
		tr transition
	)

	err := s.tx.WithTx(ctx, func(q db.DBTX) error {
		repo := s.repo.WithTx(q)
		store := s.payments.WithTx(q)

		rowID, dup, err := store.SaveEvent(ctx, e)
		if err != nil {
			return err
		}
		if dup {
			out.Duplicate = true
			return nil
		}

		o, err = repo.LockOrder(ctx, e.OrderID)
		if errors.Is(err, ErrOrderNotFound) {
			tr = transition{Note: "order not found"}
			return store.MarkEventProcessed(ctx, rowID, false, tr.Note)
		}
		if err != nil {
			return err
		}

		tr = applyEvent(o, e, now)
		if tr.Changed {
			if err := repo.UpdateState(ctx, o); err != nil {
				return err
			}
		}
		if tr.Restock {
			if err := s.restock(ctx, q, repo, o.ID, inventory.ReasonRefund); err != nil {
				return err
			}
		}

		return store.MarkEventProcessed(ctx, rowID, tr.Changed, tr.Note)
	})
	if err != nil {
		log.Error("failed to apply payment event", zap.Error(err))
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedEvent, err)
	}

	if out.Duplicate {
		log.Info("duplicate payment event ignored")
		return out, nil
	}

	out.Applied = tr.Changed
	out.Note = tr.Note
	if o != nil {
		out.Status = o.Status
		out.PaymentStatus = o.PaymentStatus
	}

	if tr.Changed {
		log.Info("payment event applied",
			zap.String("status", string(out.Status)),
			zap.String("payment_status", string(out.PaymentStatus)),
		)
		s.notify(o, tr.Notify)
	} else {
		log.Warn("payment event recorded but not applied", zap.String("note", tr.Note))
	}

	return out, nil
}

// restock reverses the sale movements of an order's tracked items.
func (s *service) restock(ctx context.Context, q db.DBTX, repo Repository, orderID string, reason inventory.Reason) error {
	items, err := repo.ListItems(ctx, orderID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if !it.StockTracked {
			continue
		}
		_, err := s.ledger.RecordInTx(ctx, q, inventory.MovementInput{
			VariantID:     it.VariantID,
			DeltaQty:      it.Quantity,
			Reason:        reason,
			ReferenceType: inventory.RefTypeOrder,
			ReferenceID:   orderID,
		}, inventory.GuardNone)
		if err != nil {
			return err
		}
	}
	return nil
}

// ----------------- Cancel / Fulfill -----------------

func (s *service) CancelOrder(ctx context.Context, id identity.Identity, orderID string) (*Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var o *Order
	err := s.tx.WithTx(ctx, func(q db.DBTX) error {
		repo := s.repo.WithTx(q)

		var err error
		o, err = repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.OwnerKey != id.Key() {
			return ErrNotOrderOwner
		}
		if !o.Status.CanTransition(StatusCancelled) {
			return ErrTransitionDenied.WithDetails(fmt.Sprintf("%s -> %s", o.Status, StatusCancelled))
		}

		o.Status = StatusCancelled
		o.CancelledAt = &now
		if err := repo.UpdateState(ctx, o); err != nil {
			return err
		}
		return s.restock(ctx, q, repo, o.ID, inventory.ReasonReturn)
	})
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedUpdateOrder, err)
	}

	logger.FromCtx(ctx).Info("order cancelled",
		zap.String("layer", "service"),
		zap.String("order_id", o.ID),
	)
	s.notify(o, notifyCancelled)
	return o, nil
}

func (s *service) MarkFulfilled(ctx context.Context, orderID string) (*Order, error) {
	now := s.now()
	var o *Order
	err := s.tx.WithTx(ctx, func(q db.DBTX) error {
		repo := s.repo.WithTx(q)

		var err error
		o, err = repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(StatusFulfilled) {
			return ErrTransitionDenied.WithDetails(fmt.Sprintf("%s -> %s", o.Status, StatusFulfilled))
		}

		o.Status = StatusFulfilled
		o.FulfilledAt = &now
		return repo.UpdateState(ctx, o)
	})
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedUpdateOrder, err)
	}

	s.notify(o, notifyFulfilled)
	return o, nil
}

// ----------------- Reads -----------------

// GetOrder hides orders of other owners behind NOT_FOUND.
func (s *service) GetOrder(ctx context.Context, id identity.Identity, orderID string) (*Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var (
		o     *Order
		items []Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		o, err = s.repo.GetOrder(gctx, orderID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.repo.ListItems(gctx, orderID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedLoadOrder, err)
	}

	if o.OwnerKey != id.Key() {
		return nil, ErrOrderNotFound
	}
	o.Items = items
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, id identity.Identity, limit, offset int) ([]Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.repo.ListByOwner(ctx, id.Key(), limit, offset)
	if err != nil {
		return nil, apperror.Store(apperror.CodeCreateFailed, msgFailedLoadOrder, err)
	}
	return orders, nil
}
