package cart

import (
	"context"
	"errors"
	"testing"

	"storefront-be/internal/apperror"
	"storefront-be/internal/catalog"
	"storefront-be/internal/db"
	"storefront-be/internal/db/dbtest"
	"storefront-be/internal/identity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) WithTx(q db.DBTX) Repository { return m }

func (m *MockRepository) cartResult(args mock.Arguments) (*Cart, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Cart), args.Error(1)
}

func (m *MockRepository) itemResult(args mock.Arguments) (*Item, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Item), args.Error(1)
}

func (m *MockRepository) UpsertActiveCart(ctx context.Context, ownerKey string, accountID *uuid.UUID, sessionToken *string) (*Cart, error) {
	return m.cartResult(m.Called(ctx, ownerKey, accountID, sessionToken))
}

func (m *MockRepository) GetActiveCartByOwner(ctx context.Context, ownerKey string) (*Cart, error) {
	return m.cartResult(m.Called(ctx, ownerKey))
}

func (m *MockRepository) LockActiveCartByOwner(ctx context.Context, ownerKey string) (*Cart, error) {
	return m.cartResult(m.Called(ctx, ownerKey))
}

func (m *MockRepository) GetCart(ctx context.Context, cartID string) (*Cart, error) {
	return m.cartResult(m.Called(ctx, cartID))
}

func (m *MockRepository) LockCart(ctx context.Context, cartID string) (*Cart, error) {
	return m.cartResult(m.Called(ctx, cartID))
}

func (m *MockRepository) SetStatus(ctx context.Context, cartID string, status Status) error {
	return m.Called(ctx, cartID, status).Error(0)
}

func (m *MockRepository) GetCartByShareToken(ctx context.Context, token string) (*Cart, error) {
	return m.cartResult(m.Called(ctx, token))
}

func (m *MockRepository) UpdateShare(ctx context.Context, cartID string, settings ShareSettings) (*Cart, error) {
	return m.cartResult(m.Called(ctx, cartID, settings))
}

func (m *MockRepository) DisableShare(ctx context.Context, cartID string) error {
	return m.Called(ctx, cartID).Error(0)
}

func (m *MockRepository) GetItem(ctx context.Context, itemID string) (*Item, error) {
	return m.itemResult(m.Called(ctx, itemID))
}

func (m *MockRepository) GetItemByVariant(ctx context.Context, cartID, variantID string) (*Item, error) {
	return m.itemResult(m.Called(ctx, cartID, variantID))
}

func (m *MockRepository) ListItems(ctx context.Context, cartID string) ([]Item, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Item), args.Error(1)
}

func (m *MockRepository) ListLines(ctx context.Context, cartID string) ([]Line, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Line), args.Error(1)
}

func (m *MockRepository) UpsertItem(ctx context.Context, params upsertItemParams) (*Item, error) {
	return m.itemResult(m.Called(ctx, params))
}

func (m *MockRepository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) (*Item, error) {
	return m.itemResult(m.Called(ctx, itemID, quantity))
}

func (m *MockRepository) DeleteItem(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}

func (m *MockRepository) DeleteItems(ctx context.Context, cartID string) (int64, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(int64), args.Error(1)
}

// MockVariantRepository is a mock for the catalog repository
type MockVariantRepository struct {
	mock.Mock
}

func (m *MockVariantRepository) GetVariant(ctx context.Context, variantID string) (*catalog.Variant, error) {
	args := m.Called(ctx, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Variant), args.Error(1)
}

func (m *MockVariantRepository) GetVariants(ctx context.Context, ids []string) (map[string]*catalog.Variant, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*catalog.Variant), args.Error(1)
}

func newTestService() (*service, *MockRepository, *MockVariantRepository) {
	repo := new(MockRepository)
	variants := new(MockVariantRepository)
	svc := NewService(repo, variants, &dbtest.Transactor{}).(*service)
	return svc, repo, variants
}

func activeVariant(stock int) *catalog.Variant {
	return &catalog.Variant{
		ID:             "var-1",
		PriceCents:     1500,
		IsActive:       true,
		TrackInventory: true,
		StockQuantity:  stock,
	}
}

var anon = identity.Session("anon-token-123")

func TestService_GetOrCreateActiveCart(t *testing.T) {
	ctx := context.Background()

	t.Run("No identity", func(t *testing.T) {
		svc, repo, _ := newTestService()

		_, err := svc.GetOrCreateActiveCart(ctx, identity.Identity{})
		assert.ErrorIs(t, err, apperror.ErrNoIdentity)
		repo.AssertNotCalled(t, "UpsertActiveCart", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Upserts by owner key", func(t *testing.T) {
		svc, repo, _ := newTestService()

		repo.On("UpsertActiveCart", ctx, "session:anon-token-123", (*uuid.UUID)(nil), anon.SessionToken).
			Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)

		c, err := svc.GetOrCreateActiveCart(ctx, anon)
		require.NoError(t, err)
		assert.Equal(t, "cart-1", c.ID)
	})
}

func TestService_AddItem(t *testing.T) {
	ctx := context.Background()
	ownerKey := anon.Key()

	t.Run("Invalid quantity", func(t *testing.T) {
		svc, _, _ := newTestService()

		for _, qty := range []int{0, -1, 100} {
			_, err := svc.AddItem(ctx, anon, AddItemParams{VariantID: "var-1", Quantity: qty})
			assert.ErrorIs(t, err, apperror.ErrInvalidQuantity, "qty=%d", qty)
		}
	})

	t.Run("Inserts new item at live price", func(t *testing.T) {
		svc, repo, variants := newTestService()

		repo.On("UpsertActiveCart", ctx, ownerKey, mock.Anything, mock.Anything).Return(&Cart{ID: "cart-1", OwnerKey: ownerKey, Status: StatusActive}, nil)
		variants.On("GetVariant", ctx, "var-1").Return(activeVariant(10), nil)
		repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", OwnerKey: ownerKey, Status: StatusActive}, nil)
		repo.On("GetItemByVariant", ctx, "cart-1", "var-1").Return(nil, nil)
		repo.On("UpsertItem", ctx, mock.MatchedBy(func(p upsertItemParams) bool {
			return p.Quantity == 2 && p.PriceCents == 1500 && p.Reprice
		})).Return(&Item{ID: "item-1", Quantity: 2, PriceCentsSnapshot: 1500}, nil)

		it, err := svc.AddItem(ctx, anon, AddItemParams{VariantID: "var-1", Quantity: 2})
		require.NoError(t, err)
		assert.Equal(t, "item-1", it.ID)
		repo.AssertExpectations(t)
	})

	t.Run("Merges with existing and keeps price", func(t *testing.T) {
		svc, repo, variants := newTestService()

		repo.On("UpsertActiveCart", ctx, ownerKey, mock.Anything, mock.Anything).Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)
		variants.On("GetVariant", ctx, "var-1").Return(activeVariant(10), nil)
		repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)
		repo.On("GetItemByVariant", ctx, "cart-1", "var-1").Return(&Item{ID: "item-1", Quantity: 3, PriceCentsSnapshot: 1200}, nil)
		repo.On("UpsertItem", ctx, mock.MatchedBy(func(p upsertItemParams) bool {
			return p.Quantity == 5 && !p.Reprice
		})).Return(&Item{ID: "item-1", Quantity: 5, PriceCentsSnapshot: 1200}, nil)

		it, err := svc.AddItem(ctx, anon, AddItemParams{VariantID: "var-1", Quantity: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, it.Quantity)
		assert.Equal(t, int64(1200), it.PriceCentsSnapshot)
	})

	t.Run("Merged quantity exceeds stock", func(t *testing.T) {
		svc, repo, variants := newTestService()

		repo.On("UpsertActiveCart", ctx, ownerKey, mock.Anything, mock.Anything).Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)
		variants.On("GetVariant", ctx, "var-1").Return(activeVariant(4), nil)
		repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)
		repo.On("GetItemByVariant", ctx, "cart-1", "var-1").Return(&Item{ID: "item-1", Quantity: 3}, nil)

		_, err := svc.AddItem(ctx, anon, AddItemParams{VariantID: "var-1", Quantity: 2})
		require.ErrorIs(t, err, apperror.ErrOutOfStock)
		assert.Equal(t, 4, *apperror.From(err).Available)
		repo.AssertNotCalled(t, "UpsertItem", mock.Anything, mock.Anything)
	})

	t.Run("Inactive variant", func(t *testing.T) {
		svc, repo, variants := newTestService()

		v := activeVariant(10)
		v.IsActive = false
		repo.On("UpsertActiveCart", ctx, ownerKey, mock.Anything, mock.Anything).Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)
		variants.On("GetVariant", ctx, "var-1").Return(v, nil)
		repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)
		repo.On("GetItemByVariant", ctx, "cart-1", "var-1").Return(nil, nil)

		_, err := svc.AddItem(ctx, anon, AddItemParams{VariantID: "var-1", Quantity: 1})
		assert.ErrorIs(t, err, apperror.ErrVariantInactive)
	})

	t.Run("Unknown variant", func(t *testing.T) {
		svc, repo, variants := newTestService()

		repo.On("UpsertActiveCart", ctx, ownerKey, mock.Anything, mock.Anything).Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)
		variants.On("GetVariant", ctx, "var-x").Return(nil, catalog.ErrVariantNotFound)

		_, err := svc.AddItem(ctx, anon, AddItemParams{VariantID: "var-x", Quantity: 1})
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("Store timeout is retryable", func(t *testing.T) {
		svc, repo, variants := newTestService()

		repo.On("UpsertActiveCart", ctx, ownerKey, mock.Anything, mock.Anything).Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)
		variants.On("GetVariant", ctx, "var-1").Return(activeVariant(10), nil)
		repo.On("LockCart", ctx, "cart-1").Return(nil, context.DeadlineExceeded)

		_, err := svc.AddItem(ctx, anon, AddItemParams{VariantID: "var-1", Quantity: 1})
		assert.ErrorIs(t, err, apperror.ErrTimeout)
	})
}

func TestService_MergeItem_CapsAt99(t *testing.T) {
	ctx := context.Background()
	svc, repo, variants := newTestService()

	v := activeVariant(0)
	v.TrackInventory = false
	variants.On("GetVariant", ctx, "var-1").Return(v, nil)
	repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)
	repo.On("GetItemByVariant", ctx, "cart-1", "var-1").Return(&Item{ID: "item-1", Quantity: 98, PriceCentsSnapshot: 900}, nil)
	repo.On("UpsertItem", ctx, mock.MatchedBy(func(p upsertItemParams) bool {
		return p.Quantity == MaxItemQuantity && p.Reprice
	})).Return(&Item{ID: "item-1", Quantity: 99, PriceCentsSnapshot: 1500}, nil)

	res, err := svc.MergeItem(ctx, "cart-1", MergeParams{VariantID: "var-1", Quantity: 5, Reprice: true})
	require.NoError(t, err)
	assert.True(t, res.Existed)
	assert.True(t, res.Capped)
	assert.Equal(t, 99, res.Item.Quantity)
	assert.Equal(t, int64(1500), res.LivePriceCents)
}

func TestService_MergeItem_ClosedCart(t *testing.T) {
	ctx := context.Background()
	svc, repo, variants := newTestService()

	variants.On("GetVariant", ctx, "var-1").Return(activeVariant(10), nil)
	repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", Status: StatusClosed}, nil)

	_, err := svc.MergeItem(ctx, "cart-1", MergeParams{VariantID: "var-1", Quantity: 1})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestService_UpdateItemQuantity(t *testing.T) {
	ctx := context.Background()
	ownerKey := anon.Key()

	t.Run("Below one removes", func(t *testing.T) {
		for _, qty := range []int{0, -2} {
			svc, repo, _ := newTestService()

			repo.On("GetItem", ctx, "item-1").Return(&Item{ID: "item-1", CartID: "cart-1", VariantID: "var-1"}, nil)
			repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", OwnerKey: ownerKey, Status: StatusActive}, nil)
			repo.On("DeleteItem", ctx, "item-1").Return(nil)

			it, err := svc.UpdateItemQuantity(ctx, anon, "item-1", qty)
			assert.NoError(t, err)
			assert.Nil(t, it)
			repo.AssertCalled(t, "DeleteItem", ctx, "item-1")
		}
	})

	t.Run("Above max", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.UpdateItemQuantity(ctx, anon, "item-1", 100)
		assert.ErrorIs(t, err, apperror.ErrInvalidQuantity)
	})

	t.Run("Not owner", func(t *testing.T) {
		svc, repo, _ := newTestService()

		repo.On("GetItem", ctx, "item-1").Return(&Item{ID: "item-1", CartID: "cart-1", VariantID: "var-1"}, nil)
		repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", OwnerKey: "session:someone-else", Status: StatusActive}, nil)

		_, err := svc.UpdateItemQuantity(ctx, anon, "item-1", 3)
		assert.ErrorIs(t, err, apperror.ErrForbidden)
		repo.AssertNotCalled(t, "UpdateItemQuantity", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Stock checked against new quantity", func(t *testing.T) {
		svc, repo, variants := newTestService()

		repo.On("GetItem", ctx, "item-1").Return(&Item{ID: "item-1", CartID: "cart-1", VariantID: "var-1"}, nil)
		repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", OwnerKey: ownerKey, Status: StatusActive}, nil)
		variants.On("GetVariant", ctx, "var-1").Return(activeVariant(2), nil)

		_, err := svc.UpdateItemQuantity(ctx, anon, "item-1", 3)
		assert.ErrorIs(t, err, apperror.ErrOutOfStock)
	})

	t.Run("Success", func(t *testing.T) {
		svc, repo, variants := newTestService()

		repo.On("GetItem", ctx, "item-1").Return(&Item{ID: "item-1", CartID: "cart-1", VariantID: "var-1"}, nil)
		repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", OwnerKey: ownerKey, Status: StatusActive}, nil)
		variants.On("GetVariant", ctx, "var-1").Return(activeVariant(10), nil)
		repo.On("UpdateItemQuantity", ctx, "item-1", 3).Return(&Item{ID: "item-1", Quantity: 3}, nil)

		it, err := svc.UpdateItemQuantity(ctx, anon, "item-1", 3)
		require.NoError(t, err)
		assert.Equal(t, 3, it.Quantity)
	})
}

func TestService_RemoveItem(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing item", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("GetItem", ctx, "item-x").Return(nil, ErrCartItemNotFound)

		err := svc.RemoveItem(ctx, anon, "item-x")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("Other owner", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("GetItem", ctx, "item-1").Return(&Item{ID: "item-1", CartID: "cart-1"}, nil)
		repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", OwnerKey: "account:other"}, nil)

		err := svc.RemoveItem(ctx, anon, "item-1")
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})
}

func TestService_ClearCart(t *testing.T) {
	ctx := context.Background()

	t.Run("Owner clears items", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", OwnerKey: anon.Key(), Status: StatusActive}, nil)
		repo.On("DeleteItems", ctx, "cart-1").Return(int64(3), nil)

		assert.NoError(t, svc.ClearCart(ctx, anon, "cart-1"))
		repo.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Other owner", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("LockCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", OwnerKey: "account:other"}, nil)

		assert.ErrorIs(t, svc.ClearCart(ctx, anon, "cart-1"), apperror.ErrForbidden)
	})

	t.Run("Unexpected failure", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("LockCart", ctx, "cart-1").Return(nil, errors.New("conn reset"))

		assert.ErrorIs(t, svc.ClearCart(ctx, anon, "cart-1"), apperror.ErrCreateFailed)
	})
}

func TestService_GetActiveCart(t *testing.T) {
	ctx := context.Background()

	t.Run("No cart yet", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("GetActiveCartByOwner", ctx, anon.Key()).Return(nil, ErrCartNotFound)

		v, err := svc.GetActiveCart(ctx, anon)
		require.NoError(t, err)
		assert.Nil(t, v.CartID)
		assert.Empty(t, v.Lines)
		repo.AssertNotCalled(t, "UpsertActiveCart", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("With lines", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("GetActiveCartByOwner", ctx, anon.Key()).Return(&Cart{ID: "cart-1", Status: StatusActive}, nil)
		repo.On("ListLines", ctx, "cart-1").Return([]Line{
			{ItemID: "item-1", Quantity: 2, UnitPriceCents: 1000, LivePriceCents: 900},
		}, nil)

		v, err := svc.GetActiveCart(ctx, anon)
		require.NoError(t, err)
		assert.Equal(t, int64(2000), v.SubtotalCents)
		assert.True(t, v.Lines[0].PriceChanged)
	})
}

func TestService_GetOwnedCart(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	repo.On("GetCart", ctx, "cart-1").Return(&Cart{ID: "cart-1", OwnerKey: "session:other-token"}, nil)

	_, err := svc.GetOwnedCart(ctx, anon, "cart-1")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}
