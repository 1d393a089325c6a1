package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
)

func TestWithTxRollsBackEveryWriteOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateProduct(ctx, domain.Product{ID: "prd_1", UserID: "u1", Name: "Phone", Quantity: 5, CreatedAt: now})
	}))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateStockMovement(ctx, domain.StockMovement{ID: "mov_1", UserID: "u1", ProductID: "prd_1", Type: domain.MovementOut, Quantity: 1, PreviousQuantity: 5, NewQuantity: 4}); err != nil {
			return err
		}
		if err := tx.UpdateProductQuantity(ctx, "u1", "prd_1", 4, now); err != nil {
			return err
		}
		if err := tx.CreateSerial(ctx, domain.ProductSerial{ID: "ser_1", UserID: "u1", ProductID: "prd_1", SerialNumber: "IMEI-1"}); err != nil {
			return err
		}
		if err := tx.DeleteProduct(ctx, "u1", "prd_1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	product, err := s.GetProduct(ctx, "u1", "prd_1")
	require.NoError(t, err)
	assert.Equal(t, 5, product.Quantity)

	movements, err := s.ListStockMovements(ctx, "u1", "prd_1", 0)
	require.NoError(t, err)
	assert.Empty(t, movements)

	_, err = s.FindSerial(ctx, "u1", "IMEI-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx store.Tx) error {
			_ = tx.CreateProduct(ctx, domain.Product{ID: "prd_1", UserID: "u1", Name: "Phone"})
			panic("unexpected")
		})
	})

	_, err := s.GetProduct(ctx, "u1", "prd_1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateSerialRejectsDuplicateWithinTenant(t *testing.T) {
	ctx := context.Background()
	s := New()

	create := func(id, userID string) error {
		return s.WithTx(ctx, func(tx store.Tx) error {
			return tx.CreateSerial(ctx, domain.ProductSerial{ID: id, UserID: userID, ProductID: "prd_1", SerialNumber: "IMEI-42", Status: domain.SerialInStock})
		})
	}

	require.NoError(t, create("ser_1", "u1"))
	assert.ErrorIs(t, create("ser_2", "u1"), store.ErrDuplicateSerial)
	assert.NoError(t, create("ser_3", "u2"))
}

func TestCreateServiceRecordRejectsDuplicateTicket(t *testing.T) {
	ctx := context.Background()
	s := New()

	create := func(id, userID string) error {
		return s.WithTx(ctx, func(tx store.Tx) error {
			return tx.CreateServiceRecord(ctx, domain.ServiceRecord{ID: id, UserID: userID, TicketNo: "SRV-20260615-AB12CD34", Status: domain.StatusPendingQCEntry})
		})
	}

	require.NoError(t, create("svc_1", "u1"))
	assert.ErrorIs(t, create("svc_2", "u1"), store.ErrDuplicateTicket)
	assert.NoError(t, create("svc_3", "u2"))

	_, err := s.GetServiceRecord(ctx, "u1", "svc_2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRenameProductCategoryRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateProduct(ctx, domain.Product{ID: "prd_1", UserID: "u1", Name: "Phone", Category: "Phones", CreatedAt: now}); err != nil {
			return err
		}
		return tx.CreateProduct(ctx, domain.Product{ID: "prd_2", UserID: "u2", Name: "Phone", Category: "Phones", CreatedAt: now})
	}))

	err := s.WithTx(ctx, func(tx store.Tx) error {
		moved, err := tx.RenameProductCategory(ctx, "u1", "Phones", "Mobiles", now)
		require.NoError(t, err)
		assert.Equal(t, 1, moved)
		return errors.New("abort")
	})
	require.Error(t, err)

	p, err := s.GetProduct(ctx, "u1", "prd_1")
	require.NoError(t, err)
	assert.Equal(t, "Phones", p.Category)
	other, err := s.GetProduct(ctx, "u2", "prd_2")
	require.NoError(t, err)
	assert.Equal(t, "Phones", other.Category)
}

func TestReadsAreTenantScoped(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateProduct(ctx, domain.Product{ID: "prd_a", UserID: "u1", Name: "A"}); err != nil {
			return err
		}
		return tx.CreateProduct(ctx, domain.Product{ID: "prd_b", UserID: "u2", Name: "B"})
	}))

	products, err := s.ListProducts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "prd_a", products[0].ID)

	_, err = s.GetProduct(ctx, "u1", "prd_b")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNewSeededCreatesAdminAndUser(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-secret")
	t.Setenv("SEED_USER_PASSWORD", "user-secret")

	s, err := NewSeeded(nil)
	require.NoError(t, err)

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
	assert.Equal(t, domain.RoleUser, users[1].Role)
	assert.NotEqual(t, "admin-secret", users[0].Password)
}
