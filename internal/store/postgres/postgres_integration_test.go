package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("TEZGAH_INTEGRATION") != "1" {
		t.Skip("set TEZGAH_INTEGRATION=1 to run postgres integration tests")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tezgah_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate(dsn, nil))
	// a second run is a no-op
	require.NoError(t, Migrate(dsn, nil))

	s, err := New(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestIntegrationStockMovementCommitAndRollback(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	product := domain.Product{
		ID: "prd_it", UserID: "u1", Name: "Phone", Quantity: 10, Unit: "pcs",
		PurchasePrice: decimal.NewFromInt(500), SalePrice: decimal.NewFromInt(1000),
		Currency: domain.CurrencyTRY, MinStockLevel: 2, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateProduct(ctx, product)
	}))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProductForUpdate(ctx, "u1", "prd_it")
		if err != nil {
			return err
		}
		if err := tx.CreateStockMovement(ctx, domain.StockMovement{
			ID: "mov_it_1", UserID: "u1", ProductID: p.ID, Type: domain.MovementOut,
			Quantity: 1, PreviousQuantity: p.Quantity, NewQuantity: p.Quantity - 1, CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.UpdateProductQuantity(ctx, "u1", p.ID, p.Quantity-1, now)
	}))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.UpdateProductQuantity(ctx, "u1", "prd_it", 0, now); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetProduct(ctx, "u1", "prd_it")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Quantity)
	assert.True(t, got.SalePrice.Equal(decimal.NewFromInt(1000)))

	movements, err := s.ListStockMovements(ctx, "u1", "prd_it", 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, 10, movements[0].PreviousQuantity)
	assert.Equal(t, 9, movements[0].NewQuantity)

	_, err = s.GetProduct(ctx, "u2", "prd_it")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIntegrationDuplicateSerialIsRejected(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateProduct(ctx, domain.Product{ID: "prd_s", UserID: "u1", Name: "Phone", Currency: domain.CurrencyTRY, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		return tx.CreateSerial(ctx, domain.ProductSerial{ID: "ser_1", UserID: "u1", ProductID: "prd_s", SerialNumber: "IMEI-1", Status: domain.SerialInStock, CreatedAt: now, UpdatedAt: now})
	}))

	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateSerial(ctx, domain.ProductSerial{ID: "ser_2", UserID: "u1", ProductID: "prd_s", SerialNumber: "IMEI-1", Status: domain.SerialInStock, CreatedAt: now, UpdatedAt: now})
	})
	assert.ErrorIs(t, err, store.ErrDuplicateSerial)

	serial, err := s.FindSerial(ctx, "u1", "IMEI-1")
	require.NoError(t, err)
	assert.Equal(t, "ser_1", serial.ID)
	assert.Nil(t, serial.SoldAt)
}

func TestIntegrationServiceRecordRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	end := now.Add(3 * 24 * time.Hour)
	approved := true

	record := domain.ServiceRecord{
		ID: "svc_it", UserID: "u1", TicketNo: "SRV-20260601-abcd", CustomerName: "Ayse",
		DeviceType: "phone", Status: domain.StatusPendingQCEntry, Currency: domain.CurrencyTRY,
		Price: decimal.NewFromInt(750), PriceApproved: &approved, WarrantyType: domain.WarrantyNone,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateServiceRecord(ctx, record); err != nil {
			return err
		}
		return tx.CreateServiceHistory(ctx, domain.ServiceHistory{
			ID: "hist_it", UserID: "u1", ServiceRecordID: "svc_it", NewStatus: domain.StatusPendingQCEntry, CreatedAt: now,
		})
	}))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetServiceRecordForUpdate(ctx, "u1", "svc_it")
		if err != nil {
			return err
		}
		r.HasWarranty = true
		r.WarrantyType = domain.WarrantyFull
		r.WarrantyDays = 3
		r.WarrantyStart = &now
		r.WarrantyEnd = &end
		return tx.UpdateServiceRecord(ctx, *r)
	}))

	got, err := s.GetServiceRecord(ctx, "u1", "svc_it")
	require.NoError(t, err)
	require.NotNil(t, got.PriceApproved)
	assert.True(t, *got.PriceApproved)
	require.NotNil(t, got.WarrantyEnd)
	assert.True(t, got.WarrantyEnd.Equal(end))

	from, to := domain.WarrantyWindow(now)
	expiring, err := s.ListWarrantiesEndingBetween(ctx, "u1", from, to)
	require.NoError(t, err)
	require.Len(t, expiring, 1)

	history, err := s.ListServiceHistory(ctx, "u1", "svc_it")
	require.NoError(t, err)
	require.Len(t, history, 1)
}
