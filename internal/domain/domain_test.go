package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMovementInOut(t *testing.T) {
	logged, next, err := ComputeMovement(10, MovementIn, 5, true)
	require.NoError(t, err)
	assert.Equal(t, 5, logged)
	assert.Equal(t, 15, next)

	logged, next, err = ComputeMovement(10, MovementOut, 3, true)
	require.NoError(t, err)
	assert.Equal(t, 3, logged)
	assert.Equal(t, 7, next)
}

func TestComputeMovementAdjustmentLogsAbsoluteDelta(t *testing.T) {
	cases := []struct {
		previous, target, logged int
	}{
		{previous: 10, target: 4, logged: 6},
		{previous: 4, target: 10, logged: 6},
		{previous: 7, target: 7, logged: 0},
		{previous: -3, target: 0, logged: 3},
	}
	for _, tc := range cases {
		logged, next, err := ComputeMovement(tc.previous, MovementAdjustment, tc.target, false)
		require.NoError(t, err)
		assert.Equal(t, tc.logged, logged)
		assert.Equal(t, tc.target, next)
	}
}

func TestComputeMovementNegativeStockPolicy(t *testing.T) {
	_, next, err := ComputeMovement(1, MovementOut, 3, true)
	require.NoError(t, err)
	assert.Equal(t, -2, next)

	_, _, err = ComputeMovement(1, MovementOut, 3, false)
	assert.ErrorIs(t, err, ErrNegativeStock)
}

func TestComputeMovementRejectsBadQuantity(t *testing.T) {
	for _, typ := range []MovementType{MovementIn, MovementOut} {
		_, _, err := ComputeMovement(5, typ, 0, true)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	_, _, err := ComputeMovement(5, MovementAdjustment, -1, true)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, _, err = ComputeMovement(5, MovementType("transfer"), 1, true)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestNextServiceStatusReachesDeliveredInEightSteps(t *testing.T) {
	status := StatusPendingQCEntry
	seen := []ServiceStatus{status}
	for {
		next, ok := NextServiceStatus(status)
		if !ok {
			break
		}
		status = next
		seen = append(seen, status)
	}
	assert.Equal(t, StatusDelivered, status)
	assert.Len(t, seen, 9)
	assert.Equal(t, []ServiceStatus{
		StatusPendingQCEntry,
		StatusQCEntryApproved,
		StatusAssignedTechnician,
		StatusWaitingPriceApproval,
		StatusRepairInProgress,
		StatusPendingQCExit,
		StatusQCExitApproved,
		StatusCompleted,
		StatusDelivered,
	}, seen)

	_, ok := NextServiceStatus(StatusCancelled)
	assert.False(t, ok)
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, ServiceStatus("lost").Valid())
}

func TestWarrantyExpiringWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	record := ServiceRecord{HasWarranty: true, WarrantyStart: &start, WarrantyEnd: &end}

	for day := 0; day <= 35; day++ {
		now := start.AddDate(0, 0, day)
		want := day >= 23 && day <= 30
		assert.Equal(t, want, record.WarrantyExpiringAt(now), "day %d", day)
	}

	// Time of day never moves a warranty in or out of the window.
	for _, offset := range []time.Duration{-11 * time.Hour, -time.Hour, time.Hour, 11 * time.Hour} {
		assert.False(t, record.WarrantyExpiringAt(start.AddDate(0, 0, 22).Add(offset)), "day 22 %s", offset)
		assert.True(t, record.WarrantyExpiringAt(start.AddDate(0, 0, 23).Add(offset)), "day 23 %s", offset)
		assert.True(t, record.WarrantyExpiringAt(start.AddDate(0, 0, 30).Add(offset)), "day 30 %s", offset)
		assert.False(t, record.WarrantyExpiringAt(start.AddDate(0, 0, 31).Add(offset)), "day 31 %s", offset)
	}

	record.HasWarranty = false
	assert.False(t, record.WarrantyExpiringAt(start.AddDate(0, 0, 25)))
}

func TestWarrantyWindowCoversWholeDays(t *testing.T) {
	now := time.Date(2026, 3, 24, 9, 30, 0, 0, time.UTC)
	from, to := WarrantyWindow(now)

	assert.Equal(t, time.Date(2026, 3, 24, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestTransactionTypeDirection(t *testing.T) {
	assert.Equal(t, MovementOut, TxSale.StockDirection())
	assert.Equal(t, MovementOut, TxExpense.StockDirection())
	assert.Equal(t, MovementIn, TxPurchase.StockDirection())
	assert.Equal(t, MovementIn, TxIncome.StockDirection())
	assert.True(t, TxSale.IncomeLike())
	assert.False(t, TxPurchase.IncomeLike())
}

func TestTransactionFilterMatches(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	filter := TransactionFilter{From: &from, To: &to, PaymentMethod: PaymentCash}

	assert.True(t, filter.Matches(Transaction{Date: from, PaymentMethod: PaymentCash}))
	assert.False(t, filter.Matches(Transaction{Date: to, PaymentMethod: PaymentCash}))
	assert.False(t, filter.Matches(Transaction{Date: from.Add(time.Hour), PaymentMethod: PaymentBank}))
}
