package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tezgah/backend/internal/currency"
	"tezgah/backend/internal/domain"
)

func tx(typ domain.TransactionType, amount string, cur domain.Currency, method domain.PaymentMethod, date time.Time) domain.Transaction {
	return domain.Transaction{
		Type:          typ,
		Amount:        decimal.RequireFromString(amount),
		Currency:      cur,
		PaymentMethod: method,
		Date:          date,
	}
}

func TestSummarizeConvertsIntoDisplayCurrency(t *testing.T) {
	day := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	rate := currency.NewRate(decimal.RequireFromString("30"))
	txs := []domain.Transaction{
		tx(domain.TxSale, "1000", domain.CurrencyTRY, domain.PaymentCash, day),
		tx(domain.TxIncome, "10", domain.CurrencyUSD, domain.PaymentBank, day),
		tx(domain.TxPurchase, "400", domain.CurrencyTRY, domain.PaymentCash, day),
		tx(domain.TxExpense, "5", domain.CurrencyUSD, domain.PaymentBank, day),
	}

	summary := Summarize(txs, rate, domain.CurrencyTRY)
	assert.Equal(t, "1300", summary.Income.String())
	assert.Equal(t, "550", summary.Expense.String())
	assert.Equal(t, "750", summary.Net.String())
	assert.Equal(t, 4, summary.Count)

	cash := Summarize(CashOnly(txs), rate, domain.CurrencyTRY)
	assert.Equal(t, "1000", cash.Income.String())
	assert.Equal(t, "400", cash.Expense.String())
	assert.Equal(t, 2, cash.Count)
}

func TestSummarizeWithoutRateSumsRawAmounts(t *testing.T) {
	day := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx(domain.TxSale, "100", domain.CurrencyTRY, domain.PaymentCash, day),
		tx(domain.TxSale, "10", domain.CurrencyUSD, domain.PaymentCash, day),
	}
	summary := Summarize(txs, nil, domain.CurrencyUSD)
	assert.Equal(t, "110", summary.Income.String())
}

func TestMonthlyBucketsAreTrailingAndZeroFilled(t *testing.T) {
	now := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		tx(domain.TxSale, "200", domain.CurrencyTRY, domain.PaymentCash, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		tx(domain.TxExpense, "50", domain.CurrencyTRY, domain.PaymentCash, time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)),
		tx(domain.TxSale, "70", domain.CurrencyTRY, domain.PaymentCash, time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC)),
		tx(domain.TxSale, "999", domain.CurrencyTRY, domain.PaymentCash, time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)),
	}

	monthly := Monthly(txs, nil, domain.CurrencyTRY, now, 6)
	require.Len(t, monthly.Buckets, 6)

	want := [][2]int{{2025, 10}, {2025, 11}, {2025, 12}, {2026, 1}, {2026, 2}, {2026, 3}}
	for i, b := range monthly.Buckets {
		assert.Equal(t, want[i], [2]int{b.Year, b.Month})
	}
	assert.Equal(t, "70", monthly.Buckets[0].Income.String())
	assert.True(t, monthly.Buckets[1].Net.IsZero())
	assert.Equal(t, "-50", monthly.Buckets[3].Net.String())
	assert.Equal(t, "200", monthly.Buckets[5].Income.String())
}

func TestMonthlyDefaultsToSixMonths(t *testing.T) {
	monthly := Monthly(nil, nil, domain.CurrencyUSD, time.Now(), 0)
	assert.Len(t, monthly.Buckets, DefaultMonths)
	assert.Equal(t, domain.CurrencyUSD, monthly.Currency)
}
