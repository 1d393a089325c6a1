// Package report folds transactions into display-currency totals. Nothing here
// is persisted; every read recomputes from the ledger.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"tezgah/backend/internal/currency"
	"tezgah/backend/internal/domain"
)

const DefaultMonths = 6

func Summarize(txs []domain.Transaction, rate *domain.ExchangeRate, display domain.Currency) domain.Summary {
	summary := domain.Summary{
		Currency: display,
		Income:   decimal.Zero,
		Expense:  decimal.Zero,
	}
	for _, tx := range txs {
		amount := currency.Convert(tx.Amount, tx.Currency, display, rate)
		if tx.Type.IncomeLike() {
			summary.Income = summary.Income.Add(amount)
		} else {
			summary.Expense = summary.Expense.Add(amount)
		}
		summary.Count++
	}
	summary.Income = summary.Income.Round(2)
	summary.Expense = summary.Expense.Round(2)
	summary.Net = summary.Income.Sub(summary.Expense)
	return summary
}

// Monthly returns the trailing months buckets ending with the month of now,
// oldest first. Months without transactions are zero-filled and transactions
// outside the window are ignored.
func Monthly(txs []domain.Transaction, rate *domain.ExchangeRate, display domain.Currency, now time.Time, months int) domain.MonthlyReport {
	if months < 1 {
		months = DefaultMonths
	}

	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	buckets := make([]domain.MonthlyBucket, months)
	index := make(map[[2]int]int, months)
	for i := 0; i < months; i++ {
		start := current.AddDate(0, i-months+1, 0)
		buckets[i] = domain.MonthlyBucket{
			Year:    start.Year(),
			Month:   int(start.Month()),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
			Net:     decimal.Zero,
		}
		index[[2]int{start.Year(), int(start.Month())}] = i
	}

	for _, tx := range txs {
		date := tx.Date.In(now.Location())
		i, ok := index[[2]int{date.Year(), int(date.Month())}]
		if !ok {
			continue
		}
		amount := currency.Convert(tx.Amount, tx.Currency, display, rate)
		if tx.Type.IncomeLike() {
			buckets[i].Income = buckets[i].Income.Add(amount)
		} else {
			buckets[i].Expense = buckets[i].Expense.Add(amount)
		}
	}

	for i := range buckets {
		buckets[i].Income = buckets[i].Income.Round(2)
		buckets[i].Expense = buckets[i].Expense.Round(2)
		buckets[i].Net = buckets[i].Income.Sub(buckets[i].Expense)
	}
	return domain.MonthlyReport{Currency: display, Buckets: buckets}
}

func CashOnly(txs []domain.Transaction) []domain.Transaction {
	result := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.PaymentMethod == domain.PaymentCash {
			result = append(result, tx)
		}
	}
	return result
}
