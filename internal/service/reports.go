package service

import (
	"context"
	"time"

	"tezgah/backend/internal/currency"
	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/report"
)

// Summary folds the ledger between from (inclusive) and to (exclusive) into
// display-currency totals. cashOnly restricts the fold to cash payments.
func (s *Service) Summary(ctx context.Context, from, to *time.Time, display domain.Currency, cashOnly bool) (domain.Summary, error) {
	display, err := normalizeCurrency(display)
	if err != nil {
		return domain.Summary{}, err
	}

	filter := domain.TransactionFilter{From: from, To: to}
	if cashOnly {
		filter.PaymentMethod = domain.PaymentCash
	}
	txs, err := s.ListTransactions(ctx, filter)
	if err != nil {
		return domain.Summary{}, err
	}
	if cashOnly {
		txs = report.CashOnly(txs)
	}
	return report.Summarize(txs, s.currentRate(ctx), display), nil
}

// MonthlyReport buckets the trailing months of the ledger, oldest first.
func (s *Service) MonthlyReport(ctx context.Context, display domain.Currency, months int) (domain.MonthlyReport, error) {
	display, err := normalizeCurrency(display)
	if err != nil {
		return domain.MonthlyReport{}, err
	}
	if months < 1 {
		months = s.reportMonths
	}
	if months > 36 {
		return domain.MonthlyReport{}, invalid("at most 36 months can be reported")
	}

	now := s.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)
	txs, err := s.ListTransactions(ctx, domain.TransactionFilter{From: &from})
	if err != nil {
		return domain.MonthlyReport{}, err
	}
	return report.Monthly(txs, s.currentRate(ctx), display, now, months), nil
}

// ExchangeRate returns the current USD/TRY pair, or nil when none has been
// fetched yet.
func (s *Service) ExchangeRate(ctx context.Context) (*domain.ExchangeRate, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.currentRate(ctx), nil
}

// Convert never fails for lack of a rate; the amount comes back unchanged and
// RateKnown is false.
func (s *Service) Convert(ctx context.Context, req domain.ConvertRequest) (domain.ConvertResponse, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.ConvertResponse{}, err
	}
	from, err := normalizeCurrency(req.From)
	if err != nil {
		return domain.ConvertResponse{}, err
	}
	to, err := normalizeCurrency(req.To)
	if err != nil {
		return domain.ConvertResponse{}, err
	}

	rate := s.currentRate(ctx)
	return domain.ConvertResponse{
		Amount:    currency.Convert(req.Amount, from, to, rate).Round(2),
		Currency:  to,
		RateKnown: rate != nil || from == to,
	}, nil
}
