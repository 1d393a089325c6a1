package currency

import (
	"github.com/shopspring/decimal"

	"tezgah/backend/internal/domain"
)

// Convert turns amount in from into to using rate. With no rate loaded, or
// when the currencies match, the amount is returned unchanged.
func Convert(amount decimal.Decimal, from, to domain.Currency, rate *domain.ExchangeRate) decimal.Decimal {
	from, to = normalize(from), normalize(to)
	if from == to || rate == nil {
		return amount
	}
	switch {
	case from == domain.CurrencyUSD && to == domain.CurrencyTRY:
		return amount.Mul(rate.USDToTRY)
	case from == domain.CurrencyTRY && to == domain.CurrencyUSD:
		return amount.Mul(rate.TRYToUSD)
	default:
		return amount
	}
}

func ToTRY(amount decimal.Decimal, from domain.Currency, rate *domain.ExchangeRate) decimal.Decimal {
	return Convert(amount, from, domain.CurrencyTRY, rate)
}

func ToUSD(amount decimal.Decimal, from domain.Currency, rate *domain.ExchangeRate) decimal.Decimal {
	return Convert(amount, from, domain.CurrencyUSD, rate)
}

// NewRate builds a pair whose TRY->USD side is the reciprocal of usdToTRY.
func NewRate(usdToTRY decimal.Decimal) *domain.ExchangeRate {
	return &domain.ExchangeRate{
		USDToTRY: usdToTRY,
		TRYToUSD: decimal.NewFromInt(1).DivRound(usdToTRY, 16),
	}
}

// normalize treats an unset currency as the home currency.
func normalize(c domain.Currency) domain.Currency {
	if c == "" {
		return domain.CurrencyTRY
	}
	return c
}
