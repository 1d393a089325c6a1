package cache

import (
	"context"
	"time"

	"tezgah/backend/internal/domain"
)

// RateKey is the shared key under which the current USD/TRY pair is stored.
const RateKey = "tezgah:fx:usd_try"

// RateCache shares the last fetched exchange rate between server instances.
type RateCache interface {
	Get(ctx context.Context, key string) (*domain.ExchangeRate, bool, error)
	Set(ctx context.Context, key string, value *domain.ExchangeRate, ttl time.Duration) error
}

type NoopRateCache struct{}

func (NoopRateCache) Get(_ context.Context, _ string) (*domain.ExchangeRate, bool, error) {
	return nil, false, nil
}

func (NoopRateCache) Set(_ context.Context, _ string, _ *domain.ExchangeRate, _ time.Duration) error {
	return nil
}
