package currency

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tezgah/backend/internal/cache"
	"tezgah/backend/internal/domain"
)

const (
	defaultRateTTL      = time.Hour
	defaultRetries      = 3
	defaultRetryBackoff = 500 * time.Millisecond
	failureCooldown     = time.Minute
	refreshTimeout      = 15 * time.Second
)

// Rates serves the current USD/TRY pair. It never returns an error: when the
// provider is unreachable the last good pair is served, which may be nil.
type Rates struct {
	provider Provider
	cache    cache.RateCache
	ttl      time.Duration
	retries  int
	backoff  time.Duration
	logger   *zap.Logger
	now      func() time.Time
	group    singleflight.Group

	mu          sync.RWMutex
	last        *domain.ExchangeRate
	fetchedAt   time.Time
	lastFailure time.Time
}

func NewRates(provider Provider, cacheStore cache.RateCache, ttl time.Duration, retries int, logger *zap.Logger) *Rates {
	if cacheStore == nil {
		cacheStore = cache.NoopRateCache{}
	}
	if ttl <= 0 {
		ttl = defaultRateTTL
	}
	if retries < 1 {
		retries = defaultRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Rates{
		provider: provider,
		cache:    cacheStore,
		ttl:      ttl,
		retries:  retries,
		backoff:  defaultRetryBackoff,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Rates) Current(ctx context.Context) *domain.ExchangeRate {
	if rate, fresh := r.cached(); fresh {
		return rate
	}

	// Shared by every waiting caller; detached from the request that started it.
	v, _, _ := r.group.Do(cache.RateKey, func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return r.refresh(refreshCtx), nil
	})
	rate, _ := v.(*domain.ExchangeRate)
	return copyRate(rate)
}

// cached returns the in-process pair and whether it can be served without a
// refresh. A recent failed refresh also counts as fresh so callers are not
// held up by retries on every request.
func (r *Rates) cached() (*domain.ExchangeRate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	if r.last != nil && now.Sub(r.fetchedAt) < r.ttl {
		return copyRate(r.last), true
	}
	if !r.lastFailure.IsZero() && now.Sub(r.lastFailure) < failureCooldown {
		return copyRate(r.last), true
	}
	return nil, false
}

func (r *Rates) refresh(ctx context.Context) *domain.ExchangeRate {
	if rate, fresh := r.cached(); fresh {
		return rate
	}

	shared, ok, err := r.cache.Get(ctx, cache.RateKey)
	if err != nil {
		r.logger.Warn("exchange rate cache read failed", zap.Error(err))
	}
	if ok && shared != nil && r.now().Sub(shared.FetchedAt) < r.ttl {
		r.store(shared)
		return shared
	}

	if r.provider == nil {
		r.logger.Debug("no exchange rate provider configured")
		return r.fail()
	}

	fetched, err := r.fetch(ctx)
	if err != nil {
		r.logger.Warn("exchange rate refresh failed, serving last good rate",
			zap.Error(err),
			zap.Int("attempts", r.retries),
		)
		return r.fail()
	}

	fetched = copyRate(fetched)
	fetched.FetchedAt = r.now()
	r.store(fetched)
	if err := r.cache.Set(ctx, cache.RateKey, fetched, r.ttl); err != nil {
		r.logger.Warn("exchange rate cache write failed", zap.Error(err))
	}
	r.logger.Info("exchange rate refreshed",
		zap.String("usd_to_try", fetched.USDToTRY.String()),
		zap.Time("timestamp", fetched.Timestamp),
	)
	return fetched
}

func (r *Rates) fetch(ctx context.Context) (*domain.ExchangeRate, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.backoff
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.retries-1)), ctx)

	var rate *domain.ExchangeRate
	err := backoff.Retry(func() error {
		fetched, err := r.provider.Fetch(ctx)
		if err != nil {
			return err
		}
		rate = fetched
		return nil
	}, retry)
	return rate, err
}

func (r *Rates) store(rate *domain.ExchangeRate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = copyRate(rate)
	r.fetchedAt = rate.FetchedAt
	r.lastFailure = time.Time{}
}

func (r *Rates) fail() *domain.ExchangeRate {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFailure = r.now()
	return copyRate(r.last)
}

func copyRate(rate *domain.ExchangeRate) *domain.ExchangeRate {
	if rate == nil {
		return nil
	}
	c := *rate
	return &c
}
