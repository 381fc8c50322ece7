package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long a client's bucket is kept after its last request
const DefaultIdleTTL = 10 * time.Minute

// Config configures per-client token buckets
type Config struct {
	RequestsPerSecond float64 // <= 0 disables limiting
	Burst             int
	IdleTTL           time.Duration
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed    bool
	Limit      float64
	Burst      int
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitService keeps one token bucket per client key in process memory
type RateLimitService struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(cfg Config, logger *zap.Logger) *RateLimitService {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &RateLimitService{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Enabled reports whether requests are limited at all
func (s *RateLimitService) Enabled() bool {
	return s.cfg.RequestsPerSecond > 0
}

// CheckLimit takes one token from key's bucket. A denied request does not
// consume a token; RetryAfter says when one will be available.
func (s *RateLimitService) CheckLimit(ctx context.Context, key string) (*RateLimitResult, error) {
	if !s.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rate limit check canceled: %w", err)
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now

	result := &RateLimitResult{
		Allowed: true,
		Limit:   s.cfg.RequestsPerSecond,
		Burst:   s.cfg.Burst,
	}

	reservation := b.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		result.Allowed = false
		result.RetryAfter = delay
		s.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Duration("retry_after", delay),
		)
	}
	return result, nil
}

// Clients returns the number of tracked client buckets
func (s *RateLimitService) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// sweep drops idle buckets at most once per IdleTTL. Caller holds s.mu.
func (s *RateLimitService) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.cfg.IdleTTL {
		return
	}
	s.lastSweep = now
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) >= s.cfg.IdleTTL {
			delete(s.buckets, key)
		}
	}
}
