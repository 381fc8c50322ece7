package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/upb/engine-gateway/services/ratelimit"
	"github.com/upb/engine-gateway/utils"
)

// Limiter decides whether a client may proceed
type Limiter interface {
	CheckLimit(ctx context.Context, key string) (*ratelimit.RateLimitResult, error)
}

// RateLimitRecorder counts rejected requests
type RateLimitRecorder interface {
	RecordRateLimited(ctx context.Context, route string)
}

// RateLimitMiddleware rejects clients that exceed their request rate with 429
type RateLimitMiddleware struct {
	limiter  Limiter
	recorder RateLimitRecorder
	logger   *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware. recorder may be nil.
func NewRateLimitMiddleware(limiter Limiter, recorder RateLimitRecorder, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:  limiter,
		recorder: recorder,
		logger:   logger,
	}
}

// Limit keys requests by client IP. Limiter errors let the request through.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		clientIP := ClientIP(r)

		result, err := m.limiter.CheckLimit(ctx, clientIP)
		if err != nil {
			m.logger.Warn("rate limit check failed",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if !result.Allowed {
			if m.recorder != nil {
				m.recorder.RecordRateLimited(ctx, r.URL.Path)
			}
			m.logger.Warn("rate limit exceeded",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.String("client_ip", clientIP),
				zap.String("path", r.URL.Path))

			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			_ = utils.WriteTooManyRequests(w, "", map[string]interface{}{
				"retry_after_seconds": retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
