package middleware

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/ratelimit"
)

// RateLimitMiddleware enforces per-admin rate limits.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
	now     func() time.Time
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
		now:     time.Now,
	}
}

// Handle returns a gin middleware limiting the admin stored by RequireAdmin within scope.
// Limiter failures let the request through.
func (m *RateLimitMiddleware) Handle(scope ratelimit.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limiter == nil || !m.rules.Enabled() {
			c.Next()
			return
		}

		adminID := AdminID(c)
		if adminID == "" || m.rules.IsWhitelisted(adminID) {
			c.Next()
			return
		}

		limit, window, err := m.rules.Limit(scope)
		if err != nil {
			m.log.Error("failed to load rate limit", slog.String("scope", string(scope)), slog.Any("error", err))
			c.Next()
			return
		}

		result, err := m.limiter.Check(c.Request.Context(), ratelimit.Key(scope, adminID), limit, window)
		if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
			m.log.Warn("rate limiter error", slog.String("admin_id", adminID), slog.Any("error", err))
			c.Next()
			return
		}

		if result != nil {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}

		if errors.Is(err, ratelimit.ErrLimitExceeded) || (result != nil && !result.Allowed) {
			retryAfter := result.RetryAfter(m.now())
			m.log.Warn("rate limit exceeded",
				slog.String("admin_id", adminID),
				slog.String("scope", string(scope)),
				slog.Int("retry_after", retryAfter),
			)
			c.Set(retryAfterKey, retryAfter)
			Fail(c, apperrors.NewRateLimitError(retryAfter), nil)
			return
		}

		c.Next()
	}
}
