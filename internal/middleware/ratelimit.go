// Package middleware provides request-scoped HTTP middleware: logging, tracing, token parsing and rate limits.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited = "RATE_LIMITED"

var errNoStore = errors.New("rate limit store unavailable")

// Rule is the budget for one action.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	// Param scopes the budget to a route parameter as well as the caller:
	// with Param "id", joining group 3 does not spend the budget for group 4.
	Param  string
	Policy FailPolicy
}

// Usage is the state of a budget after one hit.
type Usage struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitsEnabled reports whether limits apply. They are off when APP_ENV
// is "test" or "development" (the default).
func RateLimitsEnabled() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return false
	}
	return true
}

// RateLimitKey builds the Redis key of a budget.
func RateLimitKey(name, scope, caller string) string {
	if scope == "" {
		return fmt.Sprintf("rl:%s:%s", name, caller)
	}
	return fmt.Sprintf("rl:%s:%s:%s", name, scope, caller)
}

// Hit spends one unit of the budget at key. The window starts with the
// first hit; a key that lost its expiry gets a fresh one.
func Hit(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (Usage, error) {
	if rdb == nil {
		return Usage{}, errNoStore
	}

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	}); err != nil {
		return Usage{}, err
	}

	retry := ttl.Val()
	if retry < 0 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return Usage{}, err
		}
		retry = window
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Usage{Allowed: count <= limit, Remaining: remaining, RetryAfter: retry}, nil
}

// RateLimit enforces rule per caller: the authenticated user when
// c.Locals("userID") is set, the remote IP otherwise.
func RateLimit(rdb *redis.Client, rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !RateLimitsEnabled() {
			return c.Next()
		}

		caller := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok {
			caller = "user:" + strconv.FormatUint(uint64(uid), 10)
		}
		scope := ""
		if rule.Param != "" {
			scope = rule.Param + "=" + c.Params(rule.Param)
		}

		usage, err := Hit(c.UserContext(), rdb, RateLimitKey(rule.Name, scope, caller), rule.Limit, rule.Window)
		if err != nil {
			if rule.Policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
					"rule", rule.Name, "path", c.Path(), "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "Rate limiting is unavailable, try again shortly",
					"code":  "SERVICE_UNAVAILABLE",
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(usage.Remaining))
		if !usage.Allowed {
			seconds := int(usage.RetryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, slow down",
				"code":  CodeRateLimited,
			})
		}
		return c.Next()
	}
}
