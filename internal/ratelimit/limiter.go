// Package ratelimit provides Redis-backed rate limiting using the INCR +
// EXPIRE fixed window algorithm. It throttles the hot per-user events of the
// realtime engine: message sends and match requests.
package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule defines a rate limiting policy: the Redis key prefix, maximum number
// of requests allowed in the window, and the window duration.
type Rule struct {
	Key    string        // Redis key prefix (e.g., "rl:msg:", "rl:find:")
	Limit  int           // max count in the window
	Window time.Duration // time window
}

// Standard rate limiting rules.
var (
	// RuleMessage allows 10 messages per 10 seconds per user.
	RuleMessage = Rule{Key: "rl:msg:", Limit: 10, Window: 10 * time.Second}

	// RuleFindChat allows 15 match requests per minute per user.
	RuleFindChat = Rule{Key: "rl:find:", Limit: 15, Window: 1 * time.Minute}
)

// Limiter performs rate limiting checks against Redis. A nil client
// disables limiting entirely (every check passes).
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow checks whether the given identifier is within the rate limit defined
// by rule. It increments the counter in Redis and sets the expiry on first
// access.
//
// Returns true if the request is allowed, false if rate limited. On Redis
// errors the method fails open (returns true) so that a Redis outage does
// not block legitimate traffic.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	if l.client == nil {
		return true, nil
	}
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[ratelimit] redis INCR error key=%s: %v (failing open)", key, err)
		return true, err
	}

	// On the first increment, set the expiry to define the window boundary.
	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			log.Printf("[ratelimit] redis EXPIRE error key=%s: %v (failing open)", key, err)
			// The key exists but has no TTL and would persist. Best effort:
			// delete it so it doesn't throttle the identifier forever.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	if int(count) > rule.Limit {
		return false, nil
	}

	return true, nil
}
