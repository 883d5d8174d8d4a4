// Package blockindex answers "which users are in a block relationship with
// U" for the matchmaker. It is a read-through cache over the block store:
// lookups hit Redis first and fall back to PostgreSQL on a miss, caching the
// result with a short TTL. The cache treats either block direction as
// blocking, so the matchmaker only ever sees one flattened id set.
//
//	Key:   blockset:<user_id>
//	Value: Set of user ids (sentinel member when the set is empty)
//	TTL:   60s
package blockindex

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strangerhub/realtime/internal/block"
)

const (
	// keyPrefix is the Redis key prefix for cached block sets.
	keyPrefix = "blockset:"

	// cacheTTL bounds staleness: a freshly created block takes at most
	// this long to affect matchmaking.
	cacheTTL = 60 * time.Second

	// emptyMarker is stored as the sole member of a cached set when the
	// user has no block relationships, so that an empty result is still
	// distinguishable from a cache miss.
	emptyMarker = "__none__"
)

// Lister is the slice of the block store the index depends on.
type Lister interface {
	ListBlocksInvolving(ctx context.Context, userID string) ([]block.Record, error)
}

// Index is the read-through block cache. A nil Redis client disables
// caching entirely; every lookup then queries the store directly.
type Index struct {
	rdb   *redis.Client
	store Lister
}

// New creates an Index over the given store, caching in rdb. Pass a nil
// client to run without a cache.
func New(rdb *redis.Client, store Lister) *Index {
	return &Index{rdb: rdb, store: store}
}

// BlockedSet returns the set of user ids that must not be matched with
// userID: everyone the user blocked plus everyone who blocked the user.
// Redis errors fail open to a direct store query so a cache outage never
// blocks matchmaking.
func (i *Index) BlockedSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	if i.rdb == nil {
		return i.fetchSet(ctx, userID)
	}

	key := keyPrefix + userID
	members, err := i.rdb.SMembers(ctx, key).Result()
	if err != nil {
		log.Printf("[blockindex] redis SMEMBERS error key=%s: %v (falling back to store)", key, err)
		return i.fetchSet(ctx, userID)
	}

	if len(members) > 0 {
		set := make(map[string]struct{}, len(members))
		for _, m := range members {
			if m == emptyMarker {
				continue
			}
			set[m] = struct{}{}
		}
		return set, nil
	}

	// Cache miss — load from the store and populate the cache.
	set, err := i.fetchSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	fill := make([]interface{}, 0, len(set)+1)
	for id := range set {
		fill = append(fill, id)
	}
	if len(fill) == 0 {
		fill = append(fill, emptyMarker)
	}

	pipe := i.rdb.Pipeline()
	pipe.SAdd(ctx, key, fill...)
	pipe.Expire(ctx, key, cacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		// Cache population failure is not a lookup failure.
		log.Printf("[blockindex] redis fill error key=%s: %v", key, err)
	}

	return set, nil
}

// Invalidate drops the cached set for a user, forcing the next lookup to
// hit the store. Called when a block involving the user is created or
// removed. A nil client makes this a no-op.
func (i *Index) Invalidate(ctx context.Context, userID string) {
	if i.rdb == nil {
		return
	}
	if err := i.rdb.Del(ctx, keyPrefix+userID).Err(); err != nil {
		log.Printf("[blockindex] redis DEL error user=%s: %v", userID, err)
	}
}

// fetchSet queries the store and flattens the records into a single set
// containing the other party of every block involving userID.
func (i *Index) fetchSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	records, err := i.store.ListBlocksInvolving(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.BlockerID != userID {
			set[r.BlockerID] = struct{}{}
		}
		if r.BlockedID != userID {
			set[r.BlockedID] = struct{}{}
		}
	}
	return set, nil
}
