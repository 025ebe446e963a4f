package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/renattofarid/fertiriego/internal/billing"
)

const summaryKeyPrefix = "billing:summary"

// Cache stores document read-models in Redis. Keys embed the document
// version and the as-of date, so a save or a new day never serves a stale
// summary. Forget clears the superseded versions after a save.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func summaryKey(id, version int64, asOf time.Time) string {
	return strings.Join([]string{
		summaryKeyPrefix,
		strconv.FormatInt(id, 10),
		"v" + strconv.FormatInt(version, 10),
		asOf.Format(time.DateOnly),
	}, ":")
}

// FetchSummary returns the cached summary or builds it with loader.
// Concurrent misses on the same key share a single loader call. hit reports
// whether the value came from Redis.
func (c *Cache) FetchSummary(ctx context.Context, id, version int64, asOf time.Time, loader func(context.Context) (billing.Summary, error)) (summary billing.Summary, hit bool, err error) {
	if loader == nil {
		return billing.Summary{}, false, errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		summary, err = loader(ctx)
		return summary, false, err
	}
	key := summaryKey(id, version, asOf)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if err := json.Unmarshal(payload, &summary); err == nil {
			return summary, true, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return billing.Summary{}, false, fmt.Errorf("cache: get %s: %w", key, err)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		s, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		// Write failures are not fatal; the next read rebuilds.
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		return s, nil
	})
	select {
	case <-ctx.Done():
		return billing.Summary{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return billing.Summary{}, false, res.Err
		}
		return res.Val.(billing.Summary), false, nil
	}
}

// Forget drops every cached summary of a document. Keys are scanned with
// the id prefix, so every version and as-of date goes.
func (c *Cache) Forget(ctx context.Context, id int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	pattern := fmt.Sprintf("%s:%d:*", summaryKeyPrefix, id)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
