package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizzer/internal/domain"
)

// FeedLoader builds a course's question feed from a backing store.
type FeedLoader interface {
	LoadFeed(ctx context.Context, courseID string) ([]domain.QuestionView, error)
}

// FeedCache caches question feeds in Redis and falls back to a loader on cache miss.
// Feeds are stored as JSON: SET course:{courseID}:feed [...] EX ttl
// Invalidate bumps course:{courseID}:feed:version; a load only writes the
// feed back while the version it started with is still current.
type FeedCache struct {
	client *redis.Client
	loader FeedLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewFeedCache(client *redis.Client, loader FeedLoader, ttl time.Duration) *FeedCache {
	return &FeedCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *FeedCache) GetFeed(ctx context.Context, courseID string) ([]domain.QuestionView, error) {
	key := feedKey(courseID)
	if feed, ok := c.cached(ctx, key); ok {
		return feed, nil
	}

	version, err := c.version(ctx, courseID)
	if err != nil {
		return nil, err
	}
	result, err, _ := c.sf.Do(courseID+":"+version, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if feed, ok := c.cached(ctx, key); ok {
			return feed, nil
		}

		feed, err := c.loader.LoadFeed(ctx, courseID)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(feed)
		if err != nil {
			return nil, fmt.Errorf("encode feed: %w", err)
		}
		// best-effort: a failed or skipped write only costs another load
		_ = c.storeIfCurrent(ctx, courseID, version, payload)
		return feed, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionView), nil
}

// Invalidate drops the cached feed of a course and retires loads in flight.
func (c *FeedCache) Invalidate(ctx context.Context, courseID string) error {
	if err := c.client.Incr(ctx, versionKey(courseID)).Err(); err != nil {
		return fmt.Errorf("invalidate feed %s: %w", courseID, err)
	}
	if err := c.client.Del(ctx, feedKey(courseID)).Err(); err != nil {
		return fmt.Errorf("invalidate feed %s: %w", courseID, err)
	}
	return nil
}

func (c *FeedCache) version(ctx context.Context, courseID string) (string, error) {
	v, err := c.client.Get(ctx, versionKey(courseID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", nil
	case err != nil:
		return "", fmt.Errorf("feed version %s: %w", courseID, err)
	}
	return v, nil
}

// storeIfCurrent writes the feed inside a WATCH on the version key, so an
// Invalidate between the version read and the write aborts the write.
func (c *FeedCache) storeIfCurrent(ctx context.Context, courseID, version string, payload []byte) error {
	vkey := versionKey(courseID)
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Result()
		if errors.Is(err, redis.Nil) {
			current, err = "0", nil
		}
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, feedKey(courseID), payload, c.ttlWithJitter())
			return nil
		})
		return err
	}, vkey)
}

func (c *FeedCache) cached(ctx context.Context, key string) ([]domain.QuestionView, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var feed []domain.QuestionView
	if err := json.Unmarshal(payload, &feed); err != nil {
		return nil, false
	}
	if feed == nil {
		feed = []domain.QuestionView{}
	}
	return feed, true
}

func feedKey(courseID string) string {
	return "course:" + courseID + ":feed"
}

func versionKey(courseID string) string {
	return feedKey(courseID) + ":version"
}

func (c *FeedCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
