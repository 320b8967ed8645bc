package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizzer/internal/domain"
)

// FeedLoader builds a course's question feed from a backing store.
type FeedLoader interface {
	LoadFeed(ctx context.Context, courseID string) ([]domain.QuestionView, error)
}

// FeedCache caches question feeds with TTL to avoid repeated store hits.
type FeedCache struct {
	loader FeedLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedFeed

	// bumped by Invalidate; a load only fills the cache if it is unchanged
	generations map[string]uint64
}

type cachedFeed struct {
	feed      []domain.QuestionView
	expiresAt time.Time
}

func NewFeedCache(loader FeedLoader, ttl time.Duration) *FeedCache {
	return &FeedCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedFeed),

		generations: make(map[string]uint64),
	}
}

func (c *FeedCache) GetFeed(ctx context.Context, courseID string) ([]domain.QuestionView, error) {
	if feed, ok := c.lookup(courseID, c.clock()); ok {
		return feed, nil
	}

	gen := c.generation(courseID)
	result, err, _ := c.sf.Do(fmt.Sprintf("%s:%d", courseID, gen), func() (interface{}, error) {
		now := c.clock()
		if feed, ok := c.lookup(courseID, now); ok {
			return feed, nil
		}

		feed, err := c.loader.LoadFeed(ctx, courseID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generations[courseID] == gen {
			c.cache[courseID] = cachedFeed{
				feed:      feed,
				expiresAt: now.Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return feed, nil
	})
	if err != nil {
		return nil, err
	}
	return copyFeed(result.([]domain.QuestionView)), nil
}

// Invalidate drops the cached feed of a course. Loads already in flight
// still answer their callers but no longer fill the cache.
func (c *FeedCache) Invalidate(_ context.Context, courseID string) error {
	c.mu.Lock()
	delete(c.cache, courseID)
	c.generations[courseID]++
	c.mu.Unlock()
	return nil
}

func (c *FeedCache) generation(courseID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[courseID]
}

func (c *FeedCache) lookup(courseID string, now time.Time) ([]domain.QuestionView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[courseID]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return copyFeed(entry.feed), true
}

func (c *FeedCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func copyFeed(feed []domain.QuestionView) []domain.QuestionView {
	out := make([]domain.QuestionView, len(feed))
	copy(out, feed)
	return out
}
