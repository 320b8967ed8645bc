package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizzer/internal/domain"
)

func TestFeedCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{feeds: map[string][]domain.QuestionView{"c1": sampleFeed()}}
	cache := NewFeedCache(newClient(mr), loader, time.Minute)

	if _, err := cache.GetFeed(context.Background(), "c1"); err != nil {
		t.Fatalf("get feed: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.count())
	}
	if !mr.Exists("course:c1:feed") {
		t.Fatalf("expected feed key to be set")
	}

	// Second call should hit cache, loader not incremented.
	feed, err := cache.GetFeed(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get feed 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.count())
	}
	if len(feed) != 1 || feed[0].CorrectOption != "B" || feed[0].OptionB != "4" {
		t.Fatalf("unexpected cached feed %+v", feed)
	}
}

func TestFeedCacheInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	loader := &countingLoader{feeds: map[string][]domain.QuestionView{"c1": sampleFeed()}}
	cache := NewFeedCache(newClient(mr), loader, time.Minute)

	_, _ = cache.GetFeed(ctx, "c1")
	if err := cache.Invalidate(ctx, "c1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("course:c1:feed") {
		t.Fatalf("expected feed key to be removed")
	}
	_, _ = cache.GetFeed(ctx, "c1")
	if loader.count() != 2 {
		t.Fatalf("expected reload, loader calls=%d", loader.count())
	}
}

func TestFeedCacheDoesNotCacheErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewFeedCache(newClient(mr), &countingLoader{}, time.Minute)
	if _, err := cache.GetFeed(context.Background(), "c9"); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}
	if mr.Exists("course:c9:feed") {
		t.Fatalf("expected nothing cached for a failed load")
	}
}

func TestFeedCacheIgnoresLoadStartedBeforeInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	replaced := append(sampleFeed(), domain.QuestionView{QuestionID: 2, Question: "3 + 3?", OptionA: "5", OptionB: "7", OptionC: "6", OptionD: "8", CorrectOption: "C"})
	loader := newGatedLoader(sampleFeed())
	cache := NewFeedCache(newClient(mr), loader, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.GetFeed(ctx, "c1")
	}()
	<-loader.entered

	loader.setFeed(replaced)
	if err := cache.Invalidate(ctx, "c1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	close(loader.release)
	<-done

	if mr.Exists("course:c1:feed") {
		t.Fatalf("a load started before invalidation must not refill the cache")
	}
	feed, err := cache.GetFeed(ctx, "c1")
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	if len(feed) != 2 || feed[1].CorrectOption != "C" {
		t.Fatalf("expected the replaced feed, got %+v", feed)
	}
	if !mr.Exists("course:c1:feed") {
		t.Fatalf("expected the fresh load to be cached")
	}
}

// gatedLoader blocks its first load until release is closed. The feed it
// returns is captured when the load starts.
type gatedLoader struct {
	mu      sync.Mutex
	feed    []domain.QuestionView
	calls   int
	entered chan struct{}
	release chan struct{}
}

func newGatedLoader(feed []domain.QuestionView) *gatedLoader {
	return &gatedLoader{feed: feed, entered: make(chan struct{}), release: make(chan struct{})}
}

func (l *gatedLoader) setFeed(feed []domain.QuestionView) {
	l.mu.Lock()
	l.feed = feed
	l.mu.Unlock()
}

func (l *gatedLoader) LoadFeed(_ context.Context, _ string) ([]domain.QuestionView, error) {
	l.mu.Lock()
	feed := l.feed
	first := l.calls == 0
	l.calls++
	l.mu.Unlock()
	if first {
		close(l.entered)
		<-l.release
	}
	return feed, nil
}

type countingLoader struct {
	mu    sync.Mutex
	calls int
	feeds map[string][]domain.QuestionView
}

func (l *countingLoader) LoadFeed(_ context.Context, courseID string) ([]domain.QuestionView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	feed, ok := l.feeds[courseID]
	if !ok {
		return nil, domain.ErrCourseNotFound
	}
	return feed, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleFeed() []domain.QuestionView {
	return []domain.QuestionView{
		{QuestionID: 1, Question: "What is 2 + 2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "22", CorrectOption: "B"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
