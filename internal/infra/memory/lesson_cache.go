package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"aura-trainer-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// LessonLoader fetches lesson content from a backing store (e.g., Postgres).
type LessonLoader interface {
	LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// LessonCache caches lessons with TTL to avoid a DB round trip for every
// training round. Concurrent misses for the same lesson collapse into one
// load via singleflight.
type LessonCache struct {
	loader LessonLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedLesson
}

type cachedLesson struct {
	lesson    domain.Lesson
	expiresAt time.Time
}

func NewLessonCache(loader LessonLoader, ttl time.Duration) *LessonCache {
	return &LessonCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedLesson),
	}
}

func (c *LessonCache) Lesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[lessonID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.lesson, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(lessonID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[lessonID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.lesson, nil
		}
		c.mu.RUnlock()

		lesson, err := c.loader.LoadLesson(ctx, lessonID)
		if err != nil {
			return domain.Lesson{}, err
		}

		c.mu.Lock()
		c.cache[lessonID] = cachedLesson{
			lesson:    lesson,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return lesson, nil
	})
	if err != nil {
		return domain.Lesson{}, err
	}
	return result.(domain.Lesson), nil
}

// Invalidate drops a cached lesson after an admin write.
func (c *LessonCache) Invalidate(lessonID string) {
	c.mu.Lock()
	delete(c.cache, lessonID)
	c.mu.Unlock()
}

func (c *LessonCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
