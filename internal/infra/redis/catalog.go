package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"skillzone-service/internal/domain"
)

// CatalogLoader fetches catalog content from the system of record.
type CatalogLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
	LoadCourse(ctx context.Context, courseID string) (domain.Course, error)
}

// Catalog caches catalog documents in Redis as JSON and falls back to a
// loader on cache miss:
//
//	SET quiz:{quizID}     {quiz json}
//	SET lesson:{lessonID} {lesson json}
//	SET course:{courseID} {course json}
//
// Misses are collapsed per key with singleflight. Loader errors, including
// not found, are never cached.
type Catalog struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewCatalog(client *redis.Client, loader CatalogLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Catalog) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.readThrough(ctx, QuizKey(quizID), &quiz, func() (any, error) {
		return c.loader.LoadQuiz(ctx, quizID)
	})
	return quiz, err
}

func (c *Catalog) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	var lesson domain.Lesson
	err := c.readThrough(ctx, LessonKey(lessonID), &lesson, func() (any, error) {
		return c.loader.LoadLesson(ctx, lessonID)
	})
	return lesson, err
}

func (c *Catalog) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	var course domain.Course
	err := c.readThrough(ctx, CourseKey(courseID), &course, func() (any, error) {
		return c.loader.LoadCourse(ctx, courseID)
	})
	return course, err
}

// QuizKey, LessonKey and CourseKey name the cached document of an item.
func QuizKey(quizID string) string     { return "quiz:" + quizID }
func LessonKey(lessonID string) string { return "lesson:" + lessonID }
func CourseKey(courseID string) string { return "course:" + courseID }

// Invalidate drops cached documents so the next read goes to the loader.
func (c *Catalog) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *Catalog) readThrough(ctx context.Context, key string, dst any, load func() (any, error)) error {
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		if json.Unmarshal(raw, dst) == nil {
			return nil
		}
	}

	raw, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			return raw, nil
		}

		doc, err := load()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		// best-effort write; a failed SET only costs another load
		_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dst)
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
