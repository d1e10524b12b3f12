package memory

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"skillzone-service/internal/domain"
)

// CatalogLoader fetches course content from a backing store.
type CatalogLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
	LoadCourse(ctx context.Context, courseID string) (domain.Course, error)
}

// Catalog caches quizzes with TTL to avoid repeated DB hits. Lessons and
// courses are read through to the loader.
type Catalog struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewCatalog(loader CatalogLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (c *Catalog) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.quiz, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		c.mu.RUnlock()

		quiz, err := c.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		c.mu.Lock()
		c.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *Catalog) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	return c.loader.LoadLesson(ctx, lessonID)
}

func (c *Catalog) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	return c.loader.LoadCourse(ctx, courseID)
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader is a loader backed by in-memory content (useful for tests/demos).
type StaticCatalogLoader struct {
	quizzes map[string]domain.Quiz
	lessons map[string]domain.Lesson
	courses map[string]domain.Course
}

// CatalogContent is the document layout of a catalog file.
type CatalogContent struct {
	Courses []domain.Course `yaml:"courses"`
	Lessons []domain.Lesson `yaml:"lessons"`
	Quizzes []domain.Quiz   `yaml:"quizzes"`
}

// NewStaticCatalogLoader validates content and indexes it by ID.
func NewStaticCatalogLoader(content CatalogContent) (*StaticCatalogLoader, error) {
	l := &StaticCatalogLoader{
		quizzes: make(map[string]domain.Quiz, len(content.Quizzes)),
		lessons: make(map[string]domain.Lesson, len(content.Lessons)),
		courses: make(map[string]domain.Course, len(content.Courses)),
	}
	for _, q := range content.Quizzes {
		if err := domain.ValidateQuiz(q); err != nil {
			return nil, err
		}
		l.quizzes[q.ID] = q
	}
	for _, lesson := range content.Lessons {
		if err := domain.ValidateLesson(lesson); err != nil {
			return nil, err
		}
		l.lessons[lesson.ID] = lesson
	}
	for _, course := range content.Courses {
		if err := domain.ValidateCourse(course); err != nil {
			return nil, err
		}
		course.LessonIDs = nil
		l.courses[course.ID] = course
	}
	for _, lesson := range content.Lessons {
		if course, ok := l.courses[lesson.CourseID]; ok {
			course.LessonIDs = append(course.LessonIDs, lesson.ID)
			l.courses[lesson.CourseID] = course
		}
	}
	return l, nil
}

// ReadCatalogFile parses a YAML catalog document without validating it.
func ReadCatalogFile(path string) (CatalogContent, error) {
	var content CatalogContent
	data, err := os.ReadFile(path)
	if err != nil {
		return content, fmt.Errorf("read catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, &content); err != nil {
		return content, fmt.Errorf("parse catalog: %w", err)
	}
	return content, nil
}

// LoadCatalogFile reads a YAML catalog document into a validated loader.
func LoadCatalogFile(path string) (*StaticCatalogLoader, error) {
	content, err := ReadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticCatalogLoader(content)
}

func (l *StaticCatalogLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (l *StaticCatalogLoader) LoadLesson(_ context.Context, lessonID string) (domain.Lesson, error) {
	if lesson, ok := l.lessons[lessonID]; ok {
		return lesson, nil
	}
	return domain.Lesson{}, domain.ErrLessonNotFound
}

func (l *StaticCatalogLoader) LoadCourse(_ context.Context, courseID string) (domain.Course, error) {
	if course, ok := l.courses[courseID]; ok {
		return course, nil
	}
	return domain.Course{}, domain.ErrCourseNotFound
}
