package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"skillzone-service/internal/domain"
	"skillzone-service/internal/infra/memory"
)

func TestCatalogCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{CatalogLoader: mustLoader(t)}
	catalog := NewCatalog(newClient(mr), loader, time.Minute)

	quiz, err := catalog.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 1 || !quiz.Questions[0].Answers[1].IsCorrect {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
	if loader.quizCalls() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.quizCalls())
	}
	if !mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected quiz document in redis")
	}
	if ttl := mr.TTL("quiz:quiz-1"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with up to 10%% jitter, got %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := catalog.GetQuiz(context.Background(), "quiz-1")
	if loader.quizCalls() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.quizCalls())
	}
	if cached.PointsReward != quiz.PointsReward || cached.Questions[0].Answers[1].ID != "a2" {
		t.Fatalf("cached quiz differs: %+v", cached)
	}
}

func TestCatalogCollapsesConcurrentMisses(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{CatalogLoader: mustLoader(t), delay: 20 * time.Millisecond}
	catalog := NewCatalog(newClient(mr), loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := catalog.GetQuiz(context.Background(), "quiz-1"); err != nil {
				t.Errorf("get quiz: %v", err)
			}
		}()
	}
	wg.Wait()
	if loader.quizCalls() != 1 {
		t.Fatalf("expected one load, got %d", loader.quizCalls())
	}
}

func TestCatalogDoesNotCacheMisses(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	catalog := NewCatalog(newClient(mr), mustLoader(t), time.Minute)
	ctx := context.Background()

	if _, err := catalog.GetQuiz(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if mr.Exists("quiz:missing") {
		t.Fatalf("not found must not be cached")
	}
	if _, err := catalog.GetLesson(ctx, "missing"); !errors.Is(err, domain.ErrLessonNotFound) {
		t.Fatalf("expected lesson not found, got %v", err)
	}

	course, err := catalog.GetCourse(ctx, "course-1")
	if err != nil || !course.Gated() {
		t.Fatalf("expected gated course, got %+v err=%v", course, err)
	}
	if err := catalog.Invalidate(ctx, "course:course-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("course:course-1") {
		t.Fatalf("expected course document to be dropped")
	}
}

type countingLoader struct {
	CatalogLoader
	delay time.Duration
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	time.Sleep(l.delay)
	return l.CatalogLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) quizCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func mustLoader(t *testing.T) *memory.StaticCatalogLoader {
	t.Helper()
	loader, err := memory.NewStaticCatalogLoader(memory.CatalogContent{
		Courses: []domain.Course{{ID: "course-1", Type: domain.CourseHard, PointsRequired: 50, QuizIDs: []string{"quiz-1"}}},
		Lessons: []domain.Lesson{{ID: "lesson-1", CourseID: "course-1", PointsRequired: 5}},
		Quizzes: []domain.Quiz{sampleQuiz()},
	})
	if err != nil {
		t.Fatalf("static loader: %v", err)
	}
	return loader
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		TimeLimit:    600,
		PassingScore: 70,
		PointsReward: 20,
		Questions: []domain.Question{
			{
				ID:     "q1",
				Text:   "What is 2 + 2?",
				Points: 1,
				Answers: []domain.Answer{
					{ID: "a1", Text: "3", IsCorrect: false},
					{ID: "a2", Text: "4", IsCorrect: true},
				},
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
