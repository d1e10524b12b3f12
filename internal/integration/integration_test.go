package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"

	"skillzone-service/internal/app"
	"skillzone-service/internal/domain"
	"skillzone-service/internal/infra/postgres"
	pgmigrations "skillzone-service/internal/infra/postgres/migrations"
	infraredis "skillzone-service/internal/infra/redis"
)

type services struct {
	quizzes *app.QuizService
	gate    *app.UnlockGate
	ledger  *app.PointsLedger
	stats   *app.Statistics
}

func TestQuizLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := setup(t, ctx)

	start, err := svc.quizzes.Start(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	again, err := svc.quizzes.Start(ctx, "u1", "quiz-1")
	if err != nil || again.AttemptID != start.AttemptID || !again.Resumed {
		t.Fatalf("expected resume of %s, got %+v err=%v", start.AttemptID, again, err)
	}

	sub := domain.Submission{Answers: map[string]string{"q1": "o2"}, IdempotencyKey: "req-1"}
	res, err := svc.quizzes.Submit(ctx, "u1", "quiz-1", sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 100 || !res.IsPassed || res.PointsEarned != 20 {
		t.Fatalf("unexpected result %+v", res)
	}
	// PERFECT and FAST on a quick perfect pass.
	if res.BonusPoints != 80 || res.Balance != 100 {
		t.Fatalf("expected 80 bonus and balance 100, got %+v", res)
	}

	replayed, err := svc.quizzes.Submit(ctx, "u1", "quiz-1", sub)
	if err != nil || replayed.Attempt.ID != res.Attempt.ID {
		t.Fatalf("expected replay from redis, got %+v err=%v", replayed, err)
	}
	if _, err := svc.quizzes.Submit(ctx, "u1", "quiz-1", domain.Submission{}); !errors.Is(err, domain.ErrNoOpenAttempt) {
		t.Fatalf("expected no open attempt, got %v", err)
	}

	progress, err := svc.quizzes.Progress(ctx, "u1", "quiz-1")
	if err != nil || progress.AttemptsCount != 1 || !progress.Completed || progress.BestScore != 100 {
		t.Fatalf("unexpected progress %+v err=%v", progress, err)
	}

	report, err := svc.stats.QuizStatistics(ctx, "u1", "quiz-1")
	if err != nil || report.Overall.TotalAttempts != 1 || report.Overall.PassRate != 100 {
		t.Fatalf("unexpected statistics %+v err=%v", report, err)
	}
}

func TestStreakAndMasterEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := setup(t, ctx)

	earned := map[domain.AchievementType]int{}
	for i := 0; i < 4; i++ {
		if _, err := svc.quizzes.Start(ctx, "u2", "quiz-1"); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		res, err := svc.quizzes.Submit(ctx, "u2", "quiz-1", domain.Submission{Answers: map[string]string{"q1": "o2"}})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		for _, a := range res.Achievements {
			earned[a]++
		}
	}
	for _, typ := range []domain.AchievementType{domain.AchievementPerfect, domain.AchievementSpeed, domain.AchievementStreak, domain.AchievementMaster} {
		if earned[typ] != 1 {
			t.Fatalf("expected %s once, got %+v", typ, earned)
		}
	}
	account, err := svc.ledger.Account(ctx, "u2")
	if err != nil || account.Balance != 300 {
		t.Fatalf("expected 300 points, got %+v err=%v", account, err)
	}
}

func TestConcurrentUnlockEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := setup(t, ctx)

	if _, err := svc.ledger.Credit(ctx, "u3", 60); err != nil {
		t.Fatalf("credit: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok, dup int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.gate.UnlockCourse(ctx, "u3", "course-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrAlreadyUnlocked):
				dup++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || dup != 7 {
		t.Fatalf("expected exactly one unlock, got ok=%d dup=%d", ok, dup)
	}
	account, _ := svc.ledger.Account(ctx, "u3")
	if account.Balance != 10 {
		t.Fatalf("expected 10 left, got %d", account.Balance)
	}

	if _, err := svc.gate.UnlockLesson(ctx, "u3", "lesson-1"); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := svc.gate.CompleteLesson(ctx, "u3", "lesson-1"); !errors.Is(err, domain.ErrLessonLocked) {
		t.Fatalf("expected locked lesson, got %v", err)
	}
}

func TestLedgerNeverNegativeEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := setup(t, ctx)

	if _, err := svc.ledger.Credit(ctx, "u4", 50); err != nil {
		t.Fatalf("credit: %v", err)
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ledger.Debit(ctx, "u4", 10); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	account, _ := svc.ledger.Account(ctx, "u4")
	if succeeded != 5 || account.Balance != 0 {
		t.Fatalf("expected 5 debits to 0, got %d debits balance %d", succeeded, account.Balance)
	}
}

func TestCourseStatisticsEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := setup(t, ctx)

	if _, err := svc.ledger.Credit(ctx, "u5", 30); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := svc.gate.UnlockLesson(ctx, "u5", "lesson-1"); err != nil {
		t.Fatalf("unlock lesson: %v", err)
	}
	if _, err := svc.gate.CompleteLesson(ctx, "u5", "lesson-1"); err != nil {
		t.Fatalf("complete lesson: %v", err)
	}
	if _, err := svc.quizzes.Start(ctx, "u5", "quiz-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.quizzes.Submit(ctx, "u5", "quiz-1", domain.Submission{Answers: map[string]string{"q1": "o2"}}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	report, err := svc.stats.CourseStatistics(ctx, "u5", "course-1")
	if err != nil {
		t.Fatalf("course statistics: %v", err)
	}
	want := domain.CourseUserStatistics{CompletedLessons: 1, CompletedQuizzes: 1, PointsEarned: 15, CompletionPercentage: 100}
	if report.User != want || report.TotalAttempts != 1 {
		t.Fatalf("unexpected course statistics %+v", report)
	}
}

func setup(t *testing.T, ctx context.Context) services {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := postgres.OpenDB(pgURL)
	t.Cleanup(func() { _ = db.Close() })
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	loader := postgres.NewCatalogLoader(pool)
	err = loader.Import(ctx,
		[]domain.Course{{ID: "course-1", Title: "Python", Type: domain.CourseHard, PointsRequired: 50, QuizIDs: []string{"quiz-1"}}},
		[]domain.Lesson{{ID: "lesson-1", CourseID: "course-1", PointsRequired: 30, PointsReward: 15}},
		[]domain.Quiz{sampleQuiz()},
	)
	if err != nil {
		t.Fatalf("import catalog: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := postgres.NewStore(db, log)
	catalog := infraredis.NewCatalog(redisClient, loader, 5*time.Minute)
	opts := []app.Option{app.WithLogger(log)}
	return services{
		quizzes: app.NewQuizService(store, catalog, infraredis.NewSubmissionCache(redisClient), opts...),
		gate:    app.NewUnlockGate(store, catalog, opts...),
		ledger:  app.NewPointsLedger(store),
		stats:   app.NewStatistics(store, catalog),
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		CourseID:     "course-1",
		Title:        "Arithmetic",
		TimeLimit:    600,
		PassingScore: 70,
		PointsReward: 20,
		Questions: []domain.Question{
			{
				ID:     "q1",
				Text:   "What is 2 + 2?",
				Points: 1,
				Answers: []domain.Answer{
					{ID: "o1", Text: "3", IsCorrect: false},
					{ID: "o2", Text: "4", IsCorrect: true},
					{ID: "o3", Text: "5", IsCorrect: false},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
