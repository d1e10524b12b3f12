package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"skillzone-service/internal/app"
	"skillzone-service/internal/config"
	"skillzone-service/internal/domain"
	"skillzone-service/internal/infra/memory"
	"skillzone-service/internal/infra/postgres"
	infraredis "skillzone-service/internal/infra/redis"
)

// adapters holds the infrastructure chosen by config: Postgres and Redis
// when configured, in-memory otherwise.
type adapters struct {
	store       app.Store
	catalog     app.Catalog
	submissions app.SubmissionCache
	pgLoader    *postgres.CatalogLoader

	closers []func()
}

func (a *adapters) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildAdapters(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*adapters, error) {
	a := &adapters{}

	var loader memory.CatalogLoader
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.pgLoader = postgres.NewCatalogLoader(pool)
		loader = a.pgLoader

		db := postgres.OpenDB(cfg.Postgres.URL)
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.store = postgres.NewStore(db, log)
		log.Info("using postgres store")
	} else {
		static, err := staticLoader(cfg)
		if err != nil {
			return nil, err
		}
		loader = static
		a.store = memory.NewStore()
		log.Warn("postgres not configured; progress is kept in memory")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.catalog = infraredis.NewCatalog(client, loader, config.TTLDuration(cfg.Redis.TTL, quizTTL))
		a.submissions = infraredis.NewSubmissionCache(client)
	} else {
		a.catalog = memory.NewCatalog(loader, quizTTL)
		a.submissions = memory.NewSubmissionCache()
	}
	return a, nil
}

func staticLoader(cfg config.Config) (*memory.StaticCatalogLoader, error) {
	if cfg.Catalog.Path != "" {
		return memory.LoadCatalogFile(cfg.Catalog.Path)
	}
	return memory.NewStaticCatalogLoader(sampleCatalog())
}

func serviceOptions(cfg config.Config, log logrus.FieldLogger) []app.Option {
	return []app.Option{
		app.WithLogger(log),
		app.WithSpeedRequiresPass(cfg.SpeedRequiresPass()),
		app.WithReplayTTL(config.TTLDuration(cfg.Submissions.ReplayTTL, 24*time.Hour)),
	}
}

// sampleCatalog provides a minimal catalog; point catalog.path at a YAML
// file or configure Postgres for real content.
func sampleCatalog() memory.CatalogContent {
	return memory.CatalogContent{
		Courses: []domain.Course{
			{ID: "python-fundamentals", Title: "Python Programming Fundamentals", Type: domain.CourseHard, PointsRequired: 50, QuizIDs: []string{"python-basics"}},
			{ID: "effective-leadership", Title: "Effective Leadership", Type: domain.CourseSoft},
		},
		Lessons: []domain.Lesson{
			{ID: "python-intro", CourseID: "python-fundamentals", Title: "Introduction", PointsReward: 10},
			{ID: "python-variables", CourseID: "python-fundamentals", Title: "Variables", PointsRequired: 30, PointsReward: 15},
		},
		Quizzes: []domain.Quiz{{
			ID:           "python-basics",
			CourseID:     "python-fundamentals",
			Title:        "Python Basics Quiz",
			Description:  "Test your knowledge of Python fundamentals",
			Difficulty:   domain.DifficultyEasy,
			TimeLimit:    600,
			PassingScore: 70,
			PointsReward: 20,
			MaxAttempts:  3,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Text:   "What is the correct way to declare a variable in Python?",
					Type:   domain.QuestionMCQ,
					Points: 5,
					Answers: []domain.Answer{
						{ID: "a1", Text: "var x = 5"},
						{ID: "a2", Text: "x = 5", IsCorrect: true},
						{ID: "a3", Text: "int x = 5"},
					},
				},
				{
					ID:     "q2",
					Text:   "Python lists are mutable.",
					Type:   domain.QuestionTF,
					Points: 5,
					Answers: []domain.Answer{
						{ID: "a1", Text: "True", IsCorrect: true},
						{ID: "a2", Text: "False"},
					},
				},
			},
		}},
	}
}
