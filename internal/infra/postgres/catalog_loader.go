package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"skillzone-service/internal/domain"
)

// CatalogLoader loads catalog content from Postgres. Quizzes are stored as
// JSONB documents; lessons and courses as plain rows.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = quizID
	if err := domain.ValidateQuiz(quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (l *CatalogLoader) LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	var lesson domain.Lesson
	err := l.pool.QueryRow(ctx,
		`SELECT id, course_id, title, points_required, points_reward FROM lessons WHERE id=$1`, lessonID,
	).Scan(&lesson.ID, &lesson.CourseID, &lesson.Title, &lesson.PointsRequired, &lesson.PointsReward)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("load lesson: %w", err)
	}
	return lesson, nil
}

func (l *CatalogLoader) LoadCourse(ctx context.Context, courseID string) (domain.Course, error) {
	var (
		course     domain.Course
		courseType string
	)
	err := l.pool.QueryRow(ctx,
		`SELECT id, title, course_type, points_required, quiz_ids FROM courses WHERE id=$1`, courseID,
	).Scan(&course.ID, &course.Title, &courseType, &course.PointsRequired, &course.QuizIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("load course: %w", err)
	}
	course.Type = domain.CourseType(courseType)

	rows, err := l.pool.Query(ctx, `SELECT id FROM lessons WHERE course_id=$1 ORDER BY id`, courseID)
	if err != nil {
		return domain.Course{}, fmt.Errorf("load course lessons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.Course{}, fmt.Errorf("scan course lesson: %w", err)
		}
		course.LessonIDs = append(course.LessonIDs, id)
	}
	if err := rows.Err(); err != nil {
		return domain.Course{}, fmt.Errorf("load course lessons: %w", err)
	}
	return course, nil
}

// Import upserts catalog content in one transaction. Content is validated
// before anything is written.
func (l *CatalogLoader) Import(ctx context.Context, courses []domain.Course, lessons []domain.Lesson, quizzes []domain.Quiz) error {
	for _, q := range quizzes {
		if err := domain.ValidateQuiz(q); err != nil {
			return err
		}
	}
	for _, lesson := range lessons {
		if err := domain.ValidateLesson(lesson); err != nil {
			return err
		}
	}
	for _, c := range courses {
		if err := domain.ValidateCourse(c); err != nil {
			return err
		}
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, c := range courses {
		quizIDs := c.QuizIDs
		if quizIDs == nil {
			quizIDs = []string{}
		}
		batch.Queue(`INSERT INTO courses (id, title, course_type, points_required, quiz_ids)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, course_type=EXCLUDED.course_type,
				points_required=EXCLUDED.points_required, quiz_ids=EXCLUDED.quiz_ids`,
			c.ID, c.Title, string(c.Type), c.PointsRequired, quizIDs)
	}
	for _, lesson := range lessons {
		batch.Queue(`INSERT INTO lessons (id, course_id, title, points_required, points_reward)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET course_id=EXCLUDED.course_id, title=EXCLUDED.title,
				points_required=EXCLUDED.points_required, points_reward=EXCLUDED.points_reward`,
			lesson.ID, lesson.CourseID, lesson.Title, lesson.PointsRequired, lesson.PointsReward)
	}
	for _, q := range quizzes {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal quiz %s: %w", q.ID, err)
		}
		batch.Queue(`INSERT INTO quizzes (id, data) VALUES ($1, $2::jsonb)
			ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, q.ID, string(data))
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("import catalog: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}
	return tx.Commit(ctx)
}
