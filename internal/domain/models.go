package domain

import "time"

// Difficulty grades quizzes for display; it does not affect scoring.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// QuestionType mirrors the authoring tool's question kinds. All kinds are
// graded by a single chosen answer.
type QuestionType string

const (
	QuestionMCQ   QuestionType = "MCQ"
	QuestionTF    QuestionType = "TF"
	QuestionShort QuestionType = "SHORT"
	QuestionMatch QuestionType = "MATCH"
)

// Answer is one option of a question. Points is authoring metadata; grading
// weighs the question, not the answer.
type Answer struct {
	ID        string `json:"id" yaml:"id" validate:"required"`
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"isCorrect" yaml:"isCorrect"`
	Points    int    `json:"points,omitempty" yaml:"points,omitempty" validate:"gte=0"`
}

// Question is a single gradeable item weighted by Points.
type Question struct {
	ID          string       `json:"id" yaml:"id" validate:"required"`
	Text        string       `json:"text" yaml:"text"`
	Type        QuestionType `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=MCQ TF SHORT MATCH"`
	Points      int          `json:"points" yaml:"points" validate:"gte=0"`
	Explanation string       `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Answers     []Answer     `json:"answers" yaml:"answers" validate:"required,min=1,dive"`
}

// Quiz is catalog content; the engine only reads it.
type Quiz struct {
	ID           string     `json:"id" yaml:"id" validate:"required"`
	CourseID     string     `json:"courseId" yaml:"courseId"`
	LessonID     string     `json:"lessonId,omitempty" yaml:"lessonId,omitempty"`
	Title        string     `json:"title" yaml:"title"`
	Description  string     `json:"description" yaml:"description"`
	Difficulty   Difficulty `json:"difficulty,omitempty" yaml:"difficulty,omitempty" validate:"omitempty,oneof=EASY MEDIUM HARD"`
	TimeLimit    int        `json:"timeLimit" yaml:"timeLimit" validate:"gt=0"`
	PassingScore int        `json:"passingScore" yaml:"passingScore" validate:"gte=0,lte=100"`
	PointsReward int        `json:"pointsReward" yaml:"pointsReward" validate:"gte=0"`
	MaxAttempts  int        `json:"maxAttempts" yaml:"maxAttempts" validate:"gte=0"`
	IsRandomized bool       `json:"isRandomized" yaml:"isRandomized"`
	Questions    []Question `json:"questions" yaml:"questions" validate:"dive"`
}

// TimeLimitDuration returns the time limit as a duration.
func (q Quiz) TimeLimitDuration() time.Duration {
	return time.Duration(q.TimeLimit) * time.Second
}

// CourseType decides whether a course is points-gated.
type CourseType string

const (
	CourseSoft CourseType = "SOFT"
	CourseHard CourseType = "HARD"
)

// Course is catalog content.
type Course struct {
	ID             string     `json:"id" yaml:"id" validate:"required"`
	Title          string     `json:"title" yaml:"title"`
	Type           CourseType `json:"courseType" yaml:"courseType" validate:"oneof=SOFT HARD"`
	PointsRequired int        `json:"pointsRequired" yaml:"pointsRequired" validate:"gte=0"`
	QuizIDs        []string   `json:"quizIds" yaml:"quizIds"`
	// LessonIDs is derived from the lessons that name this course.
	LessonIDs []string `json:"lessonIds,omitempty" yaml:"-"`
}

// Gated reports whether accessing the course costs points.
func (c Course) Gated() bool {
	return c.Type == CourseHard && c.PointsRequired > 0
}

// Lesson is catalog content.
type Lesson struct {
	ID             string `json:"id" yaml:"id" validate:"required"`
	CourseID       string `json:"courseId" yaml:"courseId"`
	Title          string `json:"title" yaml:"title"`
	PointsRequired int    `json:"pointsRequired" yaml:"pointsRequired" validate:"gte=0"`
	PointsReward   int    `json:"pointsReward" yaml:"pointsReward" validate:"gte=0"`
}

// Gated reports whether accessing the lesson costs points.
func (l Lesson) Gated() bool {
	return l.PointsRequired > 0
}

// PointsAccount holds the spendable balance of a user.
type PointsAccount struct {
	UserID  string `json:"userId"`
	Balance int    `json:"balance"`
}

// QuizAttempt is one timed pass at a quiz. CompletedAt is nil while open.
type QuizAttempt struct {
	ID          string     `json:"id"`
	QuizID      string     `json:"quizId"`
	UserID      string     `json:"userId"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Score       float64    `json:"score"`
	IsPassed    bool       `json:"isPassed"`
}

// Open reports whether the attempt has not been closed yet.
func (a QuizAttempt) Open() bool {
	return a.CompletedAt == nil
}

// Duration is the time between start and completion; zero while open.
func (a QuizAttempt) Duration() time.Duration {
	if a.CompletedAt == nil {
		return 0
	}
	return a.CompletedAt.Sub(a.StartedAt)
}

// QuizProgress aggregates all closed attempts of a user on a quiz.
type QuizProgress struct {
	UserID          string     `json:"userId"`
	QuizID          string     `json:"quizId"`
	BestScore       float64    `json:"bestScore"`
	AttemptsCount   int        `json:"attemptsCount"`
	TotalTimeSpent  int        `json:"totalTimeSpent"`
	LastAttemptDate *time.Time `json:"lastAttemptDate,omitempty"`
	Completed       bool       `json:"completed"`
}

// AchievementType names a one-time quiz badge.
type AchievementType string

const (
	AchievementPerfect AchievementType = "PERFECT"
	AchievementSpeed   AchievementType = "FAST"
	AchievementStreak  AchievementType = "STREAK"
	AchievementMaster  AchievementType = "MASTER"
)

// QuizAchievement is immutable once created.
type QuizAchievement struct {
	UserID      string          `json:"userId"`
	QuizID      string          `json:"quizId"`
	Type        AchievementType `json:"type"`
	BonusPoints int             `json:"bonusPoints"`
	EarnedAt    time.Time       `json:"earnedAt"`
}

// TargetKind distinguishes lesson and course unlocks.
type TargetKind string

const (
	TargetLesson TargetKind = "lesson"
	TargetCourse TargetKind = "course"
)

// Unlock records a spend for gated content. One per (user, kind, target).
type Unlock struct {
	UserID      string     `json:"userId"`
	Kind        TargetKind `json:"kind"`
	TargetID    string     `json:"targetId"`
	PointsSpent int        `json:"pointsSpent"`
	UnlockedAt  time.Time  `json:"unlockedAt"`
}

// LessonCompletion records that a user finished a lesson. One per (user, lesson).
type LessonCompletion struct {
	UserID       string    `json:"userId"`
	LessonID     string    `json:"lessonId"`
	PointsEarned int       `json:"pointsEarned"`
	CompletedAt  time.Time `json:"completedAt"`
}
