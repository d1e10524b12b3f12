package domain

// AnswerOption is an answer as shown to a quiz taker, without correctness.
type AnswerOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is a question as shown to a quiz taker.
type QuestionView struct {
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Points  int            `json:"points"`
	Answers []AnswerOption `json:"answers"`
}

// QuizContent is the public projection of a quiz handed out with an attempt.
type QuizContent struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	TimeLimit    int            `json:"timeLimit"`
	PointsReward int            `json:"pointsReward"`
	Questions    []QuestionView `json:"questions"`
}

// StartResult is returned by start_quiz.
type StartResult struct {
	AttemptID     string      `json:"attemptId"`
	RemainingTime int         `json:"remainingTime"`
	Resumed       bool        `json:"resumed"`
	Quiz          QuizContent `json:"quiz"`
}

// Submission carries the answers of one attempt, keyed by question ID.
type Submission struct {
	Answers        map[string]string
	IdempotencyKey string
}

// SubmitResult is returned by submit_quiz.
type SubmitResult struct {
	Score        float64           `json:"score"`
	IsPassed     bool              `json:"isPassed"`
	PointsEarned int               `json:"pointsEarned"`
	BonusPoints  int               `json:"bonusPoints"`
	Achievements []AchievementType `json:"achievements"`
	Balance      int               `json:"balance"`
	Attempt      QuizAttempt       `json:"attempt"`
}

// UserStatistics summarizes one user's closed attempts on a quiz.
type UserStatistics struct {
	AttemptsCount int     `json:"attemptsCount"`
	BestScore     float64 `json:"bestScore"`
	Passed        bool    `json:"passed"`
}

// QuizStatistics summarizes all closed attempts on a quiz.
type QuizStatistics struct {
	TotalAttempts int     `json:"totalAttempts"`
	PassRate      float64 `json:"passRate"`
	AverageScore  float64 `json:"averageScore"`
	AverageTime   float64 `json:"averageTime"`
}

// QuizStatisticsReport is returned by quiz_statistics.
type QuizStatisticsReport struct {
	User    UserStatistics `json:"userStatistics"`
	Overall QuizStatistics `json:"overallStatistics"`
}

// QuizScore is a per-quiz line of a course report.
type QuizScore struct {
	QuizID        string  `json:"quizId"`
	Title         string  `json:"title"`
	TotalAttempts int     `json:"totalAttempts"`
	PassRate      float64 `json:"passRate"`
	AverageScore  float64 `json:"averageScore"`
}

// CourseUserStatistics is one user's standing in a course.
type CourseUserStatistics struct {
	CompletedLessons     int     `json:"completedLessons"`
	CompletedQuizzes     int     `json:"completedQuizzes"`
	PointsEarned         int     `json:"pointsEarned"`
	CompletionPercentage float64 `json:"completionPercentage"`
}

// CourseStatistics rolls quiz statistics up to a course.
type CourseStatistics struct {
	CourseID      string               `json:"courseId"`
	User          CourseUserStatistics `json:"userStatistics"`
	TotalAttempts int                  `json:"totalAttempts"`
	PassRate      float64              `json:"passRate"`
	AverageScore  float64              `json:"averageScore"`
	Quizzes       []QuizScore          `json:"quizScores"`
}

// UnlockResult is returned by unlock_lesson and unlock_course.
type UnlockResult struct {
	TargetID        string     `json:"targetId"`
	Kind            TargetKind `json:"kind"`
	PointsSpent     int        `json:"pointsSpent"`
	RemainingPoints int        `json:"remainingPoints"`
}

// LessonCompletionResult is returned by complete_lesson.
type LessonCompletionResult struct {
	LessonID     string `json:"lessonId"`
	PointsEarned int    `json:"pointsEarned"`
	TotalPoints  int    `json:"totalPoints"`
}

// Account is the balance view of a user.
type Account struct {
	UserID  string `json:"userId"`
	Balance int    `json:"balance"`
	Level   Level  `json:"level"`
}
