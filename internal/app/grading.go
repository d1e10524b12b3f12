package app

import (
	"math/rand"

	"skillzone-service/internal/domain"
)

// grade scores answers against quiz content. Every question adds its points
// to the maximum; a question earns its points only when the chosen answer exists,
// belongs to that question and is correct. Unanswered or unknown answer IDs
// score zero without an error.
func grade(quiz domain.Quiz, answers map[string]string) (earned, maxPoints int, score float64) {
	for _, question := range quiz.Questions {
		maxPoints += question.Points
		chosen, ok := answers[question.ID]
		if !ok {
			continue
		}
		for _, a := range question.Answers {
			if a.ID == chosen && a.IsCorrect {
				earned += question.Points
				break
			}
		}
	}
	if maxPoints == 0 {
		return earned, maxPoints, 0
	}
	score = float64(earned) / float64(maxPoints) * 100
	return earned, maxPoints, score
}

// publicContent hides answer correctness and shuffles questions of
// randomized quizzes. Order is not stable across calls.
func publicContent(quiz domain.Quiz) domain.QuizContent {
	questions := make([]domain.QuestionView, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		options := make([]domain.AnswerOption, 0, len(q.Answers))
		for _, a := range q.Answers {
			options = append(options, domain.AnswerOption{ID: a.ID, Text: a.Text})
		}
		questions = append(questions, domain.QuestionView{
			ID:      q.ID,
			Text:    q.Text,
			Points:  q.Points,
			Answers: options,
		})
	}
	if quiz.IsRandomized {
		rand.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}
	return domain.QuizContent{
		ID:           quiz.ID,
		Title:        quiz.Title,
		Description:  quiz.Description,
		TimeLimit:    quiz.TimeLimit,
		PointsReward: quiz.PointsReward,
		Questions:    questions,
	}
}
