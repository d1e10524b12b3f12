package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateQuiz checks catalog content before the engine grades against it.
// Every question must carry exactly one correct answer.
func ValidateQuiz(q Quiz) error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: quiz %s: %v", ErrInvalidQuiz, q.ID, err)
	}
	for _, question := range q.Questions {
		correct := 0
		for _, a := range question.Answers {
			if a.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: quiz %s question %s has %d correct answers", ErrInvalidQuiz, q.ID, question.ID, correct)
		}
	}
	return nil
}

// ValidateLesson checks lesson gating attributes.
func ValidateLesson(l Lesson) error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("invalid lesson %s: %w", l.ID, err)
	}
	return nil
}

// ValidateCourse checks course gating attributes.
func ValidateCourse(c Course) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid course %s: %w", c.ID, err)
	}
	return nil
}
