package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateQuiz checks a quiz definition before an attempt engine is built on it.
func ValidateQuiz(quiz Quiz) error {
	if err := validate.Struct(quiz); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidQuiz, quiz.ID, err)
	}

	seen := make(map[string]struct{}, len(quiz.Questions))
	for _, q := range quiz.Questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: %s: duplicate question id %q", ErrInvalidQuiz, quiz.ID, q.ID)
		}
		seen[q.ID] = struct{}{}

		for _, idx := range q.CorrectAnswers {
			if idx >= len(q.Options) {
				return fmt.Errorf("%w: %s: question %q correct answer %d out of range", ErrInvalidQuiz, quiz.ID, q.ID, idx)
			}
		}
	}
	return nil
}
