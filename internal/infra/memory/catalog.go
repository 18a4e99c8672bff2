package memory

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"quiz-attempt-service/internal/domain"
)

// StaticQuizLoader serves quizzes from a fixed map (tests, demos, file catalogs).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
}

// Quizzes returns every quiz ordered by id.
func (l *StaticQuizLoader) Quizzes() []domain.Quiz {
	out := make([]domain.Quiz, 0, len(l.quizzes))
	for _, quiz := range l.quizzes {
		out = append(out, quiz)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type catalogFile struct {
	Quizzes []domain.Quiz `yaml:"quizzes"`
}

// LoadCatalog reads a YAML quiz catalog:
//
//	quizzes:
//	  - id: quiz-1
//	    timeLimit: 10
//	    questions: [...]
func LoadCatalog(path string) (*StaticQuizLoader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	quizzes := make(map[string]domain.Quiz, len(file.Quizzes))
	for _, quiz := range file.Quizzes {
		if err := domain.ValidateQuiz(quiz); err != nil {
			return nil, err
		}
		if _, dup := quizzes[quiz.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate quiz id %q in %s", domain.ErrInvalidQuiz, quiz.ID, path)
		}
		quizzes[quiz.ID] = quiz
	}
	return NewStaticQuizLoader(quizzes), nil
}
