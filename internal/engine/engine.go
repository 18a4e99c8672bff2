package engine

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// State is the lifecycle phase of an attempt.
type State string

const (
	NotStarted State = "not-started"
	Running    State = "running"
	Paused     State = "paused"
	Submitted  State = "submitted"
)

// TickInterval is the countdown granularity.
const TickInterval = time.Second

// Options configures an Engine. Zero values fall back to wall-clock
// time, time.Ticker and a time-seeded random source.
type Options struct {
	AttemptID string
	UserID    string
	Now       func() time.Time
	NewTicker TickerFunc
	Rand      *rand.Rand

	// OnChange receives a snapshot after every observable transition,
	// countdown ticks included. It runs while the engine is locked, so it
	// must not block or call back into the engine.
	OnChange func(View)
	// OnComplete receives the finished attempt exactly once.
	OnComplete func(domain.QuizAttempt)
}

// Engine runs a single timed attempt of a quiz. All calls are serialized;
// calls that do not fit the current state are ignored.
type Engine struct {
	quiz      domain.Quiz
	questions []domain.Question
	index     map[string]int
	opts      Options

	mu        sync.Mutex
	state     State
	current   int
	remaining int
	answers   map[string]map[int]struct{}
	// gen identifies the active countdown; ticks carrying an older
	// generation are dropped.
	gen     uint64
	stop    chan struct{}
	attempt *domain.QuizAttempt
}

// New prepares an attempt of quiz. Questions are copied, and shuffled once
// when the quiz asks for randomized order.
func New(quiz domain.Quiz, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewStdTicker
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	questions := make([]domain.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	if quiz.RandomizeQuestions {
		opts.Rand.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	index := make(map[string]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}

	return &Engine{
		quiz:      quiz,
		questions: questions,
		index:     index,
		opts:      opts,
		state:     NotStarted,
		remaining: quiz.TimeLimitSeconds(),
		answers:   make(map[string]map[int]struct{}),
	}
}

// Quiz returns the definition the engine was built from.
func (e *Engine) Quiz() domain.Quiz {
	return e.quiz
}

// Questions returns the working question order.
func (e *Engine) Questions() []domain.Question {
	out := make([]domain.Question, len(e.questions))
	copy(out, e.questions)
	return out
}

// Start begins or resumes the countdown.
func (e *Engine) Start() View {
	e.mu.Lock()
	if e.state != NotStarted && e.state != Paused {
		view := e.viewLocked()
		e.mu.Unlock()
		return view
	}
	e.state = Running
	e.startCountdownLocked()
	view := e.viewLocked()
	e.notifyChange(view)
	e.mu.Unlock()
	return view
}

// Pause freezes the countdown. No tick is applied or published after Pause
// returns.
func (e *Engine) Pause() View {
	e.mu.Lock()
	if e.state != Running {
		view := e.viewLocked()
		e.mu.Unlock()
		return view
	}
	e.stopCountdownLocked()
	e.state = Paused
	view := e.viewLocked()
	e.notifyChange(view)
	e.mu.Unlock()
	return view
}

// SelectAnswer records a choice while the attempt is running. Single-select
// questions keep only the latest option; multi-select questions toggle it.
func (e *Engine) SelectAnswer(questionID string, optionIndex int) View {
	e.mu.Lock()
	pos, ok := e.index[questionID]
	if e.state != Running || !ok || optionIndex < 0 || optionIndex >= len(e.questions[pos].Options) {
		view := e.viewLocked()
		e.mu.Unlock()
		return view
	}

	switch e.questions[pos].Type {
	case domain.SingleSelect:
		e.answers[questionID] = map[int]struct{}{optionIndex: {}}
	case domain.MultiSelect:
		set, ok := e.answers[questionID]
		if !ok {
			set = make(map[int]struct{})
			e.answers[questionID] = set
		}
		if _, picked := set[optionIndex]; picked {
			delete(set, optionIndex)
		} else {
			set[optionIndex] = struct{}{}
		}
	}
	view := e.viewLocked()
	e.notifyChange(view)
	e.mu.Unlock()
	return view
}

// Advance moves to the next question, stopping at the last one.
func (e *Engine) Advance() View {
	return e.move(1)
}

// Retreat moves to the previous question, stopping at the first one.
func (e *Engine) Retreat() View {
	return e.move(-1)
}

func (e *Engine) move(delta int) View {
	e.mu.Lock()
	next := e.current + delta
	if next < 0 || next >= len(e.questions) {
		view := e.viewLocked()
		e.mu.Unlock()
		return view
	}
	e.current = next
	view := e.viewLocked()
	e.notifyChange(view)
	e.mu.Unlock()
	return view
}

// Submit finalizes a running or paused attempt. The boolean reports whether
// this call produced the attempt; later calls return false.
func (e *Engine) Submit() (domain.QuizAttempt, bool) {
	e.mu.Lock()
	if e.state != Running && e.state != Paused {
		e.mu.Unlock()
		return domain.QuizAttempt{}, false
	}
	attempt := e.finishLocked(false)
	view := e.viewLocked()
	e.notifyChange(view)
	e.mu.Unlock()
	e.notifyComplete(attempt)
	return attempt, true
}

// Attempt returns the finished attempt, if any.
func (e *Engine) Attempt() (domain.QuizAttempt, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attempt == nil {
		return domain.QuizAttempt{}, false
	}
	return *e.attempt, true
}

// State returns the current run state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Observe calls fn with the current snapshot while holding the engine lock,
// so no change is published between the snapshot and fn returning.
func (e *Engine) Observe(fn func(View)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.viewLocked())
}

// View returns a snapshot for rendering.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// startCountdownLocked launches the ticker goroutine for a new generation.
// A quiz without a time limit has no countdown.
func (e *Engine) startCountdownLocked() {
	if e.remaining <= 0 {
		return
	}
	e.stopCountdownLocked()
	e.gen++
	e.stop = make(chan struct{})
	go e.countdown(e.gen, e.opts.NewTicker(TickInterval), e.stop)
}

func (e *Engine) stopCountdownLocked() {
	e.gen++
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

func (e *Engine) countdown(gen uint64, ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !e.tick(gen) {
				return
			}
		}
	}
}

// tick applies one second of countdown. It returns false once the
// countdown for gen is over.
func (e *Engine) tick(gen uint64) bool {
	e.mu.Lock()
	if gen != e.gen || e.state != Running {
		e.mu.Unlock()
		return false
	}

	e.remaining--
	if e.remaining > 0 {
		view := e.viewLocked()
		e.notifyChange(view)
		e.mu.Unlock()
		return true
	}

	e.remaining = 0
	attempt := e.finishLocked(true)
	view := e.viewLocked()
	e.notifyChange(view)
	e.mu.Unlock()
	e.notifyComplete(attempt)
	return false
}

func (e *Engine) finishLocked(auto bool) domain.QuizAttempt {
	e.stopCountdownLocked()
	e.state = Submitted

	answers := e.answersLocked()
	attempt := domain.QuizAttempt{
		ID:            e.opts.AttemptID,
		UserID:        e.opts.UserID,
		QuizID:        e.quiz.ID,
		Answers:       answers,
		Score:         Score(e.questions, answers),
		TimeSpent:     e.quiz.TimeLimitSeconds() - e.remaining,
		AutoSubmitted: auto,
		CompletedAt:   e.opts.Now(),
	}
	e.attempt = &attempt
	return attempt
}

// answersLocked returns sorted selections, omitting questions left empty.
func (e *Engine) answersLocked() map[string][]int {
	out := make(map[string][]int, len(e.answers))
	for id, set := range e.answers {
		if len(set) == 0 {
			continue
		}
		out[id] = sortedIndices(set)
	}
	return out
}

func (e *Engine) notifyChange(view View) {
	if e.opts.OnChange != nil {
		e.opts.OnChange(view)
	}
}

func (e *Engine) notifyComplete(attempt domain.QuizAttempt) {
	if e.opts.OnComplete != nil {
		e.opts.OnComplete(attempt)
	}
}

func sortedIndices(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
