package engine

import "time"

// Ticker is the repeating schedule driving the countdown.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc builds a ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

// NewStdTicker wraps time.Ticker.
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }

func (s stdTicker) Stop() { s.t.Stop() }
