package syncer

import "time"

// DefaultInterval is the period between background sync cycles.
const DefaultInterval = 60 * time.Second

// Timer abstracts the tick source driving the sync loop so tests can step
// it deterministically without wall-clock waits.
type Timer interface {
	C() <-chan time.Time
	Stop()
}

type tickerTimer struct {
	ticker *time.Ticker
}

// NewTicker returns a Timer backed by a time.Ticker.
func NewTicker(interval time.Duration) Timer {
	return &tickerTimer{ticker: time.NewTicker(interval)}
}

func (t *tickerTimer) C() <-chan time.Time {
	return t.ticker.C
}

func (t *tickerTimer) Stop() {
	t.ticker.Stop()
}

// ManualTimer is a hand-driven Timer for tests.
type ManualTimer struct {
	ch chan time.Time
}

// NewManualTimer returns a timer that only ticks when Tick is called.
func NewManualTimer() *ManualTimer {
	return &ManualTimer{ch: make(chan time.Time)}
}

func (t *ManualTimer) C() <-chan time.Time { return t.ch }

func (t *ManualTimer) Stop() {}

// Tick delivers one tick, blocking until the loop receives it.
func (t *ManualTimer) Tick() {
	t.ch <- time.Now()
}
