package monitor

import "time"

// Ticker is the part of time.Ticker the monitor needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates the ticker for one monitor run.
type TickerFactory func(interval time.Duration) Ticker

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// NewTimeTicker is the default TickerFactory.
func NewTimeTicker(interval time.Duration) Ticker {
	return timeTicker{ticker: time.NewTicker(interval)}
}
