// Package refresh drives the periodic background refresh of the stock list.
package refresh

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInterval is returned by Start for an interval below one second, the
// resolution of the underlying scheduler.
var ErrInterval = errors.New("refresh interval must be at least one second")

// Timer is a single re-armable periodic trigger. Ticks are delivered on C;
// ticks that arrive while one is still pending are coalesced.
type Timer struct {
	mu       sync.Mutex
	cron     *cron.Cron
	interval time.Duration
	ticks    chan time.Time
	log      *slog.Logger
}

// NewTimer returns a disarmed timer.
func NewTimer(log *slog.Logger) *Timer {
	if log == nil {
		log = slog.Default()
	}
	return &Timer{
		ticks: make(chan time.Time, 1),
		log:   log,
	}
}

// C returns the tick channel. It is never closed.
func (t *Timer) C() <-chan time.Time { return t.ticks }

// Start arms the timer to fire every interval, disarming any previous
// schedule first so at most one schedule is ever live.
func (t *Timer) Start(interval time.Duration) error {
	if interval < time.Second {
		return ErrInterval
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	c := cron.New()
	c.Schedule(cron.Every(interval), cron.FuncJob(t.fire))
	c.Start()
	t.cron = c
	t.interval = interval
	t.log.Info("auto refresh armed", "interval", interval)
	return nil
}

// Stop disarms the timer. Stopping a disarmed timer is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Running reports whether the timer is armed.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cron != nil
}

// Interval returns the armed interval, or zero.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cron == nil {
		return 0
	}
	return t.interval
}

func (t *Timer) stopLocked() {
	if t.cron == nil {
		return
	}
	t.cron.Stop()
	t.cron = nil
	t.interval = 0
	t.log.Info("auto refresh disarmed")
}

// schedules returns the number of live schedule entries.
func (t *Timer) schedules() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cron == nil {
		return 0
	}
	return len(t.cron.Entries())
}

func (t *Timer) fire() {
	select {
	case t.ticks <- time.Now():
	default:
	}
}
