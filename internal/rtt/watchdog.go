package rtt

import (
	"sync"
	"time"
)

// Interrupt watchdog defaults.
const (
	interruptByte           = 0x03
	defaultInterruptTimeout = 200 * time.Millisecond
	defaultIsolationWindow  = 50 * time.Millisecond
	defaultWatchdogPoll     = 10 * time.Millisecond
)

// watchdog detects an isolated interrupt byte on the transmit path and
// raises an error if the target stays silent past the timeout window.
// A bare 0x03 usually means the user wants the target to stop or
// respond; silence beyond the timeout is indistinguishable from a hung
// target without this heuristic.
type watchdog struct {
	timeout   time.Duration
	isolation time.Duration
	poll      time.Duration
	onTimeout func()

	mu         sync.Mutex
	pending    bool
	sentAt     time.Time
	lastDataAt time.Time

	stop chan struct{}
	done chan struct{}
}

func newWatchdog(timeout, isolation, poll time.Duration, onTimeout func()) *watchdog {
	if timeout <= 0 {
		timeout = defaultInterruptTimeout
	}
	if isolation <= 0 {
		isolation = defaultIsolationWindow
	}
	if poll <= 0 {
		poll = defaultWatchdogPoll
	}
	return &watchdog{
		timeout:   timeout,
		isolation: isolation,
		poll:      poll,
		onTimeout: onTimeout,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (w *watchdog) start() {
	go w.run()
}

func (w *watchdog) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
		}
		if w.expire() {
			w.onTimeout()
		}
	}
}

// expire reports whether the pending interrupt timed out, clearing the
// pending state if so. The callback fires at most once per interrupt.
func (w *watchdog) expire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pending {
		return false
	}
	if time.Since(w.sentAt) < w.timeout {
		return false
	}
	w.pending = false
	w.sentAt = time.Time{}
	return true
}

// noteTransmit inspects a chunk about to be written to the target. An
// isolated interrupt is exactly one 0x03 byte with no other data
// observed within the isolation window before it.
func (w *watchdog) noteTransmit(data []byte) {
	now := time.Now()
	w.mu.Lock()
	if len(data) == 1 && data[0] == interruptByte &&
		(w.lastDataAt.IsZero() || now.Sub(w.lastDataAt) >= w.isolation) {
		w.pending = true
		w.sentAt = now
	}
	w.lastDataAt = now
	w.mu.Unlock()
}

// noteReceive records target activity; any response while an interrupt
// is pending means the target reacted, so no timeout fires.
func (w *watchdog) noteReceive() {
	w.mu.Lock()
	if w.pending {
		w.pending = false
		w.sentAt = time.Time{}
	}
	w.mu.Unlock()
}

func (w *watchdog) isPending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *watchdog) close() {
	close(w.stop)
	<-w.done
}
