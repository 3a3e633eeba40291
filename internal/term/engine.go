package term

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xiaoapeng/rtt-shell/internal/queue"
)

// Config configures an Engine.
type Config struct {
	// Output is the display writer; defaults to os.Stdout.
	Output io.Writer
	// LogPath opens an append-mode record sink at that path. Empty
	// disables logging unless Recorder is set.
	LogPath string
	// Recorder overrides LogPath when non-nil (used by tests and by
	// callers that already own a sink).
	Recorder *Recorder
	// OnQuit fires once per processed batch that contained an
	// interrupt byte.
	OnQuit func()
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Engine owns the receive queue and the single consumer goroutine that
// drives the classifier, editor and record sink. Received chunks go in
// through Write; Stop drains what is queued, joins the goroutine and
// closes the log.
type Engine struct {
	q   *queue.Queue
	ed  *Editor
	rec *Recorder

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartEngine opens the record sink, resets the editor and classifier
// state and spawns the consumer goroutine.
func StartEngine(cfg Config) (*Engine, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	rec := cfg.Recorder
	if rec == nil && cfg.LogPath != "" {
		var err error
		rec, err = OpenRecorder(cfg.LogPath)
		if err != nil {
			return nil, err
		}
	}
	e := &Engine{
		q:    queue.New(),
		ed:   NewEditor(out, rec, cfg.OnQuit, cfg.Now),
		rec:  rec,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go e.run()
	return e, nil
}

// Write enqueues a received chunk and wakes the consumer. Never
// blocks.
func (e *Engine) Write(data []byte) {
	e.q.Push(data)
}

// Stop wakes the consumer, waits for it to drain and exit, then closes
// the record sink. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
		e.q.Wake()
		<-e.done
		if e.rec != nil {
			if err := e.rec.Close(); err != nil {
				slog.Warn("closing log file failed", "error", err)
			}
		}
	})
}

// run blocks on the queue until data or stop arrives. All chunks
// queued at wake-up are merged into one ordered batch; the current
// batch always completes before a stop is honored.
func (e *Engine) run() {
	defer close(e.done)
	for {
		if batch := e.q.Drain(); batch != nil {
			e.ed.ProcessChunk(batch)
			continue
		}
		select {
		case <-e.q.WakeChan():
		case <-e.stop:
			if batch := e.q.Drain(); batch != nil {
				e.ed.ProcessChunk(batch)
			}
			return
		}
	}
}
