// Package session wires the transport relay, terminal engine, local
// console and optional mirror into one interactive session and owns
// the ordered shutdown sequence.
package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/xiaoapeng/rtt-shell/internal/console"
	"github.com/xiaoapeng/rtt-shell/internal/mirror"
	"github.com/xiaoapeng/rtt-shell/internal/rtt"
	"github.com/xiaoapeng/rtt-shell/internal/term"
)

// Config describes a session. Transport is required; everything else
// has usable defaults.
type Config struct {
	Transport rtt.Transport

	RxChannel   int
	TxChannel   int
	SearchAddr  uint64
	SearchRange uint64

	// LogPath is the append-only record file; empty disables logging.
	LogPath string
	// MirrorAddr serves a read-only WebSocket mirror when non-empty.
	MirrorAddr string
	// Output is the display writer; defaults to os.Stdout.
	Output io.Writer
	// RawConsole enables raw-mode stdin pumping into the relay.
	// Disabled in tests.
	RawConsole bool
}

// Session is one live bridge between the target and the local
// terminal. Create with Start, tear down with Stop.
type Session struct {
	relay  *rtt.Relay
	engine *term.Engine
	hub    *mirror.Hub
	cons   *console.Console

	quit     chan struct{}
	quitOnce sync.Once
}

// Start brings the session up: record sink and engine first, then the
// relay (channel discovery may take a while on a booting target), then
// the raw console. Partial bring-up is rolled back on failure.
func Start(cfg Config) (*Session, error) {
	s := &Session{quit: make(chan struct{})}

	engine, err := term.StartEngine(term.Config{
		Output:  cfg.Output,
		LogPath: cfg.LogPath,
		OnQuit:  s.requestQuit,
	})
	if err != nil {
		return nil, err
	}
	s.engine = engine

	if cfg.MirrorAddr != "" {
		s.hub = mirror.NewHub()
		go func() {
			if err := s.hub.ListenAndServe(cfg.MirrorAddr); err != nil {
				slog.Error("mirror server stopped", "error", err)
			}
		}()
	}

	relay, err := rtt.Start(rtt.Config{
		Transport:   cfg.Transport,
		Handler:     s,
		RxChannel:   cfg.RxChannel,
		TxChannel:   cfg.TxChannel,
		SearchAddr:  cfg.SearchAddr,
		SearchRange: cfg.SearchRange,
	})
	if err != nil {
		engine.Stop()
		return nil, err
	}
	s.relay = relay

	if cfg.RawConsole {
		cons, err := console.Open()
		if err != nil {
			relay.Stop()
			engine.Stop()
			return nil, err
		}
		s.cons = cons
		cons.Pump(relay.Transmit, s.quit)
	}
	return s, nil
}

// OnReceive forwards target bytes to the terminal engine and any
// mirror viewers. Runs on the relay worker goroutine.
func (s *Session) OnReceive(data []byte) {
	s.engine.Write(data)
	if s.hub != nil {
		s.hub.Broadcast(data)
	}
}

// OnError reports asynchronous relay faults. An interrupt timeout is
// the signal that the target hung or disconnected; everything else is
// a transient transport fault.
func (s *Session) OnError(err error) {
	if errors.Is(err, rtt.ErrInterruptTimeout) {
		slog.Error("target is not responding", "error", err)
		return
	}
	slog.Warn("relay fault", "error", err)
}

// Transmit queues bytes toward the target.
func (s *Session) Transmit(p []byte) error {
	return s.relay.Transmit(p)
}

// Done is closed when the session asks to end (quit signal from the
// byte stream, or Stop).
func (s *Session) Done() <-chan struct{} {
	return s.quit
}

func (s *Session) requestQuit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Stop tears the session down in the mandatory order: stop and join
// the relay worker and watchdog (which then issues the RTT stop
// command), drain and stop the terminal engine (closing the log),
// restore the local terminal last.
func (s *Session) Stop() {
	s.relay.Stop()
	s.engine.Stop()
	if s.cons != nil {
		s.cons.Restore()
	}
	s.requestQuit()
}
