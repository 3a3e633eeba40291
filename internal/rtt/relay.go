package rtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xiaoapeng/rtt-shell/internal/queue"
)

// Discovery retry budget. The target may still be booting when the
// probe attaches, so the control block can take a while to appear.
const (
	defaultFindRetries     = 100
	defaultFindDownRetries = 10
	defaultFindDelay       = 100 * time.Millisecond
	defaultIdleWait        = 100 * time.Microsecond
	readBufSize            = 1024
)

// Config configures a Relay. Transport and Handler are required.
// RxChannel must be >= 0; TxChannel < 0 disables the transmit
// direction. SearchAddr/SearchRange, when non-zero, are sent to the
// probe as an RTT control-block search hint before starting.
type Config struct {
	Transport Transport
	Handler   Handler

	RxChannel   int
	TxChannel   int
	SearchAddr  uint64
	SearchRange uint64

	// Timing knobs, zero means default. Shrunk by tests.
	FindRetries      int
	FindDownRetries  int
	FindDelay        time.Duration
	IdleWait         time.Duration
	InterruptTimeout time.Duration
	IsolationWindow  time.Duration
	WatchdogPoll     time.Duration
}

// Relay owns the worker goroutine moving bytes between the probe and
// the caller, and the interrupt watchdog. Create with Start, tear down
// with Stop.
type Relay struct {
	tr        Transport
	handler   Handler
	rxChannel int
	txChannel int
	idleWait  time.Duration

	txq *queue.Queue
	wd  *watchdog

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Start validates the requested channels against the target's RTT
// control block and spawns the worker and watchdog goroutines. On any
// validation failure after the RTT start command, the channel is torn
// down again before returning; no partially armed state is left
// behind.
func Start(cfg Config) (*Relay, error) {
	if cfg.RxChannel < 0 {
		return nil, fmt.Errorf("%w: rx channel %d is invalid", ErrChannelOutOfRange, cfg.RxChannel)
	}

	if cfg.SearchAddr != 0 {
		cmd := fmt.Sprintf("SetRTTAddr %#x", cfg.SearchAddr)
		if cfg.SearchRange != 0 {
			cmd = fmt.Sprintf("SetRTTSearchRanges %#x %#x", cfg.SearchAddr, cfg.SearchRange)
		}
		if err := cfg.Transport.ExecCommand(cmd); err != nil {
			return nil, fmt.Errorf("rtt: %s: %w", cmd, err)
		}
	}

	if _, err := cfg.Transport.Control(CmdStart, nil); err != nil {
		return nil, fmt.Errorf("rtt: start control command: %w", err)
	}

	retries := cfg.FindRetries
	if retries <= 0 {
		retries = defaultFindRetries
	}
	delay := cfg.FindDelay
	if delay <= 0 {
		delay = defaultFindDelay
	}

	upCount, err := discoverBuffers(cfg.Transport, DirectionUp, retries, delay)
	if err != nil {
		teardown(cfg.Transport)
		return nil, fmt.Errorf("%w: up direction: %v", ErrChannelDiscoveryFailed, err)
	}
	if cfg.RxChannel > upCount {
		teardown(cfg.Transport)
		return nil, fmt.Errorf("%w: rx channel %d, %d up buffers", ErrChannelOutOfRange, cfg.RxChannel, upCount)
	}

	if cfg.TxChannel >= 0 {
		downRetries := cfg.FindDownRetries
		if downRetries <= 0 {
			downRetries = defaultFindDownRetries
		}
		downCount, err := discoverBuffers(cfg.Transport, DirectionDown, downRetries, delay)
		if err != nil {
			teardown(cfg.Transport)
			return nil, fmt.Errorf("%w: down direction: %v", ErrChannelDiscoveryFailed, err)
		}
		if cfg.TxChannel > downCount {
			teardown(cfg.Transport)
			return nil, fmt.Errorf("%w: tx channel %d, %d down buffers", ErrChannelOutOfRange, cfg.TxChannel, downCount)
		}
	}

	idleWait := cfg.IdleWait
	if idleWait <= 0 {
		idleWait = defaultIdleWait
	}

	r := &Relay{
		tr:        cfg.Transport,
		handler:   cfg.Handler,
		rxChannel: cfg.RxChannel,
		txChannel: cfg.TxChannel,
		idleWait:  idleWait,
		txq:       queue.New(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.wd = newWatchdog(cfg.InterruptTimeout, cfg.IsolationWindow, cfg.WatchdogPoll, func() {
		r.handler.OnError(ErrInterruptTimeout)
	})
	r.wd.start()
	go r.run()
	return r, nil
}

func discoverBuffers(tr Transport, direction, retries int, delay time.Duration) (int, error) {
	var err error
	for i := 0; i < retries; i++ {
		dir := direction
		var count int
		count, err = tr.Control(CmdGetNumBuf, &dir)
		if err == nil {
			return count, nil
		}
		time.Sleep(delay)
	}
	return 0, err
}

func teardown(tr Transport) {
	if _, err := tr.Control(CmdStop, nil); err != nil {
		slog.Warn("RTT stop during teardown failed", "error", err)
	}
}

// Transmit queues bytes for the down channel and wakes the worker.
// Returns ErrNoTransmitChannel if the relay was started without one.
func (r *Relay) Transmit(p []byte) error {
	if r.txChannel < 0 {
		return ErrNoTransmitChannel
	}
	r.txq.Push(p)
	return nil
}

// Stop requests the worker to exit, joins the worker and watchdog
// goroutines in that order, then issues the RTT stop command. Safe to
// call more than once.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		r.txq.Wake()
		<-r.done
		r.wd.close()
		if _, err := r.tr.Control(CmdStop, nil); err != nil {
			slog.Warn("RTT stop command failed", "error", err)
		}
	})
}

func (r *Relay) stopRequested() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// run is the worker loop: an explicit drain-transmit / poll-read /
// idle-backoff state machine. Faults are reported through the handler
// and never abort the loop; only a stop request with the transmit
// queue drained exits.
func (r *Relay) run() {
	defer close(r.done)
	scratch := make([]byte, readBufSize)
	var pending []byte

	for {
		// Drain transmit: merge queued chunks with any remainder from
		// a previous partial write and push them to the down channel.
		if drained := r.txq.Drain(); len(drained) > 0 || len(pending) > 0 {
			pending = append(pending, drained...)
			r.wd.noteTransmit(pending)
			n, err := r.tr.Write(r.txChannel, pending)
			if err != nil {
				r.handler.OnError(fmt.Errorf("rtt: write channel %d (%d bytes): %w", r.txChannel, len(pending), err))
			} else if n > 0 {
				pending = pending[n:]
				if len(pending) == 0 {
					pending = nil
				}
			}
			continue
		}

		if r.stopRequested() {
			return
		}

		// Poll read.
		n, err := r.tr.Read(r.rxChannel, scratch)
		switch {
		case err != nil:
			r.handler.OnError(fmt.Errorf("rtt: read channel %d: %w", r.rxChannel, err))
		case n > 0:
			r.wd.noteReceive()
			r.handler.OnReceive(scratch[:n])
		default:
			// Idle backoff: nothing to read. Wait briefly, waking
			// early for new transmit data or a stop request.
			select {
			case <-r.txq.WakeChan():
			case <-r.stop:
			case <-time.After(r.idleWait):
			}
		}
	}
}
