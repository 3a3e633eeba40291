// Package console puts the local terminal into raw mode and pumps
// keystrokes to the relay. Keys arrive from the terminal already
// encoded as the CSI sequences the remote side understands, so the
// pump forwards bytes untouched.
package console

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Console is the raw-mode local terminal.
type Console struct {
	fd    int
	state *term.State
}

// Open places stdin into raw mode so individual keystrokes and paste
// events are delivered without line buffering or signal interception.
func Open() (*Console, error) {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("console: enter raw mode: %w", err)
	}
	return &Console{fd: fd, state: state}, nil
}

// Pump reads stdin and forwards each chunk through transmit until
// stdin errors or stop is closed. Runs in its own goroutine.
func (c *Console) Pump(transmit func([]byte) error, stop <-chan struct{}) {
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				slog.Debug("console input closed", "error", err)
				return
			}
			select {
			case <-stop:
				return
			default:
			}
			if n > 0 {
				if err := transmit(buf[:n]); err != nil {
					slog.Warn("transmit failed", "error", err)
				}
			}
		}
	}()
}

// Restore puts the terminal back into its original mode.
func (c *Console) Restore() {
	if err := term.Restore(c.fd, c.state); err != nil {
		slog.Warn("restoring terminal mode failed", "error", err)
	}
}
