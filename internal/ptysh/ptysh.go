// Package ptysh provides an rtt.Transport backed by a local shell
// running under a PTY. It lets the whole relay/terminal pipeline run
// end to end without probe hardware.
package ptysh

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/xiaoapeng/rtt-shell/internal/rtt"
)

// Transport adapts a PTY master to the non-blocking Transport read
// contract: a pump goroutine drains the blocking PTY reads into an
// internal buffer, and Read hands out whatever has accumulated.
type Transport struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu   sync.Mutex
	buf  []byte
	rerr error

	done chan struct{}
}

var _ rtt.Transport = (*Transport)(nil)

// Start launches shell (default $SHELL, falling back to /bin/sh) under
// a PTY and begins pumping its output.
func Start(shell string) (*Transport, error) {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.Command(shell, "-i")
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("ptysh: start %s: %w", shell, err)
	}
	_ = pty.Setsize(ptmx, &pty.Winsize{Rows: 24, Cols: 80})

	t := &Transport{
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
	}
	go t.pump()
	return t, nil
}

func (t *Transport) pump() {
	defer close(t.done)
	buf := make([]byte, 8192)
	for {
		n, err := t.ptmx.Read(buf)
		if n > 0 {
			t.mu.Lock()
			t.buf = append(t.buf, buf[:n]...)
			t.mu.Unlock()
		}
		if err != nil {
			t.mu.Lock()
			t.rerr = err
			t.mu.Unlock()
			return
		}
	}
}

// Read drains up to len(p) buffered bytes. Returns 0 when the shell is
// quiet; after the shell exits it keeps returning 0 once the buffer is
// empty, like a target that stopped talking.
func (t *Transport) Read(channel int, p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buf) == 0 {
		if t.rerr != nil && t.rerr != io.EOF {
			err := t.rerr
			t.rerr = nil
			return 0, err
		}
		return 0, nil
	}
	n := copy(p, t.buf)
	t.buf = t.buf[n:]
	if len(t.buf) == 0 {
		t.buf = nil
	}
	return n, nil
}

// Write forwards bytes to the shell's input.
func (t *Transport) Write(channel int, p []byte) (int, error) {
	n, err := t.ptmx.Write(p)
	if err != nil {
		return n, fmt.Errorf("ptysh: write: %w", err)
	}
	return n, nil
}

// Control emulates the RTT control surface: one buffer in each
// direction, start/stop are no-ops.
func (t *Transport) Control(cmd rtt.Command, dir *int) (int, error) {
	if cmd == rtt.CmdGetNumBuf {
		return 1, nil
	}
	return 0, nil
}

// ExecCommand accepts and ignores probe configuration commands.
func (t *Transport) ExecCommand(text string) error {
	return nil
}

// Exited reports when the shell process has gone away.
func (t *Transport) Exited() <-chan struct{} {
	return t.done
}

// Close closes the PTY and terminates the shell, escalating from
// SIGTERM to SIGKILL after a grace period.
func (t *Transport) Close() error {
	_ = t.ptmx.Close()
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Signal(syscall.SIGTERM)
		exited := make(chan struct{})
		go func() {
			_ = t.cmd.Wait()
			close(exited)
		}()
		select {
		case <-exited:
		case <-time.After(2 * time.Second):
			_ = t.cmd.Process.Kill()
		}
	}
	return nil
}
