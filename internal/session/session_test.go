package session

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xiaoapeng/rtt-shell/internal/rtt"
)

// loopTransport is a scriptable in-memory target.
type loopTransport struct {
	mu      sync.Mutex
	pending []byte
	written []byte
}

func (l *loopTransport) Read(channel int, p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return 0, nil
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

func (l *loopTransport) Write(channel int, p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.written = append(l.written, p...)
	return len(p), nil
}

func (l *loopTransport) Control(cmd rtt.Command, dir *int) (int, error) {
	if cmd == rtt.CmdGetNumBuf {
		return 1, nil
	}
	return 0, nil
}

func (l *loopTransport) ExecCommand(text string) error { return nil }

func (l *loopTransport) feed(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, p...)
}

func (l *loopTransport) writtenBytes() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return string(l.written)
}

func TestSessionLogsCompletedLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "session.log")
	tr := &loopTransport{}
	var out bytes.Buffer

	s, err := Start(Config{
		Transport: tr,
		LogPath:   logPath,
		Output:    &out,
	})
	require.NoError(t, err)

	tr.feed([]byte("abc\n"))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(data), ">>>  abc\n")
	}, 5*time.Second, 5*time.Millisecond)

	s.Stop()
}

func TestSessionTransmitReachesTarget(t *testing.T) {
	tr := &loopTransport{}
	var out bytes.Buffer

	s, err := Start(Config{Transport: tr, Output: &out})
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.Transmit([]byte("ls\n")))

	require.Eventually(t, func() bool {
		return tr.writtenBytes() == "ls\n"
	}, 5*time.Second, time.Millisecond)
}

func TestSessionQuitSignalClosesDone(t *testing.T) {
	tr := &loopTransport{}
	var out bytes.Buffer

	s, err := Start(Config{Transport: tr, Output: &out})
	require.NoError(t, err)

	tr.feed([]byte{0x03})

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("quit signal never closed Done")
	}
	s.Stop()
}

func TestSessionStartFailureRollsBack(t *testing.T) {
	tr := &loopTransport{}
	_, err := Start(Config{
		Transport: tr,
		RxChannel: 7, // only one up buffer exists
		Output:    &bytes.Buffer{},
	})
	require.ErrorIs(t, err, rtt.ErrChannelOutOfRange)
}

func TestSessionStopIsIdempotent(t *testing.T) {
	tr := &loopTransport{}
	s, err := Start(Config{Transport: tr, Output: &bytes.Buffer{}})
	require.NoError(t, err)
	s.Stop()
	s.Stop()
}
