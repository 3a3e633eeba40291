package term

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testClock = func() time.Time {
	return time.Date(2026, 1, 7, 12, 0, 0, 123000000, time.UTC)
}

const testStamp = "[2026-01-07 12:00:00.123]"

func newTestEditor(t *testing.T, onQuit func()) (*Editor, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, log bytes.Buffer
	ed := NewEditor(&out, NewRecorder(&log), onQuit, testClock)
	return ed, &out, &log
}

func TestLineFlushFormat(t *testing.T) {
	ed, out, log := newTestEditor(t, nil)
	ed.ProcessChunk([]byte("abc\n"))

	require.Equal(t, testStamp+">>>  abc\n", log.String())
	require.Equal(t, testStamp+">>>  abc\n", out.String())
	require.Empty(t, ed.Line())
	require.Zero(t, ed.Cursor())
}

func TestBackspaceAtColumnZeroIsNoop(t *testing.T) {
	ed, out, _ := newTestEditor(t, nil)
	ed.ProcessChunk([]byte{0x08})

	require.Empty(t, out.String())
	require.Empty(t, ed.Line())
	require.Zero(t, ed.Cursor())
}

func TestBackspaceRemovesPreviousChar(t *testing.T) {
	ed, out, _ := newTestEditor(t, nil)
	ed.ProcessChunk([]byte("ab\x08"))

	require.Equal(t, "a", ed.Line())
	require.Equal(t, 1, ed.Cursor())
	require.Contains(t, out.String(), "\b \b")
}

func TestDeleteByteActsAsBackspace(t *testing.T) {
	ed, _, _ := newTestEditor(t, nil)
	ed.ProcessChunk([]byte("ab\x7f"))
	require.Equal(t, "a", ed.Line())
}

func TestCursorMovementBounds(t *testing.T) {
	ed, out, _ := newTestEditor(t, nil)
	ed.ProcessChunk([]byte("ab"))
	// Three lefts: the third must be a silent no-op at column zero.
	ed.ProcessChunk([]byte("\x1b[D\x1b[D\x1b[D"))
	require.Zero(t, ed.Cursor())
	require.Equal(t, 2, bytes.Count(out.Bytes(), []byte("\x1b[D")))

	// Three rights: the third falls off the end and is dropped.
	ed.ProcessChunk([]byte("\x1b[C\x1b[C\x1b[C"))
	require.Equal(t, 2, ed.Cursor())
	require.Equal(t, 2, bytes.Count(out.Bytes(), []byte("\x1b[C")))
}

func TestOverwriteAtCursor(t *testing.T) {
	ed, _, _ := newTestEditor(t, nil)
	ed.ProcessChunk([]byte("abc\x1b[D\x1b[DX"))

	require.Equal(t, "aXc", ed.Line())
	require.Equal(t, 2, ed.Cursor())
}

func TestCarriageReturnKeepsBufferTail(t *testing.T) {
	// CR resets the cursor but not the buffer, so a shorter line after
	// CR only partially overwrites the longer one. Preserved original
	// behavior.
	ed, out, log := newTestEditor(t, nil)
	ed.ProcessChunk([]byte("hello\rha\n"))

	require.Equal(t, testStamp+">>>  hallo\n", log.String())
	require.Contains(t, out.String(), "\r"+testStamp+">>>  ")
	require.Empty(t, ed.Line())
}

func TestDeleteLineClearsBuffer(t *testing.T) {
	ed, out, _ := newTestEditor(t, nil)
	ed.ProcessChunk([]byte("abc\x0e"))

	require.Empty(t, ed.Line())
	require.Zero(t, ed.Cursor())
	require.Contains(t, out.String(), "\x0e\r")
}

func TestTabEchoedWithoutBufferMutation(t *testing.T) {
	ed, out, _ := newTestEditor(t, nil)
	ed.ProcessChunk([]byte("a\tb"))

	require.Equal(t, "ab", ed.Line())
	require.Contains(t, out.String(), "\t")
}

func TestQuitSignalFiresOncePerBatch(t *testing.T) {
	quits := 0
	ed, _, log := newTestEditor(t, func() { quits++ })

	ed.ProcessChunk([]byte("a\x03b\x03c\n"))
	require.Equal(t, 1, quits)
	require.Equal(t, testStamp+">>>  abc\n", log.String())

	ed.ProcessChunk([]byte{0x03})
	require.Equal(t, 2, quits)
}

func TestUnrecognizedEscapePassedThrough(t *testing.T) {
	ed, out, _ := newTestEditor(t, nil)
	ed.ProcessChunk([]byte("a\x1b[31mb"))

	require.Equal(t, "ab", ed.Line())
	require.Contains(t, out.String(), "\x1b[31m")
}

func TestNavigationKeysWithoutEditBehaviorIgnored(t *testing.T) {
	ed, _, _ := newTestEditor(t, nil)
	ed.ProcessChunk([]byte("ab\x1b[A\x1b[B\x1b[H\x1b[F\x1b[3~"))

	require.Equal(t, "ab", ed.Line())
	require.Equal(t, 2, ed.Cursor())
}

func TestHighBytesTreatedAsPrintable(t *testing.T) {
	ed, _, log := newTestEditor(t, nil)
	ed.ProcessChunk([]byte{0xE4, 0xB8, 0xAD, '\n'})

	require.Equal(t, testStamp+">>>  \xe4\xb8\xad\n", log.String())
}

func TestChunkingInvariance(t *testing.T) {
	input := []byte("ab\x1b[D\x08c\nxy\x1b]0;t\x07z\r\x0eq\n")

	wholeEd, wholeOut, wholeLog := newTestEditor(t, nil)
	wholeEd.ProcessChunk(input)

	byteEd, byteOut, byteLog := newTestEditor(t, nil)
	for _, b := range input {
		byteEd.ProcessChunk([]byte{b})
	}

	require.Equal(t, wholeOut.String(), byteOut.String())
	require.Equal(t, wholeLog.String(), byteLog.String())
	require.Equal(t, wholeEd.Line(), byteEd.Line())
	require.Equal(t, wholeEd.Cursor(), byteEd.Cursor())
}
