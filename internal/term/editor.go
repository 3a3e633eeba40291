package term

import (
	"io"
	"log/slog"
	"time"
)

// Control bytes the editor acts on. Everything else below 0x20 is
// ignored.
const (
	byteInterrupt  = 0x03
	byteBackspace  = 0x08
	byteTab        = 0x09
	byteLineFeed   = 0x0A
	byteCarriageRt = 0x0D
	byteDeleteLine = 0x0E
	byteDelete     = 0x7F
)

// Editor consumes the classifier's token stream, maintains the
// in-progress line buffer and cursor, echoes to the display and
// flushes completed lines to the recorder. It is owned by a single
// goroutine; none of its methods are safe for concurrent use.
type Editor struct {
	out    io.Writer
	rec    *Recorder
	onQuit func()
	now    func() time.Time

	cls      Classifier
	linebuf  []byte
	cursor   int
	newLine  bool
	lineTime string
}

// NewEditor creates an editor writing echo output to out and completed
// lines to rec. onQuit may be nil; now defaults to time.Now.
func NewEditor(out io.Writer, rec *Recorder, onQuit func(), now func() time.Time) *Editor {
	if now == nil {
		now = time.Now
	}
	e := &Editor{out: out, rec: rec, onQuit: onQuit, now: now}
	e.ResetState()
	return e
}

// ResetState clears the line buffer, cursor and classifier state.
func (e *Editor) ResetState() {
	e.cls.Reset()
	e.linebuf = e.linebuf[:0]
	e.cursor = 0
	e.newLine = true
	e.lineTime = ""
}

// ProcessChunk feeds one received chunk through the classifier as one
// ordered batch. If any interrupt byte appeared in the batch, the quit
// callback fires exactly once after the whole batch is processed.
func (e *Editor) ProcessChunk(data []byte) {
	quit := false
	for _, b := range data {
		tok := e.cls.Feed(b)
		switch tok.Action {
		case ActionNone, ActionReset:
		case ActionByte:
			e.handleByte(tok.Byte, &quit)
		case ActionLeft:
			if e.cursor > 0 {
				e.cursor--
				e.echo("\x1B[D")
			}
		case ActionRight:
			if e.cursor < len(e.linebuf) {
				e.cursor++
				e.echo("\x1B[C")
			}
		case ActionOther:
			// Pass unrecognized sequences through for display.
			e.echo(tok.Seq)
		default:
			// Up/Down/Home/End/Delete carry no editing behavior here.
		}
	}
	if quit && e.onQuit != nil {
		e.onQuit()
	}
}

// printable reports whether b is echoed and stored as line content.
// Bytes >= 0x80 are opaque printable data (UTF-8 handled bytewise).
func printable(b byte) bool {
	return (b >= 0x20 && b <= 0x7E) || b >= 0x80
}

func (e *Editor) handleByte(b byte, quit *bool) {
	if printable(b) {
		if e.newLine {
			e.newLine = false
			e.lineTime = Timestamp(e.now())
			e.echo(e.lineTime + ">>>  ")
		}
		e.echoByte(b)
		if e.cursor < len(e.linebuf) {
			e.linebuf[e.cursor] = b
		} else {
			e.linebuf = append(e.linebuf, b)
		}
		e.cursor++
		return
	}

	switch b {
	case byteInterrupt:
		*quit = true
	case byteBackspace, byteDelete:
		if e.cursor > 0 {
			e.linebuf = append(e.linebuf[:e.cursor-1], e.linebuf[e.cursor:]...)
			e.cursor--
			e.echo("\b \b")
		}
	case byteTab:
		e.echo("\t")
	case byteLineFeed:
		e.echo("\n")
		if e.rec != nil {
			if err := e.rec.WriteRecord(e.lineTime, string(e.linebuf)); err != nil {
				slog.Warn("log record write failed", "error", err)
			}
		}
		e.cursor = 0
		e.newLine = true
		e.linebuf = e.linebuf[:0]
	case byteCarriageRt:
		// The cursor returns to column zero but the buffer is kept, so
		// a shorter line typed after CR overwrites the old one in
		// place and the stale tail survives in the buffer. Matches the
		// original firmware-shell behavior; likely a bug there, kept
		// deliberately.
		e.echo("\r" + e.lineTime + ">>>  ")
		e.cursor = 0
	case byteDeleteLine:
		e.echo("\x0e\r")
		e.cursor = 0
		e.linebuf = e.linebuf[:0]
	}
}

func (e *Editor) echo(s string) {
	if _, err := io.WriteString(e.out, s); err != nil {
		slog.Warn("echo write failed", "error", err)
	}
}

// echoByte writes the raw byte; a string conversion would re-encode
// bytes >= 0x80 as UTF-8.
func (e *Editor) echoByte(b byte) {
	if _, err := e.out.Write([]byte{b}); err != nil {
		slog.Warn("echo write failed", "error", err)
	}
}

// Line exposes the current buffer contents, for tests.
func (e *Editor) Line() string { return string(e.linebuf) }

// Cursor exposes the current insertion position, for tests.
func (e *Editor) Cursor() int { return e.cursor }
