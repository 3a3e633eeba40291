package term

import (
	"fmt"
	"io"
	"os"
	"time"
)

// timestampLayout produces "[YYYY-MM-DD HH:MM:SS.mmm]".
const timestampLayout = "[2006-01-02 15:04:05.000]"

// Timestamp formats t the way log records and echoed line prefixes
// expect it.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Recorder is the append-only log sink. One record per completed
// logical line; writes are unbuffered so every record reaches the file
// as soon as the line completes.
type Recorder struct {
	w io.Writer
	c io.Closer
}

// NewRecorder wraps an arbitrary writer, mainly for tests.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// OpenRecorder opens the log file in append mode, creating it if
// absent.
func OpenRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("term: open log file %s: %w", path, err)
	}
	return &Recorder{w: f, c: f}, nil
}

// WriteRecord appends one line record: "<timestamp>>>>  <line>\n".
func (r *Recorder) WriteRecord(timestamp, line string) error {
	if _, err := fmt.Fprintf(r.w, "%s>>>  %s\n", timestamp, line); err != nil {
		return fmt.Errorf("term: write log record: %w", err)
	}
	return nil
}

// Close closes the underlying file, if any.
func (r *Recorder) Close() error {
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}
