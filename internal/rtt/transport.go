// Package rtt implements the bidirectional relay between a debug
// probe's RTT buffers and the local session, including channel
// discovery, the transmit queue and the interrupt watchdog.
package rtt

// Command is an RTT control command issued through Transport.Control.
// Values match the vendor library's RTTERMINAL command codes.
type Command int

const (
	CmdStart Command = iota
	CmdStop
	CmdGetDesc
	CmdGetNumBuf
	CmdGetStat
)

// Buffer directions for CmdGetNumBuf.
const (
	DirectionUp   = 0 // target -> host
	DirectionDown = 1 // host -> target
)

// Transport is the probe boundary. Read and Write move bytes on a
// numbered RTT channel; a zero count from Read means no data is
// currently available. Control drives channel discovery and start/stop;
// ExecCommand issues free-form probe configuration commands.
type Transport interface {
	Read(channel int, p []byte) (int, error)
	Write(channel int, p []byte) (int, error)
	Control(cmd Command, dir *int) (int, error)
	ExecCommand(text string) error
}

// Handler receives asynchronous relay events. OnReceive is called from
// the relay worker goroutine with each chunk read from the up channel;
// the slice is only valid for the duration of the call. OnError is
// called for non-fatal faults (read/write errors, watchdog timeout);
// the relay keeps running after reporting.
type Handler interface {
	OnReceive(data []byte)
	OnError(err error)
}
