// Package term implements the streaming terminal engine: a byte-wise
// escape-sequence classifier feeding a line editor and an append-only
// timestamped record sink.
package term

// Action classifies one step of the byte stream.
type Action uint8

const (
	// ActionNone: the byte was absorbed into an in-flight sequence, or
	// belonged to a discarded two-byte ESC sequence. Nothing to do.
	ActionNone Action = iota
	// ActionByte: a literal byte, in Token.Byte. Covers printable
	// bytes, UTF-8 continuation bytes and C0 control characters alike.
	ActionByte
	ActionUp
	ActionDown
	ActionLeft
	ActionRight
	ActionHome
	ActionEnd
	ActionDelete
	// ActionOther: a completed escape sequence with no assigned
	// meaning; Token.Seq holds the raw text for verbatim echo.
	ActionOther
	// ActionReset: an invalid or overflowed sequence forced the parser
	// back to a clean state.
	ActionReset
)

// Token is the result of feeding one byte to the Classifier.
type Token struct {
	Action Action
	Byte   byte
	Seq    string
}

type cstate uint8

const (
	stateNone cstate = iota
	stateEsc
	stateCSI
	stateString // OSC, DCS, PM and APC share the string terminator
	stateSS3
	stateWaitST // ESC seen inside a string sequence, expecting '\'
)

// parseBufSize caps how much of an in-flight sequence is accumulated
// before the parser gives up and resets.
const parseBufSize = 64

// Classifier is a single-threaded byte-wise finite state machine. Feed
// consumes exactly one byte per call and every state has a defined
// transition for every byte value.
type Classifier struct {
	state  cstate
	params []byte // CSI parameter and intermediate bytes
	count  int    // string-family accumulation count
	seq    []byte // raw text of the in-flight sequence
}

// Reset returns the classifier to its initial state.
func (c *Classifier) Reset() {
	c.state = stateNone
	c.params = c.params[:0]
	c.count = 0
	c.seq = c.seq[:0]
}

func isCSIFinal(b byte) bool { return b >= 0x40 && b <= 0x7E }

func isMiddleByte(b byte) bool { return b >= 0x20 && b <= 0x2F }

func isParamByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == ';' || b == '?' || b == '>' || b == '<'
}

// Feed advances the state machine by one byte.
func (c *Classifier) Feed(b byte) Token {
	if c.state != stateNone {
		c.seq = append(c.seq, b)
	}

	switch c.state {
	case stateNone:
		if b == 0x1B {
			c.state = stateEsc
			c.params = c.params[:0]
			c.count = 0
			c.seq = append(c.seq[:0], b)
			return Token{Action: ActionNone}
		}
		return Token{Action: ActionByte, Byte: b}

	case stateEsc:
		switch b {
		case '[':
			c.state = stateCSI
		case ']', 'P', '^', '_':
			c.state = stateString
		case 'O':
			c.state = stateSS3
		default:
			// Unrecognized two-byte sequence: discard it silently.
			c.state = stateNone
		}
		return Token{Action: ActionNone}

	case stateString:
		switch {
		case b == 0x07:
			return c.complete()
		case b == 0x1B:
			c.state = stateWaitST
		default:
			c.count++
			if c.count >= parseBufSize-1 {
				return c.hardReset()
			}
		}
		return Token{Action: ActionNone}

	case stateSS3:
		// Any final byte ends the sequence; no navigation meaning is
		// assigned to SS3 keys.
		if isCSIFinal(b) {
			return c.complete()
		}
		return c.hardReset()

	case stateCSI:
		if len(c.params) >= parseBufSize-1 {
			return c.hardReset()
		}
		c.params = append(c.params, b)
		if isCSIFinal(b) {
			return c.decodeCSI()
		}
		if !isMiddleByte(b) && !isParamByte(b) {
			return c.hardReset()
		}
		return Token{Action: ActionNone}

	case stateWaitST:
		if b == '\\' {
			return c.complete()
		}
		return c.hardReset()
	}

	// Unreachable; keep the parser total anyway.
	return c.hardReset()
}

// decodeCSI interprets a completed CSI sequence. Only the navigation
// shapes the editor understands get dedicated actions; everything else
// is passed through for verbatim echo.
func (c *Classifier) decodeCSI() Token {
	params := c.params
	tok := c.complete()
	if len(params) == 2 && params[1] == '~' {
		switch params[0] {
		case '1':
			return Token{Action: ActionHome}
		case '3':
			return Token{Action: ActionDelete}
		case '4':
			return Token{Action: ActionEnd}
		}
		return tok
	}
	if len(params) == 1 {
		switch params[0] {
		case 'A':
			return Token{Action: ActionUp}
		case 'B':
			return Token{Action: ActionDown}
		case 'C':
			return Token{Action: ActionRight}
		case 'D':
			return Token{Action: ActionLeft}
		case 'F':
			return Token{Action: ActionEnd}
		case 'H':
			return Token{Action: ActionHome}
		}
	}
	return tok
}

// complete ends the in-flight sequence and hands back its raw text.
func (c *Classifier) complete() Token {
	seq := string(c.seq)
	c.state = stateNone
	return Token{Action: ActionOther, Seq: seq}
}

// hardReset abandons the in-flight sequence.
func (c *Classifier) hardReset() Token {
	c.state = stateNone
	return Token{Action: ActionReset}
}
