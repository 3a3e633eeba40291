package term

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// feed runs input through a fresh classifier and returns every token
// that is not ActionNone.
func feed(t *testing.T, input string) []Token {
	t.Helper()
	var c Classifier
	var toks []Token
	for i := 0; i < len(input); i++ {
		if tok := c.Feed(input[i]); tok.Action != ActionNone {
			toks = append(toks, tok)
		}
	}
	return toks
}

func TestLiteralBytes(t *testing.T) {
	toks := feed(t, "ab\x03")
	require.Len(t, toks, 3)
	require.Equal(t, Token{Action: ActionByte, Byte: 'a'}, toks[0])
	require.Equal(t, Token{Action: ActionByte, Byte: 'b'}, toks[1])
	require.Equal(t, Token{Action: ActionByte, Byte: 0x03}, toks[2])
}

func TestCSIDecodingTable(t *testing.T) {
	tests := []struct {
		input string
		want  Action
	}{
		{"\x1b[A", ActionUp},
		{"\x1b[B", ActionDown},
		{"\x1b[C", ActionRight},
		{"\x1b[D", ActionLeft},
		{"\x1b[F", ActionEnd},
		{"\x1b[H", ActionHome},
		{"\x1b[1~", ActionHome},
		{"\x1b[3~", ActionDelete},
		{"\x1b[4~", ActionEnd},
	}
	for _, tt := range tests {
		toks := feed(t, tt.input)
		require.Len(t, toks, 1, "input %q", tt.input)
		require.Equal(t, tt.want, toks[0].Action, "input %q", tt.input)
	}
}

func TestUnrecognizedCSIEchoedVerbatim(t *testing.T) {
	for _, input := range []string{"\x1b[31m", "\x1b[5~", "\x1b[2J", "\x1b[?25h"} {
		toks := feed(t, input)
		require.Len(t, toks, 1, "input %q", input)
		require.Equal(t, ActionOther, toks[0].Action, "input %q", input)
		require.Equal(t, input, toks[0].Seq, "input %q", input)
	}
}

func TestTwoByteSequenceDiscarded(t *testing.T) {
	toks := feed(t, "\x1bza")
	require.Len(t, toks, 1)
	require.Equal(t, Token{Action: ActionByte, Byte: 'a'}, toks[0])
}

func TestStringFamilyTerminators(t *testing.T) {
	// BEL terminator.
	toks := feed(t, "\x1b]0;title\x07")
	require.Len(t, toks, 1)
	require.Equal(t, ActionOther, toks[0].Action)
	require.Equal(t, "\x1b]0;title\x07", toks[0].Seq)

	// ESC \ string terminator, for each introducer in the family.
	for _, intro := range []string{"]", "P", "^", "_"} {
		input := "\x1b" + intro + "payload\x1b\\"
		toks := feed(t, input)
		require.Len(t, toks, 1, "introducer %q", intro)
		require.Equal(t, ActionOther, toks[0].Action)
		require.Equal(t, input, toks[0].Seq)
	}
}

func TestStringWaitSTRejectsOtherBytes(t *testing.T) {
	toks := feed(t, "\x1b]x\x1bq")
	require.Len(t, toks, 1)
	require.Equal(t, ActionReset, toks[0].Action)
}

func TestSS3Sequences(t *testing.T) {
	toks := feed(t, "\x1bOP")
	require.Len(t, toks, 1)
	require.Equal(t, ActionOther, toks[0].Action)
	require.Equal(t, "\x1bOP", toks[0].Seq)

	// Non-final byte after ESC O forces a reset.
	toks = feed(t, "\x1bO\x01")
	require.Len(t, toks, 1)
	require.Equal(t, ActionReset, toks[0].Action)
}

func TestCSIInvalidByteResets(t *testing.T) {
	toks := feed(t, "\x1b[\x01")
	require.Len(t, toks, 1)
	require.Equal(t, ActionReset, toks[0].Action)
}

func TestCSIOverflowResets(t *testing.T) {
	input := "\x1b["
	for i := 0; i < 100; i++ {
		input += "1"
	}
	toks := feed(t, input)
	require.NotEmpty(t, toks)
	require.Equal(t, ActionReset, toks[0].Action)
}

func TestStringOverflowResets(t *testing.T) {
	input := "\x1b]"
	for i := 0; i < 100; i++ {
		input += "x"
	}
	toks := feed(t, input)
	require.NotEmpty(t, toks)
	require.Equal(t, ActionReset, toks[0].Action)
}

func TestParserRecoversAfterReset(t *testing.T) {
	var c Classifier
	for _, b := range []byte("\x1bO\x01") {
		c.Feed(b)
	}
	tok := c.Feed('a')
	require.Equal(t, Token{Action: ActionByte, Byte: 'a'}, tok)
}

func TestEveryByteHasDefinedTransition(t *testing.T) {
	// Exhaustively poke each state entry byte followed by every
	// possible byte value; the parser must never get stuck.
	prefixes := []string{"", "\x1b", "\x1b[", "\x1b]", "\x1bO", "\x1b]\x1b"}
	for _, prefix := range prefixes {
		for b := 0; b < 256; b++ {
			var c Classifier
			for i := 0; i < len(prefix); i++ {
				c.Feed(prefix[i])
			}
			c.Feed(byte(b))
			// Must accept a fresh literal within a bounded number of
			// further bytes (worst case: finish an in-flight string).
			recovered := false
			for i := 0; i < parseBufSize+2; i++ {
				tok := c.Feed(0x07)
				if tok.Action != ActionNone {
					recovered = true
					break
				}
			}
			require.True(t, recovered, "prefix %q byte %#x", prefix, b)
		}
	}
}
