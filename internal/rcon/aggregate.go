package rcon

import (
	"encoding/hex"
	"strings"

	"github.com/squadops/squadmin/internal/protocol"
)

// aggregator buffers partial socket reads and accumulates the textual
// payload of response frames. It has no notion of time; the client's
// control loop owns the idle timer and feeds it raw chunks.
type aggregator struct {
	buf    []byte
	out    strings.Builder
	count  int
	rawHex []string
}

// push appends a raw chunk and returns every frame that is now fully
// buffered, dropping consumed bytes from the head.
func (a *aggregator) push(data []byte) []protocol.Frame {
	a.buf = append(a.buf, data...)
	frames, consumed := protocol.Decode(a.buf)
	if consumed > 0 {
		a.buf = append(a.buf[:0], a.buf[consumed:]...)
	}
	for _, f := range frames {
		a.count++
		a.rawHex = append(a.rawHex, hex.EncodeToString(f.Body))
	}
	return frames
}

// collect appends a text-bearing frame's payload to the output, one
// newline after each frame, preserving arrival order.
func (a *aggregator) collect(f protocol.Frame) {
	if len(f.Body) == 0 {
		return
	}
	a.out.Write(f.Body)
	a.out.WriteByte('\n')
}

// text returns everything collected so far, trimmed.
func (a *aggregator) text() string {
	return strings.TrimSpace(a.out.String())
}

// pendingHex returns unconsumed buffered bytes as hex, for debug traces.
func (a *aggregator) pendingHex() string {
	return hex.EncodeToString(a.buf)
}
