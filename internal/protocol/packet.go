// Package protocol implements the length-prefixed binary frame format used
// by Squad's RCON port.
//
// Wire layout (all integers little-endian):
//
//	[int32 length][int32 requestId][int32 type][body][int16 terminator=0]
//
// where length = 10 + len(body) and does not count itself.
package protocol

import (
	"encoding/binary"
)

// Known frame types.
const (
	// TypeAuth carries the password in the body of a client frame.
	TypeAuth = 3

	// TypeCommand is both the client command frame and the server's
	// auth-ack frame type.
	TypeCommand = 2

	// TypeResponse carries a chunk of command output from the server.
	TypeResponse = 0
)

// AuthFailedID is echoed in an auth-ack frame when the password was rejected.
const AuthFailedID = -1

// wrapperLen is the number of non-body bytes counted by the length field:
// 4 (id) + 4 (type) + 2 (terminator).
const wrapperLen = 10

// headerLen is the size of the leading length field, which the length
// field itself excludes.
const headerLen = 4

// Frame is one unit of the binary protocol, in either direction.
type Frame struct {
	ID   int32
	Type int32
	Body []byte
}

// Text returns the frame body as a string.
func (f Frame) Text() string { return string(f.Body) }

// Encode builds the wire representation of a frame. The body is taken as
// UTF-8 text. Total output is 14+len(body) bytes.
func Encode(id, typ int32, body string) []byte {
	buf := make([]byte, headerLen+wrapperLen+len(body))
	binary.LittleEndian.PutUint32(buf[0:], uint32(wrapperLen+len(body)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(id))
	binary.LittleEndian.PutUint32(buf[8:], uint32(typ))
	copy(buf[12:], body)
	// trailing two zero bytes are already present from make
	return buf
}

// Decode extracts every fully buffered frame from buf and reports how many
// bytes the caller should drop from the head of its receive buffer.
//
// A frame is only consumable once 4+length bytes are available. A
// non-positive length field stops parsing (the remainder is held until more
// data arrives, or discarded by the caller on EOF). Decode never fails on
// malformed input; it simply returns what it could parse.
func Decode(buf []byte) ([]Frame, int) {
	var frames []Frame
	offset := 0
	for offset+headerLen <= len(buf) {
		declared := int(int32(binary.LittleEndian.Uint32(buf[offset:])))
		total := headerLen + declared
		if declared < wrapperLen || offset+total > len(buf) {
			// Malformed or incomplete; hold the rest until more data
			// arrives (or the caller gives up on EOF).
			break
		}
		id := int32(binary.LittleEndian.Uint32(buf[offset+4:]))
		typ := int32(binary.LittleEndian.Uint32(buf[offset+8:]))
		bodyLen := declared - wrapperLen
		body := make([]byte, bodyLen)
		copy(body, buf[offset+12:offset+12+bodyLen])
		frames = append(frames, Frame{ID: id, Type: typ, Body: body})
		offset += total
	}
	return frames, offset
}
