package net

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/boxworld/box/internal/message"
)

// Wire format of one frame:
//
//	0x04 0x02 <decimal payload length in ASCII> ';' <payload>
var magic = [2]byte{0x04, 0x02}

const (
	delimiter = ';'
	// maxLengthDigits bounds the header so garbage cannot stall the scan.
	maxLengthDigits = 9
	// MaxPayload is the largest payload a frame may declare.
	MaxPayload = 1 << 20
	// MaxFrameSize is the largest legal frame, header included.
	MaxFrameSize = len(magic) + maxLengthDigits + 1 + MaxPayload
)

var (
	// ErrIncomplete means the buffer ends inside a frame.
	ErrIncomplete = errors.New("incomplete frame")
	ErrBadMagic   = errors.New("bad frame magic")
	ErrBadLength  = errors.New("bad frame length")
	ErrPayload    = errors.New("bad frame payload")
	ErrOverflow   = errors.New("pending input exceeds buffer limit")
)

// AppendFrame serializes msg and appends it to dst as one frame.
func AppendFrame(dst []byte, msg message.NetworkMessage) ([]byte, error) {
	payload, err := message.Marshal(msg)
	if err != nil {
		return dst, err
	}
	if len(payload) > MaxPayload {
		return dst, fmt.Errorf("%w: payload %d bytes", ErrBadLength, len(payload))
	}
	dst = append(dst, magic[:]...)
	dst = strconv.AppendInt(dst, int64(len(payload)), 10)
	dst = append(dst, delimiter)
	return append(dst, payload...), nil
}

// EncodeFrame returns msg as a standalone frame.
func EncodeFrame(msg message.NetworkMessage) ([]byte, error) {
	return AppendFrame(nil, msg)
}

// splitFrame locates the first frame in buf. It returns the payload and
// the total frame size, ErrIncomplete when more bytes are needed, or a
// malformed-frame error.
func splitFrame(buf []byte) (payload []byte, size int, err error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}
	if buf[0] != magic[0] || (len(buf) > 1 && buf[1] != magic[1]) {
		return nil, 0, ErrBadMagic
	}
	if len(buf) < len(magic)+1 {
		return nil, 0, ErrIncomplete
	}
	header := buf[len(magic):]
	if len(header) > maxLengthDigits+1 {
		header = header[:maxLengthDigits+1]
	}
	end := bytes.IndexByte(header, delimiter)
	if end < 0 {
		if len(header) > maxLengthDigits {
			return nil, 0, fmt.Errorf("%w: no delimiter within %d bytes", ErrBadLength, maxLengthDigits)
		}
		if !allDigits(header) {
			return nil, 0, fmt.Errorf("%w: non-numeric length %q", ErrBadLength, header)
		}
		return nil, 0, ErrIncomplete
	}
	digits := header[:end]
	if len(digits) == 0 || !allDigits(digits) {
		return nil, 0, fmt.Errorf("%w: non-numeric length %q", ErrBadLength, digits)
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil || n > MaxPayload {
		return nil, 0, fmt.Errorf("%w: %s", ErrBadLength, digits)
	}
	start := len(magic) + end + 1
	if len(buf)-start < n {
		return nil, 0, ErrIncomplete
	}
	return buf[start : start+n], start + n, nil
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func decodePayload(p []byte) (message.NetworkMessage, error) {
	msg, err := message.Unmarshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayload, err)
	}
	return msg, nil
}

// DecodeAll parses a buffer that must consist of whole frames only. Any
// malformed or truncated frame fails the whole call and no messages are
// returned.
func DecodeAll(buf []byte) ([]message.NetworkMessage, error) {
	var out []message.NetworkMessage
	for off := 0; off < len(buf); {
		payload, size, err := splitFrame(buf[off:])
		if err != nil {
			return nil, fmt.Errorf("frame at offset %d: %w", off, err)
		}
		msg, err := decodePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("frame at offset %d: %w", off, err)
		}
		out = append(out, msg)
		off += size
	}
	return out, nil
}

// FrameBuffer accumulates bytes from a stream across reads. Decode yields
// every whole frame and keeps a trailing partial frame for the next read.
type FrameBuffer struct {
	buf []byte
	max int
}

// NewFrameBuffer bounds pending bytes at max (0 means MaxFrameSize).
func NewFrameBuffer(max int) *FrameBuffer {
	if max <= 0 {
		max = MaxFrameSize
	}
	return &FrameBuffer{max: max}
}

// Write appends stream bytes. It never fails; overflow is reported by Decode.
func (b *FrameBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Len returns the number of pending bytes.
func (b *FrameBuffer) Len() int {
	return len(b.buf)
}

// Decode extracts all whole frames. On a malformed frame every pending
// byte is discarded, no messages are returned, and the stream is expected to
// resynchronize on the peer's next frame.
func (b *FrameBuffer) Decode() ([]message.NetworkMessage, error) {
	var out []message.NetworkMessage
	off := 0
	for off < len(b.buf) {
		payload, size, err := splitFrame(b.buf[off:])
		if errors.Is(err, ErrIncomplete) {
			break
		}
		if err != nil {
			b.Reset()
			return nil, err
		}
		msg, err := decodePayload(payload)
		if err != nil {
			b.Reset()
			return nil, err
		}
		out = append(out, msg)
		off += size
	}
	b.buf = append(b.buf[:0], b.buf[off:]...)
	if len(b.buf) > b.max {
		n := len(b.buf)
		b.Reset()
		return nil, fmt.Errorf("%w: %d > %d", ErrOverflow, n, b.max)
	}
	return out, nil
}

// Reset drops all pending bytes.
func (b *FrameBuffer) Reset() {
	b.buf = b.buf[:0]
}
