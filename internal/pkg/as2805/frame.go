package as2805

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FrameFormat is the length prefix that delimits messages on a stream
type FrameFormat int

const (
	// FrameASCII4 is a four digit ASCII decimal length
	FrameASCII4 FrameFormat = iota
	// FrameBinary2 is a two byte big-endian length
	FrameBinary2
	// FrameBinary4 is a four byte big-endian length
	FrameBinary4
)

func (f FrameFormat) String() string {
	switch f {
	case FrameASCII4:
		return "ascii4"
	case FrameBinary2:
		return "binary2"
	case FrameBinary4:
		return "binary4"
	default:
		return "unknown"
	}
}

// prefixLen returns the size of the length prefix in bytes
func (f FrameFormat) prefixLen() int {
	if f == FrameBinary2 {
		return 2
	}
	return 4
}

// limit is the largest payload the prefix can express
func (f FrameFormat) limit() int {
	switch f {
	case FrameASCII4:
		return 9999
	case FrameBinary2:
		return 0xFFFF
	default:
		return 1<<31 - 1
	}
}

// ParseFrameFormat parses a framing name from configuration
func ParseFrameFormat(s string) (FrameFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascii4", "ascii":
		return FrameASCII4, nil
	case "binary2", "2byte":
		return FrameBinary2, nil
	case "binary4", "4byte":
		return FrameBinary4, nil
	default:
		return 0, fmt.Errorf("unknown framing %q (expected ascii4, binary2 or binary4)", s)
	}
}

// Framer reads and writes length-prefixed frames
type Framer struct {
	format  FrameFormat
	maxSize int
}

// NewFramer creates a framer. maxSize <= 0 means the prefix limit.
func NewFramer(format FrameFormat, maxSize int) *Framer {
	if maxSize <= 0 || maxSize > format.limit() {
		maxSize = format.limit()
	}
	return &Framer{format: format, maxSize: maxSize}
}

// Format returns the framing in use
func (f *Framer) Format() FrameFormat {
	return f.format
}

// MaxSize returns the largest accepted payload
func (f *Framer) MaxSize() int {
	return f.maxSize
}

// ReadFrame reads one frame payload. A zero length frame returns an empty,
// non-nil slice. io.EOF is returned only when the stream ends on a frame
// boundary.
func (f *Framer) ReadFrame(r io.Reader) ([]byte, error) {
	prefix := make([]byte, f.format.prefixLen())
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}

	var n int
	switch f.format {
	case FrameASCII4:
		v, err := strconv.Atoi(string(prefix))
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: frame prefix %q", ErrBadLengthPrefix, prefix)
		}
		n = v
	case FrameBinary2:
		n = int(binary.BigEndian.Uint16(prefix))
	case FrameBinary4:
		v := binary.BigEndian.Uint32(prefix)
		if v > uint32(f.format.limit()) {
			return nil, fmt.Errorf("%w: %d", ErrFrameTooLarge, v)
		}
		n = int(v)
	}
	if n > f.maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, f.maxSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes prefix and payload in a single Write call
func (f *Framer) WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > f.maxSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), f.maxSize)
	}

	pl := f.format.prefixLen()
	buf := make([]byte, pl+len(payload))
	switch f.format {
	case FrameASCII4:
		copy(buf, fmt.Sprintf("%04d", len(payload)))
	case FrameBinary2:
		binary.BigEndian.PutUint16(buf, uint16(len(payload)))
	case FrameBinary4:
		binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	}
	copy(buf[pl:], payload)

	_, err := w.Write(buf)
	return err
}
