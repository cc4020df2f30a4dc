package as2805

import (
	"bytes"
	"fmt"
)

// Codec converts between Messages and their wire form using a Dictionary.
// Header presence is a fixed property of the channel, not inferred from the
// message length. A Codec is immutable and safe for concurrent use.
type Codec struct {
	dict         *Dictionary
	headerLength int
}

// Option configures a Codec
type Option func(*Codec)

// WithHeaderLength sets the size of the fixed header preceding the MTI (0 = none)
func WithHeaderLength(n int) Option {
	return func(c *Codec) {
		c.headerLength = n
	}
}

// NewCodec creates a codec over dict
func NewCodec(dict *Dictionary, opts ...Option) *Codec {
	c := &Codec{dict: dict}
	for _, opt := range opts {
		opt(c)
	}
	if c.headerLength < 0 {
		c.headerLength = 0
	}
	return c
}

// Dictionary returns the dictionary the codec consults
func (c *Codec) Dictionary() *Dictionary {
	return c.dict
}

// HeaderLength returns the configured header size
func (c *Codec) HeaderLength() int {
	return c.headerLength
}

// Decode parses raw into a Message. On failure no partial message is returned;
// a *FieldDecodeError carries the MTI when it was read.
func (c *Codec) Decode(raw []byte) (*Message, error) {
	offset := 0
	var header []byte
	if c.headerLength > 0 {
		if len(raw) < c.headerLength {
			return nil, &FieldDecodeError{Err: fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidHeader, c.headerLength, len(raw))}
		}
		header = bytes.Clone(raw[:c.headerLength])
		offset = c.headerLength
	}

	if len(raw)-offset < MTILength {
		return nil, &FieldDecodeError{Err: fmt.Errorf("%w: message too short", ErrInvalidMTI)}
	}
	mti := string(raw[offset : offset+MTILength])
	if !ValidMTI(mti) {
		return nil, &FieldDecodeError{Err: fmt.Errorf("%w: %q", ErrInvalidMTI, mti)}
	}
	offset += MTILength

	indices, consumed, err := ReadBitmap(raw[offset:])
	if err != nil {
		return nil, &FieldDecodeError{MTI: mti, Err: err}
	}
	offset += consumed

	msg := &Message{
		MTI:    mti,
		Header: header,
		Fields: make(map[int][]byte, len(indices)),
	}
	for _, idx := range indices {
		desc, err := c.dict.Describe(idx)
		if err != nil {
			return nil, &FieldDecodeError{Field: idx, MTI: mti, Err: err}
		}
		value, next, err := readField(desc, raw, offset)
		if err != nil {
			return nil, &FieldDecodeError{Field: idx, MTI: mti, Err: err}
		}
		msg.Fields[idx] = value
		offset = next
	}
	if offset != len(raw) {
		return nil, &FieldDecodeError{MTI: mti, Err: fmt.Errorf("%w: %d", ErrTrailingBytes, len(raw)-offset)}
	}

	msg.Raw = raw
	return msg, nil
}

// Encode serializes msg. The bitmap is computed from the fields present;
// fixed numeric values are left padded with zeros and fixed alpha values right
// padded with spaces. The result is also stored in msg.Raw.
func (c *Codec) Encode(msg *Message) ([]byte, error) {
	if !ValidMTI(msg.MTI) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMTI, msg.MTI)
	}

	indices := msg.Indices()
	bm, err := ComputeBitmap(indices)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(c.headerLength + MTILength + bm.Size() + 16*len(indices))

	if c.headerLength > 0 {
		switch len(msg.Header) {
		case 0:
			buf.Write(make([]byte, c.headerLength))
		case c.headerLength:
			buf.Write(msg.Header)
		default:
			return nil, fmt.Errorf("%w: length %d, expected %d", ErrInvalidHeader, len(msg.Header), c.headerLength)
		}
	} else if len(msg.Header) > 0 {
		return nil, fmt.Errorf("%w: channel carries no header", ErrInvalidHeader)
	}

	buf.WriteString(msg.MTI)
	buf.Write(bm.Bytes())

	for _, idx := range indices {
		desc, err := c.dict.Describe(idx)
		if err != nil {
			return nil, &FieldEncodeError{Field: idx, Err: err}
		}
		if err := writeField(&buf, desc, msg.Fields[idx]); err != nil {
			return nil, &FieldEncodeError{Field: idx, Err: err}
		}
	}

	out := buf.Bytes()
	msg.Raw = out
	return out, nil
}

// readField consumes one data element starting at offset
func readField(desc FieldDescriptor, data []byte, offset int) ([]byte, int, error) {
	length := desc.Length
	if digits := desc.Type.prefixDigits(); digits > 0 {
		if len(data)-offset < digits {
			return nil, 0, fmt.Errorf("%w: length prefix needs %d bytes", ErrBufferOverrun, digits)
		}
		n, err := parseDigits(data[offset : offset+digits])
		if err != nil {
			return nil, 0, err
		}
		if n > desc.Length {
			return nil, 0, fmt.Errorf("%w: %d > %d", ErrLengthExceedsMax, n, desc.Length)
		}
		length = n
		offset += digits
	}

	if len(data)-offset < length {
		return nil, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferOverrun, length, len(data)-offset)
	}
	value := data[offset : offset+length]
	if desc.Type == Numeric && !isDigits(value) {
		return nil, 0, fmt.Errorf("%w: non-numeric value", ErrInvalidValue)
	}
	return bytes.Clone(value), offset + length, nil
}

// writeField appends one data element in its wire form
func writeField(buf *bytes.Buffer, desc FieldDescriptor, value []byte) error {
	switch desc.Type {
	case Numeric:
		if len(value) > desc.Length {
			return fmt.Errorf("%w: length %d > %d", ErrInvalidValue, len(value), desc.Length)
		}
		if !isDigits(value) {
			return fmt.Errorf("%w: non-numeric value", ErrInvalidValue)
		}
		for i := len(value); i < desc.Length; i++ {
			buf.WriteByte('0')
		}
		buf.Write(value)

	case Alpha:
		if len(value) > desc.Length {
			return fmt.Errorf("%w: length %d > %d", ErrInvalidValue, len(value), desc.Length)
		}
		buf.Write(value)
		for i := len(value); i < desc.Length; i++ {
			buf.WriteByte(' ')
		}

	case Binary:
		if len(value) != desc.Length {
			return fmt.Errorf("%w: binary length %d, expected %d", ErrInvalidValue, len(value), desc.Length)
		}
		buf.Write(value)

	case LLVar, LLLVar:
		if len(value) > desc.Length {
			return fmt.Errorf("%w: length %d > %d", ErrLengthExceedsMax, len(value), desc.Length)
		}
		buf.WriteString(fmt.Sprintf("%0*d", desc.Type.prefixDigits(), len(value)))
		buf.Write(value)

	default:
		return fmt.Errorf("unsupported field type %v", desc.Type)
	}
	return nil
}

// parseDigits parses an ASCII decimal length prefix
func parseDigits(b []byte) (int, error) {
	n := 0
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("%w: %q", ErrBadLengthPrefix, b)
		}
		n = n*10 + int(ch-'0')
	}
	return n, nil
}

func isDigits(b []byte) bool {
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
