package as2805

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Message is a decoded AS2805 message. Fields maps data element index (2-128)
// to its value bytes; wire order is always ascending index order. Raw holds the
// exact bytes as received or last encoded.
//
// A Message is owned by one goroutine at a time and is not safe for
// concurrent mutation.
type Message struct {
	MTI    string
	Header []byte
	Fields map[int][]byte
	Raw    []byte
}

// NewMessage creates an empty message with the given MTI
func NewMessage(mti string) *Message {
	return &Message{
		MTI:    mti,
		Fields: make(map[int][]byte),
	}
}

// Set stores a field value. Index 1 and indices outside 2..128 are rejected.
func (m *Message) Set(index int, value []byte) error {
	if index < MinField || index > MaxField {
		return fmt.Errorf("%w: %d", ErrFieldOutOfRange, index)
	}
	if m.Fields == nil {
		m.Fields = make(map[int][]byte)
	}
	m.Fields[index] = value
	return nil
}

// SetString stores a text field value
func (m *Message) SetString(index int, value string) error {
	return m.Set(index, []byte(value))
}

// Get returns the raw value of a field
func (m *Message) Get(index int) ([]byte, bool) {
	v, ok := m.Fields[index]
	return v, ok
}

// GetString returns a field as text, or "" when absent
func (m *Message) GetString(index int) string {
	return string(m.Fields[index])
}

// Has reports whether a field is present
func (m *Message) Has(index int) bool {
	_, ok := m.Fields[index]
	return ok
}

// Unset removes a field
func (m *Message) Unset(index int) {
	delete(m.Fields, index)
}

// Int64 interprets a field as a decimal number. Leading zeros and surrounding
// spaces are accepted; the stored value keeps its padded form.
func (m *Message) Int64(index int) (int64, error) {
	v, ok := m.Fields[index]
	if !ok {
		return 0, fmt.Errorf("field %d not present", index)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %d: %w", index, err)
	}
	return n, nil
}

// Indices returns the present field indices in wire order
func (m *Message) Indices() []int {
	return sortedIndices(m.Fields)
}

// Clone returns a deep copy without the raw bytes
func (m *Message) Clone() *Message {
	c := &Message{
		MTI:    m.MTI,
		Fields: make(map[int][]byte, len(m.Fields)),
	}
	if m.Header != nil {
		c.Header = bytes.Clone(m.Header)
	}
	for idx, v := range m.Fields {
		c.Fields[idx] = bytes.Clone(v)
	}
	return c
}

// Equal compares MTI, header and fields; Raw is ignored
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.MTI != o.MTI || !bytes.Equal(m.Header, o.Header) || len(m.Fields) != len(o.Fields) {
		return false
	}
	for idx, v := range m.Fields {
		ov, ok := o.Fields[idx]
		if !ok || !bytes.Equal(v, ov) {
			return false
		}
	}
	return true
}

// String renders the message for logs; binary fields are shown in hex
func (m *Message) String() string {
	var sb strings.Builder
	sb.WriteString("MTI=")
	sb.WriteString(m.MTI)
	for _, idx := range m.Indices() {
		v := m.Fields[idx]
		if isPrintable(v) {
			fmt.Fprintf(&sb, " %d=%q", idx, v)
		} else {
			fmt.Fprintf(&sb, " %d=0x%X", idx, v)
		}
	}
	return sb.String()
}

func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
