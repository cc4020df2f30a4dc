package as2805

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingWriter records how many Write calls it receives
type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestFramer_Prefixes(t *testing.T) {
	payload := []byte("0800hello")

	tests := []struct {
		format FrameFormat
		prefix []byte
	}{
		{FrameASCII4, []byte("0009")},
		{FrameBinary2, []byte{0x00, 0x09}},
		{FrameBinary4, []byte{0x00, 0x00, 0x00, 0x09}},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			f := NewFramer(tt.format, 0)
			w := &countingWriter{}
			require.NoError(t, f.WriteFrame(w, payload))

			assert.Equal(t, 1, w.writes, "frame must go out in a single write")
			assert.Equal(t, append(bytes.Clone(tt.prefix), payload...), w.Bytes())

			got, err := f.ReadFrame(bytes.NewReader(w.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestFramer_SequentialFrames(t *testing.T) {
	f := NewFramer(FrameASCII4, 8192)
	var buf bytes.Buffer
	require.NoError(t, f.WriteFrame(&buf, []byte("one")))
	require.NoError(t, f.WriteFrame(&buf, nil))
	require.NoError(t, f.WriteFrame(&buf, []byte("three")))

	r := bytes.NewReader(buf.Bytes())
	got, err := f.ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	got, err = f.ReadFrame(r)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "three", string(got))

	_, err = f.ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFramer_Errors(t *testing.T) {
	f := NewFramer(FrameASCII4, 16)

	_, err := f.ReadFrame(bytes.NewReader([]byte("00A1x")))
	assert.ErrorIs(t, err, ErrBadLengthPrefix)

	_, err = f.ReadFrame(bytes.NewReader([]byte("0100")))
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	_, err = f.ReadFrame(bytes.NewReader([]byte("0010abc")))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = f.ReadFrame(bytes.NewReader([]byte("00")))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	err = f.WriteFrame(io.Discard, make([]byte, 17))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestParseFrameFormat(t *testing.T) {
	for in, want := range map[string]FrameFormat{
		"":        FrameASCII4,
		"ascii4":  FrameASCII4,
		"BINARY2": FrameBinary2,
		"binary4": FrameBinary4,
	} {
		got, err := ParseFrameFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFrameFormat("stx")
	assert.Error(t, err)
}
