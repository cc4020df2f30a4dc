package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON_CompactForBuffers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]any{"mti": "0110", "code": "00"}))
	assert.Equal(t, "{\"code\":\"00\",\"mti\":\"0110\"}\n", buf.String())
	assert.False(t, IsTerminal(&buf))
}

func TestMarshal_Pretty(t *testing.T) {
	data, err := Marshal(map[string]int{"approved": 3}, true)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"approved\": 3\n}", string(data))
}

func TestWriteJSON_EncodeError(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSON(&buf, make(chan int))
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}
