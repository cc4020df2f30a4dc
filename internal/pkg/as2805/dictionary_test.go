package as2805

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultDictionary(t *testing.T) {
	dict := DefaultDictionary()
	assert.Equal(t, MaxField-MinField+1, dict.Len())

	tests := []struct {
		index  int
		typ    FieldType
		length int
	}{
		{FieldPAN, LLVar, 19},
		{FieldAmount, Numeric, 12},
		{FieldTransmissionDateTime, Numeric, 10},
		{FieldSTAN, Numeric, 6},
		{FieldRRN, Alpha, 12},
		{FieldApprovalCode, Alpha, 6},
		{FieldResponseCode, Alpha, 2},
		{FieldNetworkMgmtCode, Numeric, 3},
		{128, Binary, 8},
	}
	for _, tt := range tests {
		desc, err := dict.Describe(tt.index)
		require.NoError(t, err, "field %d", tt.index)
		assert.Equal(t, tt.typ, desc.Type, "field %d", tt.index)
		assert.Equal(t, tt.length, desc.Length, "field %d", tt.index)
	}

	_, err := dict.Describe(1)
	assert.ErrorIs(t, err, ErrFieldNotDefined)
}

func TestNewDictionary_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		descs []FieldDescriptor
	}{
		{"duplicate", []FieldDescriptor{{Index: 3, Type: Numeric, Length: 6}, {Index: 3, Type: Alpha, Length: 2}}},
		{"index 1", []FieldDescriptor{{Index: 1, Type: Binary, Length: 8}}},
		{"index 129", []FieldDescriptor{{Index: 129, Type: Binary, Length: 8}}},
		{"zero length", []FieldDescriptor{{Index: 4, Type: Numeric}}},
		{"llvar over 99", []FieldDescriptor{{Index: 2, Type: LLVar, Length: 100}}},
		{"lllvar over 999", []FieldDescriptor{{Index: 48, Type: LLLVar, Length: 1000}}},
		{"unknown type", []FieldDescriptor{{Index: 5, Length: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDictionary(tt.descs)
			assert.Error(t, err)
		})
	}
}

func TestParseFieldType(t *testing.T) {
	for in, want := range map[string]FieldType{
		"numeric": Numeric,
		"N":       Numeric,
		"ans":     Alpha,
		"ALPHA":   Alpha,
		"b":       Binary,
		"LLVAR":   LLVar,
		" lllvar": LLLVar,
	} {
		got, err := ParseFieldType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFieldType("z")
	assert.Error(t, err)
}

func TestLoadDictionary(t *testing.T) {
	doc := `fields:
  - index: 3
    type: NUMERIC
    length: 6
    description: Processing code
  - index: 11
    type: N
    length: 6
  - index: 35
    type: LLVAR
    length: 37
`
	path := filepath.Join(t.TempDir(), "dict.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	dict, err := LoadDictionary(path)
	require.NoError(t, err)
	assert.Equal(t, 3, dict.Len())

	desc, err := dict.Describe(35)
	require.NoError(t, err)
	assert.Equal(t, LLVar, desc.Type)
	assert.Equal(t, 37, desc.Length)

	_, err = dict.Describe(4)
	assert.ErrorIs(t, err, ErrFieldNotDefined)
}

func TestParseDictionary_Errors(t *testing.T) {
	_, err := ParseDictionary([]byte("fields: []"))
	assert.Error(t, err)

	_, err = ParseDictionary([]byte("fields:\n  - index: 3\n    type: PACKED\n    length: 6\n"))
	assert.Error(t, err)

	_, err = ParseDictionary([]byte("fields: [oops"))
	assert.Error(t, err)

	_, err = LoadDictionary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDictionary_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(DefaultDictionary())
	require.NoError(t, err)

	dict, err := ParseDictionary(out)
	require.NoError(t, err)
	assert.Equal(t, DefaultDictionary().Descriptors(), dict.Descriptors())
}
