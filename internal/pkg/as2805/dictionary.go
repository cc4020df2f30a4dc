package as2805

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType is the wire encoding rule of a data element
type FieldType int

const (
	Numeric FieldType = iota + 1 // fixed length, ASCII digits, left zero padded
	Alpha                        // fixed length, ASCII text, right space padded
	Binary                       // fixed length, raw bytes
	LLVar                        // 2 digit length prefix, up to 99 bytes
	LLLVar                       // 3 digit length prefix, up to 999 bytes
)

func (t FieldType) String() string {
	switch t {
	case Numeric:
		return "NUMERIC"
	case Alpha:
		return "ALPHA"
	case Binary:
		return "BINARY"
	case LLVar:
		return "LLVAR"
	case LLLVar:
		return "LLLVAR"
	default:
		return "UNKNOWN"
	}
}

// Variable reports whether the type carries a length prefix
func (t FieldType) Variable() bool {
	return t == LLVar || t == LLLVar
}

// prefixDigits returns the number of ASCII length digits preceding a variable value
func (t FieldType) prefixDigits() int {
	switch t {
	case LLVar:
		return 2
	case LLLVar:
		return 3
	default:
		return 0
	}
}

// ParseFieldType accepts the long names as well as the usual ISO8583 abbreviations
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NUMERIC", "N":
		return Numeric, nil
	case "ALPHA", "A", "AN", "ANS":
		return Alpha, nil
	case "BINARY", "B":
		return Binary, nil
	case "LLVAR":
		return LLVar, nil
	case "LLLVAR":
		return LLLVar, nil
	default:
		return 0, fmt.Errorf("unknown field type %q", s)
	}
}

// FieldDescriptor describes how a single data element is laid out on the wire.
// Length is the exact length for fixed types and the maximum for variable types.
type FieldDescriptor struct {
	Index       int
	Type        FieldType
	Length      int
	Description string
}

// Validate checks the descriptor against the limits of its type
func (d FieldDescriptor) Validate() error {
	if d.Index < MinField || d.Index > MaxField {
		return fmt.Errorf("field %d: index out of range %d-%d", d.Index, MinField, MaxField)
	}
	if d.Length <= 0 {
		return fmt.Errorf("field %d: length must be positive", d.Index)
	}
	switch d.Type {
	case Numeric, Alpha, Binary:
	case LLVar:
		if d.Length > 99 {
			return fmt.Errorf("field %d: LLVAR max length %d exceeds 99", d.Index, d.Length)
		}
	case LLLVar:
		if d.Length > 999 {
			return fmt.Errorf("field %d: LLLVAR max length %d exceeds 999", d.Index, d.Length)
		}
	default:
		return fmt.Errorf("field %d: invalid type %d", d.Index, d.Type)
	}
	return nil
}

// Dictionary is the immutable set of field descriptors shared by encode and decode.
// It is safe for concurrent use.
type Dictionary struct {
	fields [MaxField + 1]*FieldDescriptor
	count  int
}

// NewDictionary builds a dictionary, rejecting duplicate or invalid entries
func NewDictionary(descriptors []FieldDescriptor) (*Dictionary, error) {
	d := &Dictionary{}
	for _, desc := range descriptors {
		if err := desc.Validate(); err != nil {
			return nil, err
		}
		if d.fields[desc.Index] != nil {
			return nil, fmt.Errorf("field %d: defined more than once", desc.Index)
		}
		desc := desc
		d.fields[desc.Index] = &desc
		d.count++
	}
	return d, nil
}

// Describe returns the descriptor for a field index
func (d *Dictionary) Describe(index int) (FieldDescriptor, error) {
	if index < 0 || index > MaxField || d.fields[index] == nil {
		return FieldDescriptor{}, fmt.Errorf("%w: %d", ErrFieldNotDefined, index)
	}
	return *d.fields[index], nil
}

// Len returns the number of defined fields
func (d *Dictionary) Len() int {
	return d.count
}

// Descriptors returns all descriptors in ascending index order
func (d *Dictionary) Descriptors() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, d.count)
	for _, desc := range d.fields {
		if desc != nil {
			out = append(out, *desc)
		}
	}
	return out
}

// dictionaryFile is the YAML layout of a dictionary file:
//
//	fields:
//	  - index: 2
//	    type: LLVAR
//	    length: 19
//	    description: Primary account number
type dictionaryFile struct {
	Fields []dictionaryEntry `yaml:"fields"`
}

type dictionaryEntry struct {
	Index       int    `yaml:"index"`
	Type        string `yaml:"type"`
	Length      int    `yaml:"length"`
	Description string `yaml:"description,omitempty"`
}

// ParseDictionary parses a YAML dictionary document
func ParseDictionary(data []byte) (*Dictionary, error) {
	var file dictionaryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary YAML: %w", err)
	}
	if len(file.Fields) == 0 {
		return nil, fmt.Errorf("dictionary defines no fields")
	}

	descriptors := make([]FieldDescriptor, 0, len(file.Fields))
	for _, entry := range file.Fields {
		ft, err := ParseFieldType(entry.Type)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", entry.Index, err)
		}
		descriptors = append(descriptors, FieldDescriptor{
			Index:       entry.Index,
			Type:        ft,
			Length:      entry.Length,
			Description: entry.Description,
		})
	}
	return NewDictionary(descriptors)
}

// LoadDictionary reads a YAML dictionary from disk
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary file: %w", err)
	}
	return ParseDictionary(data)
}

// MarshalYAML renders the dictionary in the same layout ParseDictionary accepts
func (d *Dictionary) MarshalYAML() (interface{}, error) {
	file := dictionaryFile{}
	for _, desc := range d.Descriptors() {
		file.Fields = append(file.Fields, dictionaryEntry{
			Index:       desc.Index,
			Type:        desc.Type.String(),
			Length:      desc.Length,
			Description: desc.Description,
		})
	}
	return file, nil
}
