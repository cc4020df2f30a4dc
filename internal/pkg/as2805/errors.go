package as2805

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedBitmap  = errors.New("malformed bitmap")
	ErrFieldNotDefined  = errors.New("field not defined in dictionary")
	ErrInvalidMTI       = errors.New("invalid MTI")
	ErrInvalidHeader    = errors.New("invalid header")
	ErrBadLengthPrefix  = errors.New("non-numeric length prefix")
	ErrBufferOverrun    = errors.New("declared length overruns buffer")
	ErrLengthExceedsMax = errors.New("length exceeds field maximum")
	ErrTrailingBytes    = errors.New("trailing bytes after last field")
	ErrInvalidValue     = errors.New("value does not satisfy field descriptor")
	ErrFieldOutOfRange  = errors.New("field index out of range")
	ErrFrameTooLarge    = errors.New("frame exceeds maximum size")
)

// FieldDecodeError reports a data element that could not be read. MTI holds
// the message type when it was decoded before the failure, so callers can
// still answer with a decline.
type FieldDecodeError struct {
	Field int
	MTI   string
	Err   error
}

func (e *FieldDecodeError) Error() string {
	if e.Field == 0 {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode field %d: %v", e.Field, e.Err)
}

func (e *FieldDecodeError) Unwrap() error {
	return e.Err
}

// FieldEncodeError reports a data element whose value cannot be written
type FieldEncodeError struct {
	Field int
	Err   error
}

func (e *FieldEncodeError) Error() string {
	return fmt.Sprintf("encode field %d: %v", e.Field, e.Err)
}

func (e *FieldEncodeError) Unwrap() error {
	return e.Err
}

// RecoveredMTI extracts the message type from a decode failure, if one was read
func RecoveredMTI(err error) (string, bool) {
	var fde *FieldDecodeError
	if errors.As(err, &fde) && ValidMTI(fde.MTI) {
		return fde.MTI, true
	}
	return "", false
}
