package as2805

import (
	"fmt"
	"sort"
)

const (
	MTILength  = 4
	BitmapSize = 8
	MinField   = 2
	MaxField   = 128

	// secondaryFlag is bit 1 of the primary bitmap
	secondaryFlag = 0x80
)

// Bitmap holds the primary and, when any field above 64 is present, the
// secondary presence bitmap. Bit k counted from the most significant bit of
// the primary bitmap marks field k; bit 1 only signals the secondary bitmap.
type Bitmap struct {
	Primary      [BitmapSize]byte
	Secondary    [BitmapSize]byte
	HasSecondary bool
}

// ComputeBitmap builds the bitmap for a set of field indices in 2..128.
// Duplicates are ignored.
func ComputeBitmap(indices []int) (Bitmap, error) {
	var bm Bitmap
	for _, idx := range indices {
		if idx < MinField || idx > MaxField {
			return Bitmap{}, fmt.Errorf("%w: %d", ErrFieldOutOfRange, idx)
		}
		if idx <= 64 {
			setBit(bm.Primary[:], idx)
			continue
		}
		setBit(bm.Secondary[:], idx-64)
		bm.HasSecondary = true
	}
	if bm.HasSecondary {
		bm.Primary[0] |= secondaryFlag
	}
	return bm, nil
}

// ReadBitmap parses the bitmap at the start of data and returns the present
// field indices in ascending order together with the number of bytes consumed.
func ReadBitmap(data []byte) ([]int, int, error) {
	if len(data) < BitmapSize {
		return nil, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrMalformedBitmap, BitmapSize, len(data))
	}

	var bm Bitmap
	copy(bm.Primary[:], data[:BitmapSize])
	consumed := BitmapSize

	if bm.Primary[0]&secondaryFlag != 0 {
		if len(data) < 2*BitmapSize {
			return nil, 0, fmt.Errorf("%w: secondary bitmap flagged but only %d bytes available", ErrMalformedBitmap, len(data))
		}
		copy(bm.Secondary[:], data[BitmapSize:2*BitmapSize])
		bm.HasSecondary = true
		consumed += BitmapSize
	}
	return bm.Indices(), consumed, nil
}

// Indices returns the field indices marked present, ascending
func (bm Bitmap) Indices() []int {
	fields := make([]int, 0, 16)
	for idx := MinField; idx <= 64; idx++ {
		if isBitSet(bm.Primary[:], idx) {
			fields = append(fields, idx)
		}
	}
	if bm.HasSecondary {
		for idx := 65; idx <= MaxField; idx++ {
			if isBitSet(bm.Secondary[:], idx-64) {
				fields = append(fields, idx)
			}
		}
	}
	return fields
}

// Bytes returns the wire form: 8 bytes, or 16 with the secondary bitmap
func (bm Bitmap) Bytes() []byte {
	if !bm.HasSecondary {
		out := make([]byte, BitmapSize)
		copy(out, bm.Primary[:])
		return out
	}
	out := make([]byte, 2*BitmapSize)
	copy(out, bm.Primary[:])
	copy(out[BitmapSize:], bm.Secondary[:])
	return out
}

// Size returns the length of the wire form in bytes
func (bm Bitmap) Size() int {
	if bm.HasSecondary {
		return 2 * BitmapSize
	}
	return BitmapSize
}

// bit n is 1-indexed from the most significant bit of b[0]
func setBit(b []byte, n int) {
	b[(n-1)/8] |= 1 << (7 - uint((n-1)%8))
}

func isBitSet(b []byte, n int) bool {
	return b[(n-1)/8]&(1<<(7-uint((n-1)%8))) != 0
}

// sortedIndices returns the keys of a field map in ascending order
func sortedIndices(fields map[int][]byte) []int {
	out := make([]int, 0, len(fields))
	for idx := range fields {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
