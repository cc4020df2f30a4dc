package as2805

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBitmap_PrimaryOnly(t *testing.T) {
	bm, err := ComputeBitmap([]int{3, 4, 11, 41})
	require.NoError(t, err)

	assert.False(t, bm.HasSecondary)
	assert.Equal(t, BitmapSize, bm.Size())
	// field 3 and 4 -> bits 3,4 of byte 0; field 11 -> bit 3 of byte 1; field 41 -> bit 1 of byte 5
	assert.Equal(t, []byte{0x30, 0x20, 0x00, 0x00, 0x00, 0x80, 0x00, 0x00}, bm.Bytes())
}

func TestComputeBitmap_SecondaryFlag(t *testing.T) {
	bm, err := ComputeBitmap([]int{11, 70})
	require.NoError(t, err)

	require.True(t, bm.HasSecondary)
	b := bm.Bytes()
	require.Len(t, b, 2*BitmapSize)
	assert.Equal(t, byte(0x80), b[0]&0x80, "bit 1 must flag the secondary bitmap")
	// field 70 is bit 6 of the secondary bitmap
	assert.Equal(t, byte(0x04), b[8])
}

func TestComputeBitmap_OutOfRange(t *testing.T) {
	for _, idx := range []int{0, 1, 129, -3} {
		_, err := ComputeBitmap([]int{idx})
		assert.ErrorIs(t, err, ErrFieldOutOfRange, "index %d", idx)
	}
}

func TestReadBitmap_Inverse(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		set := map[int][]byte{}
		n := r.IntN(30)
		for j := 0; j < n; j++ {
			set[MinField+r.IntN(MaxField-MinField+1)] = nil
		}
		want := sortedIndices(set)

		bm, err := ComputeBitmap(want)
		require.NoError(t, err)

		got, consumed, err := ReadBitmap(bm.Bytes())
		require.NoError(t, err)
		assert.Equal(t, bm.Size(), consumed)
		assert.Equal(t, want, got)
	}
}

func TestReadBitmap_Malformed(t *testing.T) {
	_, _, err := ReadBitmap([]byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrMalformedBitmap)

	// secondary flagged but only the primary present
	_, _, err = ReadBitmap([]byte{0x80, 0, 0, 0, 0, 0, 0, 0, 0x01})
	assert.ErrorIs(t, err, ErrMalformedBitmap)
}

func TestReadBitmap_IgnoresTrailingData(t *testing.T) {
	data := []byte{0x20, 0, 0, 0, 0, 0, 0, 0, '1', '2'}
	got, consumed, err := ReadBitmap(data)
	require.NoError(t, err)
	assert.Equal(t, 8, consumed)
	assert.Equal(t, []int{3}, got)
}
