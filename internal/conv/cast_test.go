package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInt(t *testing.T) {
	v, err := ToInt(42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = ToInt(math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, v)

	_, err = ToInt(math.MaxUint64)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestProduct(t *testing.T) {
	tests := []struct {
		a, b uint64
		want uint64
		ok   bool
	}{
		{0, math.MaxUint64, 0, true},
		{1 << 31, 8, 1 << 34, true},
		{math.MaxUint32 + 1, math.MaxUint32 + 1, 0, false},
		{math.MaxUint64 / 2, 3, 0, false},
	}
	for _, tt := range tests {
		got, ok := Product(tt.a, tt.b)
		assert.Equal(t, tt.ok, ok, "%d*%d", tt.a, tt.b)
		if tt.ok {
			assert.Equal(t, tt.want, got)
		}
	}
}
