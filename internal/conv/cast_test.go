//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecked(t *testing.T) {
	t.Run("InRange", func(t *testing.T) {
		u32, err := IntToUint32(math.MaxUint32)
		require.NoError(t, err)
		assert.Equal(t, uint32(math.MaxUint32), u32)

		u64, err := IntToUint64(0)
		require.NoError(t, err)
		assert.Zero(t, u64)

		i, err := Uint32ToInt(math.MaxUint32)
		require.NoError(t, err)
		assert.Equal(t, math.MaxUint32, i)

		i, err = Uint64ToInt(math.MaxInt64)
		require.NoError(t, err)
		assert.Equal(t, math.MaxInt64, i)

		i8, err := Checked[int8](int64(-128))
		require.NoError(t, err)
		assert.Equal(t, int8(-128), i8)
	})

	t.Run("Overflow", func(t *testing.T) {
		_, err := IntToUint32(math.MaxUint32 + 1)
		assert.ErrorIs(t, err, ErrOverflow)

		_, err = IntToUint32(-1)
		assert.ErrorIs(t, err, ErrOverflow)

		_, err = IntToUint64(-1)
		assert.ErrorIs(t, err, ErrOverflow)

		_, err = Uint64ToInt(math.MaxUint64)
		assert.ErrorIs(t, err, ErrOverflow)

		_, err = Checked[int8](200)
		assert.ErrorIs(t, err, ErrOverflow)

		_, err = Checked[uint8](int8(-1))
		assert.EqualError(t, err, "integer overflow: -1 does not fit uint8")
	})
}
