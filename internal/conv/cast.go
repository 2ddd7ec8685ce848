package conv

import (
	"errors"
	"fmt"
)

// ErrOverflow reports a value that does not fit the target type.
var ErrOverflow = errors.New("integer overflow")

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Checked converts v to T, failing with ErrOverflow when the value would
// wrap or change sign.
func Checked[T, F Integer](v F) (T, error) {
	t := T(v)
	if F(t) != v || (v < 0) != (t < 0) {
		return 0, fmt.Errorf("%w: %d does not fit %T", ErrOverflow, v, t)
	}
	return t, nil
}

func IntToUint32(v int) (uint32, error) { return Checked[uint32](v) }
func IntToUint64(v int) (uint64, error) { return Checked[uint64](v) }
func Uint64ToInt(v uint64) (int, error) { return Checked[int](v) }
func Uint32ToInt(v uint32) (int, error) { return Checked[int](v) }
