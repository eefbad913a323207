package listctl

import (
	"fmt"

	"profile-forms/internal/apperr"
)

// Reorder returns a copy of list with the element at from moved to to. The
// input slice is not modified.
func Reorder[E any](list []E, from, to int) ([]E, error) {
	n := len(list)
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, fmt.Errorf("%w: from=%d to=%d len=%d", apperr.ErrOutOfRange, from, to, n)
	}

	out := make([]E, n)
	copy(out, list)
	if from == to {
		return out, nil
	}

	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return out, nil
}
