package rangecoding

import (
	"errors"
	"fmt"
)

// ErrInvalidICDF indicates a malformed distribution table.
var ErrInvalidICDF = errors.New("rangecoding: invalid icdf table")

// ICDFContext is a named cumulative distribution. Dist holds ascending
// cumulative bounds; symbol i covers [Dist[i-1], Dist[i]) with Dist[-1] = 0,
// and the last bound equals Total.
type ICDFContext struct {
	Name  string
	Total int
	Dist  []int
}

// Validate checks that the table is non-empty, strictly ascending and ends
// at Total.
func (c *ICDFContext) Validate() error {
	if len(c.Dist) == 0 || c.Total <= 0 {
		return fmt.Errorf("%w: %s: empty", ErrInvalidICDF, c.Name)
	}
	prev := 0
	for i, v := range c.Dist {
		if v <= prev {
			return fmt.Errorf("%w: %s: bound %d (%d) not above %d", ErrInvalidICDF, c.Name, i, v, prev)
		}
		prev = v
	}
	if prev != c.Total {
		return fmt.Errorf("%w: %s: last bound %d != total %d", ErrInvalidICDF, c.Name, prev, c.Total)
	}
	return nil
}

// search returns the smallest index whose bound exceeds k.
func (c *ICDFContext) search(k uint32) int {
	for i, v := range c.Dist {
		if uint32(v) > k {
			return i
		}
	}
	return len(c.Dist) - 1
}

func (c *ICDFContext) low(sym int) uint32 {
	if sym == 0 {
		return 0
	}
	return uint32(c.Dist[sym-1])
}

// Symbols returns the alphabet size.
func (c *ICDFContext) Symbols() int {
	return len(c.Dist)
}
