package location

import "sync/atomic"

// completion is a single-assignment token. The first claim wins; every later
// claim returns false.
type completion struct {
	done atomic.Bool
}

func (c *completion) claim() bool {
	return c.done.CompareAndSwap(false, true)
}
