package launcher

import (
	"strconv"
	"strings"
	"sync"
)

// counter assigns hierarchical step identifiers to the items of a
// pipeline as they are dispatched: "1", "1.1", "2.3.4". Entering a
// nested block pushes a new ordinal onto the stack; each item
// dispatched at the current depth increments the top of the stack.
// Parallel dispatch does not perturb labelling because every item's
// id is assigned before the corresponding goroutine is started, in
// index order.
type counter struct {
	mu    sync.Mutex
	stack []int
}

func newCounter() *counter {
	return &counter{stack: []int{0}}
}

// push enters a nested block, starting its ordinal at zero.
func (c *counter) push() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stack = append(c.stack, 0)
}

// pop leaves the current block.
func (c *counter) pop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stack = c.stack[:len(c.stack)-1]
}

// next increments the ordinal at the current depth and returns the
// dotted step id, skipping a leading zero at the root.
func (c *counter) next() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stack[len(c.stack)-1]++

	parts := make([]string, 0, len(c.stack))

	for i, v := range c.stack {
		if i == 0 && v == 0 {
			continue
		}

		parts = append(parts, strconv.Itoa(v))
	}

	return strings.Join(parts, ".")
}
