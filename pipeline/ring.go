package pipeline

import (
	"github.com/fabriqdb/fabriq/buffer"
)

// Ring is the ping-pong scratch pair: two tables of identical schema alternated
// across a chain of kernel stages so memory use stays constant regardless of
// pipeline depth. The table a stage writes becomes the next stage's input after
// Flip. Overwrite hazards are prevented by the driver's wait-lists, not by the
// ring itself.
type Ring struct {
	bufs [2]*buffer.Table
	idx  int
}

func NewRing(a *buffer.Table, b *buffer.Table) *Ring {
	return &Ring{bufs: [2]*buffer.Table{a, b}}
}

// Input returns the table the current stage reads.
func (r *Ring) Input() *buffer.Table {
	return r.bufs[r.idx]
}

// Output returns the table the current stage writes.
func (r *Ring) Output() *buffer.Table {
	return r.bufs[1-r.idx]
}

// Flip advances to the next stage boundary: the output role becomes the input role.
func (r *Ring) Flip() {
	r.idx = 1 - r.idx
}
