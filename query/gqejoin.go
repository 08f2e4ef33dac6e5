package query

import (
	"github.com/twmb/murmur3"

	"github.com/fabriqdb/fabriq/buffer"
	"github.com/fabriqdb/fabriq/common"
	"github.com/fabriqdb/fabriq/errors"
)

// GqeJoinKernelName is the kernel every join stage of the q9 template binds to.
const GqeJoinKernelName = "gqeJoin"

// GqeJoinKernel is the host-side model of the gqeJoin accelerator kernel, used by
// the simulated device. Argument order is the one KernelEngine enqueues: build
// input, probe input, output, command descriptor, scratch. It hash-joins the two
// inputs on the key columns named in the descriptor and writes the selected
// columns plus the output row count into the output buffer.
func GqeJoinKernel(args [][]byte) error {
	if len(args) < 4 {
		return errors.Errorf("gqeJoin needs 4 buffers, got %d", len(args))
	}
	build, err := buffer.ParseView(args[0])
	if err != nil {
		return errors.Wrap(err, "build input")
	}
	probe, err := buffer.ParseView(args[1])
	if err != nil {
		return errors.Wrap(err, "probe input")
	}
	out, err := buffer.ParseView(args[2])
	if err != nil {
		return errors.Wrap(err, "output")
	}
	desc := args[3]

	keyA := [2]int{int(buffer.DescWord(desc, descKeyA0)), int(buffer.DescWord(desc, descKeyA1))}
	keyB := [2]int{int(buffer.DescWord(desc, descKeyB0)), int(buffer.DescWord(desc, descKeyB1))}
	numOut := int(buffer.DescWord(desc, descNumOut))
	if numOut <= 0 || numOut > out.ColumnCount() {
		return errors.Errorf("descriptor selects %d output columns, output has %d", numOut, out.ColumnCount())
	}

	// Build a hash table over the build side. Duplicate keys are legal - every
	// matching build row joins with every matching probe row.
	ht := make(map[uint64][]int, build.RowCount())
	for row := 0; row < build.RowCount(); row++ {
		h := hashKey(build, keyA, row)
		ht[h] = append(ht[h], row)
	}

	outRow := 0
	for row := 0; row < probe.RowCount(); row++ {
		h := hashKey(probe, keyB, row)
		for _, brow := range ht[h] {
			if !keysEqual(build, keyA, brow, probe, keyB, row) {
				continue
			}
			if outRow >= out.Capacity() {
				return errors.Errorf("join output overflows capacity %d", out.Capacity())
			}
			for i := 0; i < numOut; i++ {
				side := buffer.DescWord(desc, descOutBase+2*i)
				col := int(buffer.DescWord(desc, descOutBase+2*i+1))
				var v int64
				if side == sideBuild {
					v = build.IntAt(col, brow)
				} else {
					v = probe.IntAt(col, row)
				}
				out.SetIntAt(i, outRow, v)
			}
			outRow++
		}
	}
	return out.SetRowCount(outRow)
}

func hashKey(v *buffer.View, key [2]int, row int) uint64 {
	var raw [16]byte
	common.WriteUint64ToBufferLE(raw[:], 0, uint64(v.IntAt(key[0], row)))
	if key[1] >= 0 {
		common.WriteUint64ToBufferLE(raw[:], 8, uint64(v.IntAt(key[1], row)))
	}
	return murmur3.Sum64(raw[:])
}

func keysEqual(a *buffer.View, keyA [2]int, arow int, b *buffer.View, keyB [2]int, brow int) bool {
	if a.IntAt(keyA[0], arow) != b.IntAt(keyB[0], brow) {
		return false
	}
	if keyA[1] < 0 {
		return true
	}
	return a.IntAt(keyA[1], arow) == b.IntAt(keyB[1], brow)
}
