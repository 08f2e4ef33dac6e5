package query

import (
	"github.com/fabriqdb/fabriq/buffer"
)

// Command descriptor layout understood by the gqeJoin kernel. The payload is a
// fixed block of 32 bit words:
//
//	word 0,1   build-side key column indices (second is -1 for a single key)
//	word 2,3   probe-side key column indices
//	word 4     number of output columns
//	word 5+    output column pairs: side (0 build, 1 probe), column index
const (
	descKeyA0   = 0
	descKeyA1   = 1
	descKeyB0   = 2
	descKeyB1   = 3
	descNumOut  = 4
	descOutBase = 5

	sideBuild = 0
	sideProbe = 1
)

// OutCol selects one output column of a join stage.
type OutCol struct {
	Side int
	Col  int
}

// NewJoinDescriptor populates and seals a descriptor from the join stage template
// parameters. A second key index of -1 means a single-column key.
func NewJoinDescriptor(name string, keyA [2]int, keyB [2]int, out []OutCol) *buffer.CmdDescriptor {
	d := buffer.NewCmdDescriptor(name)
	d.SetWord(descKeyA0, int32(keyA[0]))
	d.SetWord(descKeyA1, int32(keyA[1]))
	d.SetWord(descKeyB0, int32(keyB[0]))
	d.SetWord(descKeyB1, int32(keyB[1]))
	d.SetWord(descNumOut, int32(len(out)))
	for i, oc := range out {
		d.SetWord(descOutBase+2*i, int32(oc.Side))
		d.SetWord(descOutBase+2*i+1, int32(oc.Col))
	}
	d.Seal()
	return d
}

// Descriptors builds the five join stage parameter blocks of the q9 template.
//
// Stage column flow (all intermediates are generic int columns):
//
//	k0  th0 x partsupp on partkey        -> tk0: suppkey, partkey, supplycost
//	k1  supplier x tk0 on suppkey        -> tk1: nationkey, partkey, suppkey, supplycost
//	k2  tk1 x lineitem on partkey+suppkey-> tk0: nationkey, supplycost, orderkey,
//	                                             extendedprice, discount, quantity
//	k3  tk0 x orders on orderkey         -> tk1: nationkey, supplycost, orderdate,
//	                                             extendedprice, discount, quantity
//	k4  nation x tk1 on nationkey        -> tk0: nationrowid, orderdate, extendedprice,
//	                                             discount, quantity, supplycost
func Descriptors() [NumStages]*buffer.CmdDescriptor {
	return [NumStages]*buffer.CmdDescriptor{
		NewJoinDescriptor("cfg0", [2]int{0, -1}, [2]int{0, -1}, []OutCol{
			{sideProbe, 1}, {sideProbe, 0}, {sideProbe, 2},
		}),
		NewJoinDescriptor("cfg1", [2]int{0, -1}, [2]int{0, -1}, []OutCol{
			{sideBuild, 1}, {sideProbe, 1}, {sideProbe, 0}, {sideProbe, 2},
		}),
		NewJoinDescriptor("cfg2", [2]int{1, 2}, [2]int{1, 0}, []OutCol{
			{sideBuild, 0}, {sideBuild, 3}, {sideProbe, 2}, {sideProbe, 3}, {sideProbe, 4}, {sideProbe, 5},
		}),
		NewJoinDescriptor("cfg3", [2]int{2, -1}, [2]int{0, -1}, []OutCol{
			{sideBuild, 0}, {sideBuild, 1}, {sideProbe, 1}, {sideBuild, 3}, {sideBuild, 4}, {sideBuild, 5},
		}),
		NewJoinDescriptor("cfg4", [2]int{0, -1}, [2]int{0, -1}, []OutCol{
			{sideBuild, 2}, {sideProbe, 2}, {sideProbe, 3}, {sideProbe, 4}, {sideProbe, 5}, {sideProbe, 1},
		}),
	}
}
