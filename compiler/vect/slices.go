package vect

import (
	"github.com/vexlang/vex/src/compiler/ir"
)

type (
	// VLoopMemorySlices partitions the loop's memory state into
	// alias-disjoint slices. A slice exists per memory phi at the loop
	// header whose backedge input differs from its entry input; the phi is
	// the head and the backedge input the tail.
	VLoopMemorySlices struct {
		vl *VLoop

		heads []*ir.Node
		tails []*ir.Node
	}
)

func newVLoopMemorySlices(vl *VLoop) *VLoopMemorySlices {
	return &VLoopMemorySlices{vl: vl}
}

func (ms *VLoopMemorySlices) Heads() []*ir.Node { return ms.heads }
func (ms *VLoopMemorySlices) Tails() []*ir.Node { return ms.tails }

func (ms *VLoopMemorySlices) Analyze() {
	invariant(len(ms.heads) == 0 && len(ms.tails) == 0, "must have been reset")

	cl := ms.vl.cl

	for _, phi := range cl.Outs() {
		if !phi.IsMemoryPhi() || !ms.vl.InBody(phi) {
			continue
		}

		tail := phi.In[ir.PhiBack]
		if tail != phi.In[ir.PhiEntry] {
			ms.heads = append(ms.heads, phi)
			ms.tails = append(ms.tails, tail)
		}
	}

	if tr := ms.vl.tr; tr.If("memory_slices") {
		for i, h := range ms.heads {
			tr.Printw("memory slice", "i", i, "head", h, "tail", ms.tails[i])
		}
	}
}

// GetSlice collects the slice between head and tail: walk up the memory
// chain from the tail, pushing each store on the way and every load that
// hangs off a store. The result is in reverse program order, the tail
// side first.
func (ms *VLoopMemorySlices) GetSlice(head, tail *ir.Node) []*ir.Node {
	var slice []*ir.Node

	n := tail
	var prev *ir.Node

	for {
		invariant(ms.vl.InBody(n), "slice node must be in body")

		for _, out := range n.Outs() {
			if out.IsLoad() {
				if ms.vl.InBody(out) {
					slice = append(slice, out)
				}

				continue
			}

			// Every other output is expected to be prev, with a short
			// whitelist of exceptions.
			switch {
			case out.Op == ir.MergeMem && !ms.vl.InBody(out):
				// Unrolling keeps a memory edge alive, or canonicalization
				// has not run again yet.
			case out.IsMemoryPhi() && !ms.vl.InBody(out):
				// Ditto.
			case out.Op == ir.StoreCM && len(out.In) > ir.MemOopStore && out.In[ir.MemOopStore] == n:
				// Card mark store uses the covered store as a precedence
				// edge.
			default:
				invariant(out == prev || prev == nil, "no branches off of store slice")
			}
		}

		if n == head {
			break
		}

		slice = append(slice, n)
		prev = n

		invariant(n.IsMem(), "unexpected node on slice")
		n = n.In[ir.MemMem]
	}

	return slice
}

// SameMemorySlice reports whether two memory nodes address the same alias
// class.
func (ms *VLoopMemorySlices) SameMemorySlice(n1, n2 *ir.Node) bool {
	f := ms.vl.f

	return f.AliasIndex(n1.Adr) == f.AliasIndex(n2.Adr)
}
