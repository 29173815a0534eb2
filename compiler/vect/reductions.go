package vect

import (
	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/set"
)

type (
	// VLoopReductions detects reduction cycles through the loop's phi
	// nodes and keeps the set of participating node IDs.
	VLoopReductions struct {
		vl *VLoop

		marked set.Bits[ir.ID]
	}

	pathEnd struct {
		node     *ir.Node
		pathSize int
	}
)

// loopMaxUnroll bounds the standalone reduction-cycle search.
const loopMaxUnroll = 16

func newVLoopReductions(vl *VLoop) *VLoopReductions {
	return &VLoopReductions{
		vl:     vl,
		marked: set.MakeBits(ir.ID(0)),
	}
}

// findInPath follows edge index input from start for at most maxPath
// steps, while every node satisfies match, until stop hits. pathSize is
// the number of edges followed; a miss returns {nil, -1}.
func findInPath(start *ir.Node, input, maxPath int, match, stop func(*ir.Node) bool) pathEnd {
	n := start

	for size := 0; size <= maxPath; size++ {
		if stop(n) {
			return pathEnd{node: n, pathSize: size}
		}

		if !match(n) || input >= len(n.In) {
			break
		}

		n = originalInput(n, input)
		if n == nil {
			break
		}
	}

	return pathEnd{node: nil, pathSize: -1}
}

// originalInput undoes canonicalization swaps on commutative nodes.
func originalInput(n *ir.Node, i int) *ir.Node {
	if n.SwappedEdges && n.Op.IsCommutative() {
		if i == 0 {
			return n.In[1]
		}
		if i == 1 {
			return n.In[0]
		}
	}

	return n.In[i]
}

func isReductionOperator(n *ir.Node) bool {
	return ir.HasReductionOp(n.Op, n.Kind)
}

// IsReduction tests whether n sits on some reduction cycle, trying every
// input edge index. The search is bounded by loopMaxUnroll.
func IsReduction(n *ir.Node) bool {
	if !isReductionOperator(n) {
		return false
	}

	for input := 0; input < len(n.In); input++ {
		if inReductionCycle(n, input) {
			return true
		}
	}

	return false
}

func inReductionCycle(n *ir.Node, input int) bool {
	hasMyOpcode := func(m *ir.Node) bool { return m.Op == n.Op }

	// First find the input reduction path to a phi node.
	pathToPhi := findInPath(n, input, loopMaxUnroll, hasMyOpcode,
		func(m *ir.Node) bool { return m.IsPhi() })

	phi := pathToPhi.node
	if phi == nil || len(phi.In) <= ir.PhiBack {
		return false
	}

	// If there is a path from the phi's loop-back to n, then n is part of
	// a reduction cycle.
	first := phi.In[ir.PhiBack]
	if first == nil {
		return false
	}

	pathFromPhi := findInPath(first, input, loopMaxUnroll, hasMyOpcode,
		func(m *ir.Node) bool { return m == n })

	return pathFromPhi.node != nil
}

// MarkReductions searches for a reduction cycle behind every phi at the
// loop header except the induction variable and marks all participants.
func (r *VLoopReductions) MarkReductions() {
	invariant(r.marked.Size() == 0, "must have been reset")

	cl := r.vl.cl
	iv := r.vl.iv

	for _, phi := range cl.Outs() {
		if !phi.IsPhi() || len(phi.Outs()) == 0 || phi == iv {
			continue
		}

		// The phi's loop-back is the first node in the reduction cycle.
		if len(phi.In) <= ir.PhiBack {
			continue
		}

		first := phi.In[ir.PhiBack]
		if first == nil {
			continue
		}

		// The node must fit the standard pattern for a reduction operator.
		if !isReductionOperator(first) {
			continue
		}

		// Test that first begins a reduction cycle ending in phi. To
		// contain the number of searched paths, all nodes of a cycle are
		// assumed to be connected via the same edge index, modulo swapped
		// inputs. Realistic, because the cycle nodes are clones made by
		// loop unrolling.
		reductionInput := -1
		pathNodes := -1

		for input := 0; input < len(first.In); input++ {
			path := findInPath(first, input, len(r.vl.loop.Body()),
				func(n *ir.Node) bool { return n.Op == first.Op && r.vl.InBody(n) },
				func(n *ir.Node) bool { return n == phi })

			if path.node != nil {
				reductionInput = input
				pathNodes = path.pathSize

				break
			}
		}

		if reductionInput == -1 {
			continue
		}

		// Reduction nodes must have no users inside the loop besides
		// their cycle successor.
		current := first
		succ := phi
		usedInLoop := false

		for i := 0; i < pathNodes; i++ {
			for _, u := range current.Outs() {
				if !r.vl.InBody(u) || u == succ {
					continue
				}

				usedInLoop = true

				break
			}

			if usedInLoop {
				break
			}

			succ = current
			current = originalInput(current, reductionInput)
		}

		if usedInLoop {
			continue
		}

		// Reduction cycle found. Mark every node on the path.
		current = first
		for i := 0; i < pathNodes; i++ {
			r.marked.Set(current.ID)
			current = originalInput(current, reductionInput)
		}

		if tr := r.vl.tr; tr.If("reductions") {
			tr.Printw("reduction cycle", "phi", phi, "first", first, "len", pathNodes)
		}
	}
}

func (r *VLoopReductions) IsMarkedReduction(n *ir.Node) bool {
	return r.marked.IsSet(n.ID)
}

// IsMarkedReductionLoop reports whether any reduction was found.
func (r *VLoopReductions) IsMarkedReductionLoop() bool {
	return r.marked.Size() != 0
}

// IsMarkedReductionPair reports whether s1 and s2 are marked reductions
// and s1 defines s2.
func (r *VLoopReductions) IsMarkedReductionPair(s1, s2 *ir.Node) bool {
	if !r.IsMarkedReduction(s1) || !r.IsMarkedReduction(s2) {
		return false
	}

	for _, u := range s1.Outs() {
		if u == s2 {
			return true
		}
	}

	return false
}
