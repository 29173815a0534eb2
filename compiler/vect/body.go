package vect

import (
	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/set"
)

type (
	// VLoopBody is the reverse-postorder list of in-loop nodes plus the
	// node -> position map.
	VLoopBody struct {
		vl *VLoop

		body    []*ir.Node
		bodyIdx map[ir.ID]int
	}
)

const FailureNodeNotAllowed = Failure("node not allowed in loop body")

func newVLoopBody(vl *VLoop) *VLoopBody {
	return &VLoopBody{vl: vl}
}

func (b *VLoopBody) Body() []*ir.Node { return b.body }

func (b *VLoopBody) BodyIdx(n *ir.Node) int {
	return b.bodyIdx[n.ID]
}

// Construct builds the body list in two passes: first reject node kinds
// vectorization cannot handle, then emit a reverse postorder of a
// depth-first walk over out-edges starting at the loop head.
func (b *VLoopBody) Construct() error {
	invariant(len(b.body) == 0, "must have been reset")

	cl := b.vl.cl
	raw := b.vl.loop.Body()

	b.bodyIdx = make(map[ir.ID]int, len(raw))

	// First pass:
	//  (1) no LoadStore, MergeMem or data Proj nodes,
	//  (2) count nodes and assign a temporary index,
	//  (3) every non-control node keeps an input inside the loop.
	bodyCount := 0

	for i, n := range raw {
		if !b.vl.InBody(n) {
			continue
		}

		b.bodyIdx[n.ID] = i
		bodyCount++

		if n.Op.IsLoadStore() || n.Op == ir.MergeMem || n.Op == ir.Proj {
			if tr := b.vl.tr; tr.If("body") {
				tr.Printw("body rejects node", "node", n, "op", n.Op.String())
			}

			return FailureNodeNotAllowed
		}

		if !n.IsCFG() {
			found := false

			for _, def := range n.In {
				if def != nil && b.vl.InBody(def) {
					found = true
					break
				}
			}

			invariant(found, "every non-cfg node must have an input inside the loop")
		}
	}

	// Depth-first walk over out-edges, emitting reverse postorder.
	visited := set.MakeBitmap(len(raw))
	postVisited := set.MakeBitmap(len(raw))

	stack := make([]*ir.Node, 0, bodyCount)

	visited.Set(b.bodyIdx[cl.ID])
	stack = append(stack, cl)

	rpoIdx := bodyCount - 1
	b.body = make([]*ir.Node, bodyCount)

	for len(stack) != 0 {
		n := stack[len(stack)-1] // leave node on stack
		idx := b.bodyIdx[n.ID]

		switch {
		case !visited.IsSet(idx):
			// forward arc in graph
			visited.Set(idx)
		case !postVisited.IsSet(idx):
			// cross or back arc
			oldLen := len(stack)

			for _, use := range n.Outs() {
				if b.vl.InBody(use) &&
					!visited.IsSet(b.bodyIdx[use.ID]) &&
					// don't go around the backedge
					(!use.IsPhi() || n == cl) {
					stack = append(stack, use)
				}
			}

			if len(stack) == oldLen {
				// No additional uses, post visit node now.
				stack = stack[:len(stack)-1]

				invariant(rpoIdx >= 0, "must still have idx to pass out")

				b.body[rpoIdx] = n
				rpoIdx--

				postVisited.Set(idx)
			}
		default:
			stack = stack[:len(stack)-1] // remove post-visited node
		}
	}

	invariant(rpoIdx == -1, "all body members found")

	// Final map of body positions.
	for j, n := range b.body {
		b.bodyIdx[n.ID] = j
	}

	if tr := b.vl.tr; tr.If("body") {
		for i, n := range b.body {
			tr.Printw("body", "i", i, "node", n, "op", n.Op.String())
		}
	}

	return nil
}
