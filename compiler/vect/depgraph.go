package vect

import (
	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/set"
)

type (
	// VLoopDependenceGraph is the memory dependence DAG over the body:
	// one dependence node per in-body memory node plus a per-slice sink
	// and one global root and sink. Combined with the data edges it
	// answers independence queries in O(V+E).
	VLoopDependenceGraph struct {
		vl     *VLoop
		body   *VLoopBody
		slices *VLoopMemorySlices

		dmap map[ir.ID]*DependenceNode
		root *DependenceNode
		sink *DependenceNode

		depth []int // by body position
	}

	// DependenceNode carries intrusive in/out edge list heads. A nil node
	// marks a synthetic slice sink.
	DependenceNode struct {
		node *ir.Node

		inHead  *DependenceEdge
		outHead *DependenceEdge
	}

	// DependenceEdge carries order only.
	DependenceEdge struct {
		pred, succ *DependenceNode

		nextIn, nextOut *DependenceEdge
	}

	// PredsIterator walks the predecessors of a node: its dependence-edge
	// predecessors followed by its relevant data inputs.
	PredsIterator struct {
		n *ir.Node

		nextIdx, endIdx int
		depNext         *DependenceEdge

		current *ir.Node
		done    bool
	}
)

func newVLoopDependenceGraph(vl *VLoop, body *VLoopBody, slices *VLoopMemorySlices) *VLoopDependenceGraph {
	return &VLoopDependenceGraph{vl: vl, body: body, slices: slices}
}

func (g *VLoopDependenceGraph) Root() *DependenceNode { return g.root }
func (g *VLoopDependenceGraph) Sink() *DependenceNode { return g.sink }

func (d *DependenceNode) Node() *ir.Node { return d.node }

func (d *DependenceNode) InCnt() (ct int) {
	for e := d.inHead; e != nil; e = e.nextIn {
		ct++
	}

	return ct
}

func (d *DependenceNode) OutCnt() (ct int) {
	for e := d.outHead; e != nil; e = e.nextOut {
		ct++
	}

	return ct
}

func (g *VLoopDependenceGraph) makeNode(n *ir.Node) *DependenceNode {
	d := &DependenceNode{node: n}

	if n != nil {
		invariant(g.dmap[n.ID] == nil, "one init only")
		g.dmap[n.ID] = d
	}

	return d
}

func (g *VLoopDependenceGraph) get(n *ir.Node) *DependenceNode {
	return g.dmap[n.ID]
}

func (g *VLoopDependenceGraph) makeEdge(dpred, dsucc *DependenceNode) *DependenceEdge {
	e := &DependenceEdge{
		pred:    dpred,
		succ:    dsucc,
		nextIn:  dsucc.inHead,
		nextOut: dpred.outHead,
	}

	dpred.outHead = e
	dsucc.inHead = e

	return e
}

// Build wires every memory slice: the slice head hangs off the root, a
// synthetic sink collects the slice's last ops, and every pair of ops that
// could overlap (VPointer comparison not provably disjoint) gets an edge.
// Load-after-load pairs never conflict and are skipped.
func (g *VLoopDependenceGraph) Build() {
	invariant(g.dmap == nil, "must be freshly reset")

	g.dmap = map[ir.ID]*DependenceNode{}
	g.root = &DependenceNode{}
	g.sink = &DependenceNode{}

	// One dependence node per memory node.
	for _, n := range g.body.Body() {
		if n.IsMem() || n.IsMemoryPhi() {
			g.makeNode(n)
		}
	}

	heads := g.slices.Heads()
	tails := g.slices.Tails()

	for i, head := range heads {
		tail := tails[i]

		// Slice in predecessor order, last op first.
		slice := g.slices.GetSlice(head, tail)

		sliceHead := g.get(head)
		g.makeEdge(g.root, sliceHead)

		sliceSink := g.makeNode(nil)
		g.makeEdge(sliceSink, g.sink)

		for j := len(slice) - 1; j >= 0; j-- {
			s1 := slice[j]

			// No dependency yet, hang off the slice head.
			if g.get(s1).InCnt() == 0 {
				g.makeEdge(sliceHead, g.get(s1))
			}

			p1 := NewVPointer(s1, g.vl)
			sinkDependent := true

			for k := j - 1; k >= 0; k-- {
				s2 := slice[k]

				if s1.IsLoad() && s2.IsLoad() {
					continue
				}

				p2 := NewVPointer(s2, g.vl)

				if !NotEqual(p1.CmpWith(p2)) {
					// Possibly the same address.
					g.makeEdge(g.get(s1), g.get(s2))
					sinkDependent = false
				}
			}

			if sinkDependent {
				g.makeEdge(g.get(s1), sliceSink)
			}
		}
	}

	g.computeMaxDepth()

	if tr := g.vl.tr; tr.If("dependence_graph") {
		for _, n := range g.body.Body() {
			tr.Printw("dependence", "node", n, "depth", g.Depth(n))
		}
	}
}

// Depth is the longest path from the root over in-body predecessors.
func (g *VLoopDependenceGraph) Depth(n *ir.Node) int {
	return g.depth[g.body.BodyIdx(n)]
}

func (g *VLoopDependenceGraph) setDepth(n *ir.Node, d int) {
	g.depth[g.body.BodyIdx(n)] = d
}

// computeMaxDepth iterates to the fixpoint where every non-phi node is one
// deeper than its deepest in-body predecessor.
func (g *VLoopDependenceGraph) computeMaxDepth() {
	invariant(g.depth == nil, "must be freshly reset")

	body := g.body.Body()
	g.depth = make([]int, len(body))

	ct := 0

	for again := true; again; {
		again = false

		for _, n := range body {
			if n.IsPhi() {
				continue
			}

			dOrig := g.Depth(n)
			dIn := 0

			for it := g.Preds(n); !it.Done(); it.Next() {
				pred := it.Current()

				if g.vl.InBody(pred) && g.Depth(pred) > dIn {
					dIn = g.Depth(pred)
				}
			}

			if dIn+1 != dOrig {
				g.setDepth(n, dIn+1)
				again = true
			}
		}

		ct++
	}

	if tr := g.vl.tr; tr.If("dependence_graph") {
		tr.Printw("max depth iterated", "times", ct)
	}
}

// Independent reports whether no path connects s1 and s2: a backward
// traversal from the deeper node, pruned below the shallower depth, never
// reaches the shallower node.
func (g *VLoopDependenceGraph) Independent(s1, s2 *ir.Node) bool {
	d1 := g.Depth(s1)
	d2 := g.Depth(s2)

	if d1 == d2 {
		// Same depth: a path would need a depth difference, so distinct
		// nodes are independent; a node depends on itself.
		return s1 != s2
	}

	deep, shallow := s1, s2
	if d2 > d1 {
		deep, shallow = s2, s1
	}

	minD := min(d1, d2)

	worklist := []*ir.Node{deep}
	seen := set.MakeBitmap(len(g.body.Body()))
	seen.Set(g.body.BodyIdx(deep))

	for i := 0; i < len(worklist); i++ {
		n := worklist[i]

		for it := g.Preds(n); !it.Done(); it.Next() {
			pred := it.Current()

			if !g.vl.InBody(pred) || g.Depth(pred) < minD {
				continue
			}

			if pred == shallow {
				return false // found it, dependent
			}

			if idx := g.body.BodyIdx(pred); !seen.IsSet(idx) {
				seen.Set(idx)
				worklist = append(worklist, pred)
			}
		}
	}

	return true // not found, independent
}

// MutuallyIndependent reports whether all nodes are pairwise independent.
// Querying Independent per pair would traverse the graph quadratically
// often; one traversal started at every node at once, pruned below the
// smallest depth, suffices.
func (g *VLoopDependenceGraph) MutuallyIndependent(nodes []*ir.Node) bool {
	invariant(len(nodes) > 0, "need nodes to check")

	size := len(g.body.Body())
	nodesSet := set.MakeBitmap(size)
	seen := set.MakeBitmap(size)

	minD := g.Depth(nodes[0])
	worklist := make([]*ir.Node, 0, len(nodes))

	for _, n := range nodes {
		if d := g.Depth(n); d < minD {
			minD = d
		}

		if idx := g.body.BodyIdx(n); !seen.IsSet(idx) {
			seen.Set(idx)
			worklist = append(worklist, n)
		}

		nodesSet.Set(g.body.BodyIdx(n))
	}

	for i := 0; i < len(worklist); i++ {
		n := worklist[i]

		for it := g.Preds(n); !it.Done(); it.Next() {
			pred := it.Current()

			if !g.vl.InBody(pred) || g.Depth(pred) < minD {
				continue
			}

			if nodesSet.IsSet(g.body.BodyIdx(pred)) {
				return false
			}

			if idx := g.body.BodyIdx(pred); !seen.IsSet(idx) {
				seen.Set(idx)
				worklist = append(worklist, pred)
			}
		}
	}

	return true
}

// Preds starts a predecessor walk of n. Loads depend on their memory
// predecessors and their address; stores additionally on their value;
// plain data nodes only on their inputs.
func (g *VLoopDependenceGraph) Preds(n *ir.Node) PredsIterator {
	it := PredsIterator{n: n}

	switch {
	case n.IsStore() || n.IsLoad():
		it.nextIdx = ir.MemAdr
		it.endIdx = len(n.In)
		it.depNext = g.get(n).inHead
	case n.IsMem():
		it.depNext = g.get(n).inHead
	default:
		if n.IsPhi() {
			it.nextIdx = ir.PhiEntry
		}

		it.endIdx = len(n.In)
	}

	it.Next()

	return it
}

func (it *PredsIterator) Done() bool        { return it.done }
func (it *PredsIterator) Current() *ir.Node { return it.current }

func (it *PredsIterator) Next() {
	for {
		if it.depNext != nil {
			// Memory predecessors first.
			it.current = it.depNext.pred.node
			it.depNext = it.depNext.nextIn
		} else if it.nextIdx < it.endIdx {
			it.current = it.n.In[it.nextIdx]
			it.nextIdx++
		} else {
			it.done = true
			return
		}

		if it.current != nil {
			return
		}
	}
}
