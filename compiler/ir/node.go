package ir

import (
	"tlog.app/go/tlog/tlwire"

	"github.com/vexlang/vex/src/compiler/tp"
)

type (
	ID int

	// Node is an SSA node. Inputs are ordered; the meaning of each slot is
	// fixed per op family (see the index constants below). Uses are
	// maintained as a plain list.
	Node struct {
		ID ID
		Op Op

		In   []*Node
		outs []*Node

		// Kind is the value kind produced by the node. Memory phis carry
		// KindMem, control nodes KindCtrl.
		Kind tp.Kind

		// Val is the constant payload of ConI/ConL.
		Val int64

		// Adr is the accessed address type of a memory node. It keys the
		// alias classification.
		Adr tp.Type

		// Pin is the optional pinning control of Bool/Cmp nodes.
		Pin *Node

		// SwappedEdges marks commutative nodes whose two inputs were
		// swapped by canonicalization.
		SwappedEdges bool

		// Aux holds *CountedLoopInfo on CountedLoop heads.
		Aux any
	}
)

// Input slots.
const (
	PhiRegion = 0 // Phi: owning region
	PhiEntry  = 1 // Phi: entry value
	PhiBack   = 2 // Phi: loop-back value

	MemCtrl     = 0 // memory node: control
	MemMem      = 1 // memory node: memory state
	MemAdr      = 2 // memory node: address
	MemVal      = 3 // store: stored value
	MemOopStore = 4 // StoreCM: precedence edge to the covered store

	AddPBase = 0 // AddP: object base
	AddPAdr  = 1 // AddP: address
	AddPOff  = 2 // AddP: offset
)

func (n *Node) Outs() []*Node { return n.outs }

func (n *Node) IsCFG() bool  { return n.Op.IsCFG() }
func (n *Node) IsPhi() bool  { return n.Op == Phi }
func (n *Node) IsCon() bool  { return n.Op == ConI || n.Op == ConL }
func (n *Node) IsLoad() bool { return n.Op.IsLoad() }
func (n *Node) IsStore() bool {
	return n.Op.IsStore()
}

func (n *Node) IsMem() bool {
	return n.Op.IsMem()
}

func (n *Node) IsMemoryPhi() bool {
	return n.Op == Phi && n.Kind == tp.KindMem
}

func (n *Node) IsTop() bool {
	return n.Op == Top
}

// GetInt is the payload of a ConI node.
func (n *Node) GetInt() int {
	return int(int32(n.Val))
}

// GetLong is the payload of a ConL node.
func (n *Node) GetLong() int64 {
	return n.Val
}

// MemoryKind is the declared element kind of a memory access.
func (n *Node) MemoryKind() tp.Kind {
	return n.Op.MemoryKind()
}

// MemorySize is the accessed size in bytes.
func (n *Node) MemorySize() int {
	return n.Op.MemoryKind().Size()
}

func (n *Node) addOut(use *Node) {
	n.outs = append(n.outs, use)
}

func (n *Node) delOut(use *Node) {
	for i, o := range n.outs {
		if o == use {
			n.outs = append(n.outs[:i], n.outs[i+1:]...)
			return
		}
	}
}

// TlogAppend renders a node as its ID, the way dumps reference nodes.
func (n *Node) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if n == nil {
		return e.AppendNil(b)
	}

	return e.AppendInt(b, int(n.ID))
}
