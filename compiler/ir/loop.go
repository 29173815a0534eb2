package ir

import (
	"github.com/vexlang/vex/src/compiler/set"
)

type (
	// CountedLoopInfo is the metadata of a counted loop, attached as the
	// Aux of its CountedLoop head.
	CountedLoopInfo struct {
		IV   *Node // induction variable phi
		Exit *Node // CountedLoopEnd

		Stride int

		Main bool
		Pre  bool
		Post bool

		Vectorized bool
		UnrollOnly bool

		// SLPMaxUnroll is the unroll factor assigned by the unroll
		// analysis; zero means the loop was never analyzed.
		SLPMaxUnroll int

		// Pre-loop links, set on main loops only.
		PreHead *Node // pre-loop CountedLoop
		PreEnd  *Node // pre-loop CountedLoopEnd, its limit is the Opaque1
	}

	// Loop is the loop-tree view of one loop: its head, the raw body list
	// and a membership oracle.
	Loop struct {
		f    *Func
		head *Node
		body []*Node
		mem  set.Bitmap
	}
)

// NewLoop wraps a loop head and its raw body list. The body must contain
// the head and every node whose control is inside the loop.
func NewLoop(f *Func, head *Node, body []*Node) *Loop {
	l := &Loop{
		f:    f,
		head: head,
		body: body,
		mem:  set.MakeBitmap(len(f.Nodes)),
	}

	for _, n := range body {
		l.mem.Set(int(n.ID))
	}

	return l
}

func (l *Loop) Func() *Func  { return l.f }
func (l *Loop) Head() *Node  { return l.head }
func (l *Loop) Body() []*Node { return l.body }

// Counted is the counted-loop metadata, nil if the head is not a valid
// counted loop.
func (l *Loop) Counted() *CountedLoopInfo {
	if l.head.Op != CountedLoop {
		return nil
	}

	info, _ := l.head.Aux.(*CountedLoopInfo)

	return info
}

// Contains reports raw body membership.
func (l *Loop) Contains(n *Node) bool {
	return l.mem.IsSet(int(n.ID))
}

// Member reports loop membership: control nodes by the body list, data
// nodes by their owning control.
func (l *Loop) Member(n *Node) bool {
	if n.IsCFG() {
		return l.Contains(n)
	}

	return l.Contains(l.f.Ctrl(n))
}

// BackControl is the control entering the head over the backedge.
func (l *Loop) BackControl() *Node {
	return l.head.In[PhiBack]
}
