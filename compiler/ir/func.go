package ir

import (
	"github.com/vexlang/vex/src/compiler/tp"
)

type (
	// Func owns the nodes of one compiled function and implements the
	// capabilities the analysis needs: value numbering, control placement,
	// a dominance oracle and alias classification.
	Func struct {
		Name string

		Nodes []*Node

		gvn   map[gvnKey]*Node
		ctrl  map[ID]*Node
		idom  map[ID]*Node
		alias map[tp.Type]int

		root *Node
		top  *Node
	}

	gvnKey struct {
		op   Op
		kind tp.Kind
		val  int64
		nin  int8
		in   [3]ID
	}
)

func New(name string) *Func {
	f := &Func{
		Name:  name,
		gvn:   map[gvnKey]*Node{},
		ctrl:  map[ID]*Node{},
		idom:  map[ID]*Node{},
		alias: map[tp.Type]int{},
	}

	f.root = f.NewNode(Root, tp.KindCtrl)
	f.top = f.NewNode(Top, tp.KindVoid)

	return f
}

func (f *Func) Root() *Node { return f.root }
func (f *Func) Top() *Node  { return f.top }

// NewNode allocates a node and links its uses. It does not value-number.
func (f *Func) NewNode(op Op, kind tp.Kind, in ...*Node) *Node {
	n := &Node{
		ID:   ID(len(f.Nodes)),
		Op:   op,
		Kind: kind,
		In:   in,
	}

	f.Nodes = append(f.Nodes, n)

	for _, def := range in {
		if def != nil {
			def.addOut(n)
		}
	}

	return n
}

// ValueNumberOrInsert canonicalizes n: if an equivalent node is already
// registered, n is discarded and the existing node returned. Otherwise n is
// registered, placed at its earliest legal control, and returned.
func (f *Func) ValueNumberOrInsert(n *Node) *Node {
	k := keyOf(n)

	if prev, ok := f.gvn[k]; ok {
		f.discard(n)
		return prev
	}

	f.gvn[k] = n
	f.SetCtrl(n, f.earlyCtrl(n))

	return n
}

func keyOf(n *Node) gvnKey {
	k := gvnKey{
		op:   n.Op,
		kind: n.Kind,
		val:  n.Val,
		nin:  int8(len(n.In)),
	}

	for i, in := range n.In {
		if i == len(k.in) {
			break
		}
		if in != nil {
			k.in[i] = in.ID
		} else {
			k.in[i] = -1
		}
	}

	return k
}

// discard unlinks a node that lost value numbering. Only the most recently
// created node can be discarded.
func (f *Func) discard(n *Node) {
	for _, def := range n.In {
		if def != nil {
			def.delOut(n)
		}
	}

	if len(f.Nodes) > 0 && f.Nodes[len(f.Nodes)-1] == n {
		f.Nodes = f.Nodes[:len(f.Nodes)-1]
	}
}

// earlyCtrl is the deepest control among the inputs' controls.
func (f *Func) earlyCtrl(n *Node) *Node {
	c := f.root

	for _, in := range n.In {
		if in == nil {
			continue
		}

		ic := f.Ctrl(in)

		if f.domDepth(ic) > f.domDepth(c) {
			c = ic
		}
	}

	return c
}

// SetIn replaces input slot i of n, keeping use lists in sync.
func (f *Func) SetIn(n *Node, i int, def *Node) {
	if old := n.In[i]; old != nil {
		old.delOut(n)
	}

	n.In[i] = def

	if def != nil {
		def.addOut(n)
	}
}

func (f *Func) SetCtrl(n, c *Node) {
	f.ctrl[n.ID] = c
}

// Ctrl is the control node owning n. Control nodes own themselves.
func (f *Func) Ctrl(n *Node) *Node {
	if n.IsCFG() {
		return n
	}

	if c, ok := f.ctrl[n.ID]; ok {
		return c
	}

	return f.root
}

func (f *Func) SetIdom(c, dom *Node) {
	f.idom[c.ID] = dom
}

// Dominates reports whether control node a dominates control node b.
func (f *Func) Dominates(a, b *Node) bool {
	for c := b; c != nil; {
		if c == a {
			return true
		}

		c = f.idom[c.ID]
	}

	return false
}

func (f *Func) domDepth(c *Node) (d int) {
	for ; c != nil && c != f.root; c = f.idom[c.ID] {
		d++
	}

	return d
}

// AliasIndex classifies a memory address type. Equal types share an index;
// indices are assigned densely starting at 1.
func (f *Func) AliasIndex(t tp.Type) int {
	if i, ok := f.alias[t]; ok {
		return i
	}

	i := len(f.alias) + 1
	f.alias[t] = i

	return i
}

// Builder hooks. All results are value-numbered.

func (f *Func) ConstI(v int) *Node {
	n := f.NewNode(ConI, tp.KindInt)
	n.Val = int64(int32(v))

	return f.ValueNumberOrInsert(n)
}

func (f *Func) ConstL(v int64) *Node {
	n := f.NewNode(ConL, tp.KindLong)
	n.Val = v

	return f.ValueNumberOrInsert(n)
}

func (f *Func) Zero(kind tp.Kind) *Node {
	if kind == tp.KindLong {
		return f.ConstL(0)
	}

	return f.ConstI(0)
}

func (f *Func) MakeAdd(a, b *Node, kind tp.Kind) *Node {
	op := AddI
	if kind == tp.KindLong {
		op = AddL
	}

	return f.ValueNumberOrInsert(f.NewNode(op, kind, a, b))
}

func (f *Func) MakeSub(a, b *Node, kind tp.Kind) *Node {
	op := SubI
	if kind == tp.KindLong {
		op = SubL
	}

	return f.ValueNumberOrInsert(f.NewNode(op, kind, a, b))
}

func (f *Func) MakeShiftLeft(x *Node, k int, kind tp.Kind) *Node {
	op := LShiftI
	if kind == tp.KindLong {
		op = LShiftL
	}

	return f.ValueNumberOrInsert(f.NewNode(op, kind, x, f.ConstI(k)))
}

func (f *Func) MakeConvI2L(x *Node) *Node {
	return f.ValueNumberOrInsert(f.NewNode(ConvI2L, tp.KindLong, x))
}
