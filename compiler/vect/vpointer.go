package vect

import (
	"math"

	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/tp"
)

type (
	// VPointer is the canonical linear form of a loop memory access:
	//
	//	adr = base + offset + invar + scale * iv
	//
	// Construction pattern-matches the address expression of mem. A failed
	// match leaves the pointer invalid; invalid pointers take part in no
	// alignment or aliasing decision.
	VPointer struct {
		mem *ir.Node
		vl  *VLoop

		base  *ir.Node
		adr   *ir.Node
		scale int
		offset int
		invar *ir.Node

		nstack      *NodeStack
		analyzeOnly bool
		stackIdx    int
	}

	// Cmp is the result of comparing two VPointers. Less and Greater mean
	// provably disjoint accesses, Equal means possible overlap of
	// comparable pointers, Unknown means not comparable.
	Cmp int

	// NodeStack records in-loop nodes traversed during an analyze-only
	// match.
	NodeStack struct {
		nodes []*ir.Node
		idxs  []int
	}
)

const (
	CmpLess     Cmp = 1
	CmpGreater  Cmp = 2
	CmpNotEqual Cmp = CmpLess | CmpGreater
	CmpEqual    Cmp = 4
	CmpUnknown  Cmp = 8
)

// NotEqual reports whether c proves the two accesses never share an
// address.
func NotEqual(c Cmp) bool {
	return c <= CmpNotEqual
}

// NewVPointer disassembles the address of mem within vl. New IR nodes may
// be created and value-numbered for aggregated invariants.
func NewVPointer(mem *ir.Node, vl *VLoop) *VPointer {
	return newVPointer(mem, vl, nil, false)
}

// AnalyzeVPointer matches like NewVPointer but creates no IR nodes and
// pushes every traversed in-loop node on nstack.
func AnalyzeVPointer(mem *ir.Node, vl *VLoop, nstack *NodeStack) *VPointer {
	return newVPointer(mem, vl, nstack, true)
}

func newVPointer(mem *ir.Node, vl *VLoop, nstack *NodeStack, analyzeOnly bool) *VPointer {
	p := &VPointer{
		mem:         mem,
		vl:          vl,
		nstack:      nstack,
		analyzeOnly: analyzeOnly,
	}

	adr := mem.In[ir.MemAdr]
	if adr == nil || adr.Op != ir.AddP {
		return p // too complex
	}

	// Match AddP(base, AddP(ptr, k*iv [+ invariant]), constant).
	base := adr.In[ir.AddPBase]

	// The base address must be loop invariant.
	if p.isLoopMember(base) {
		return p
	}

	// Unsafe references require misaligned vector access support.
	if base.IsTop() && !vl.plat.MisalignedOK {
		return p
	}

	for {
		if !p.scaledIVPlusOffset(adr.In[ir.AddPOff]) {
			return p // too complex
		}

		adr = adr.In[ir.AddPAdr]
		if base == adr || adr.Op != ir.AddP {
			break // stop looking at AddPs
		}
	}

	if p.isLoopMember(adr) {
		return p
	}

	if !base.IsTop() && adr != base {
		return p
	}

	p.base = base
	p.adr = adr

	if tr := vl.tr; tr.If("vpointer") {
		tr.Printw("vpointer", "mem", mem, "base", p.base, "adr", p.adr,
			"scale", p.scale, "offset", p.offset, "invar", p.invar)
	}

	return p
}

// scratch clones the match state for a temporary sub-expression match.
func (p *VPointer) scratch() *VPointer {
	return &VPointer{
		mem:         p.mem,
		vl:          p.vl,
		nstack:      p.nstack,
		analyzeOnly: p.analyzeOnly,
		stackIdx:    p.stackIdx,
	}
}

func (p *VPointer) Valid() bool   { return p.adr != nil }
func (p *VPointer) Mem() *ir.Node { return p.mem }
func (p *VPointer) Base() *ir.Node { return p.base }
func (p *VPointer) Adr() *ir.Node  { return p.adr }
func (p *VPointer) Scale() int     { return p.scale }
func (p *VPointer) Offset() int    { return p.offset }
func (p *VPointer) Invar() *ir.Node { return p.invar }

func (p *VPointer) MemorySize() int {
	return p.mem.MemorySize()
}

func (p *VPointer) hasIV() bool {
	return p.scale != 0
}

func (p *VPointer) f() *ir.Func {
	return p.vl.f
}

func (p *VPointer) iv() *ir.Node {
	return p.vl.iv
}

func (p *VPointer) isLoopMember(n *ir.Node) bool {
	return p.vl.IsLoopMember(n)
}

// invariant reports whether n can be used as a loop invariant. For main
// loops the invariant must additionally dominate the pre-loop head, or it
// cannot feed the pre-loop limit check.
func (p *VPointer) invariant(n *ir.Node) bool {
	isNotMember := !p.isLoopMember(n)

	if isNotMember && p.vl.loop.Counted().Main {
		nc := p.f().Ctrl(n)
		return p.f().Dominates(nc, p.vl.PreLoopHead())
	}

	return isNotMember
}

// Match: k*iv + offset
// where k is a constant that may be zero, and
// offset is (k2 [+/- invariant]) where k2 may be zero and invariant is optional.
func (p *VPointer) scaledIVPlusOffset(n *ir.Node) bool {
	if p.scaledIV(n) {
		return true
	}

	if p.offsetPlusK(n, false) {
		return true
	}

	switch n.Op {
	case ir.AddI:
		if p.offsetPlusK(n.In[1], false) && p.scaledIVPlusOffset(n.In[0]) {
			return true
		}
		if p.offsetPlusK(n.In[0], false) && p.scaledIVPlusOffset(n.In[1]) {
			return true
		}
	case ir.SubI, ir.SubL:
		if p.offsetPlusK(n.In[1], true) && p.scaledIVPlusOffset(n.In[0]) {
			return true
		}
		if p.offsetPlusK(n.In[0], false) && p.scaledIVPlusOffset(n.In[1]) {
			p.scale *= -1
			return true
		}
	}

	return false
}

// Match: k*iv where k is a constant that's not zero.
func (p *VPointer) scaledIV(n *ir.Node) bool {
	if p.scale != 0 {
		return false // already found a scale
	}

	if n == p.iv() {
		p.scale = 1
		return true
	}

	if p.analyzeOnly && p.isLoopMember(n) {
		p.nstack.Push(n, p.stackIdx)
		p.stackIdx++
	}

	switch n.Op {
	case ir.MulI:
		if n.In[0] == p.iv() && n.In[1].Op == ir.ConI {
			p.scale = n.In[1].GetInt()
			return true
		}
		if n.In[1] == p.iv() && n.In[0].Op == ir.ConI {
			p.scale = n.In[0].GetInt()
			return true
		}
	case ir.LShiftI:
		if n.In[0] == p.iv() && n.In[1].Op == ir.ConI {
			p.scale = 1 << n.In[1].GetInt()
			return true
		}
	case ir.ConvI2L, ir.CastII:
		if p.scaledIVPlusOffset(n.In[0]) {
			return true
		}
	case ir.LShiftL:
		if n.In[1].Op == ir.ConI && !p.hasIV() {
			// The offset accumulated so far must be preserved, so match
			// the subtree on a temporary object.
			tmp := p.scratch()

			if tmp.scaledIVPlusOffset(n.In[0]) {
				k := n.In[1].GetInt()

				p.scale = tmp.scale << k
				p.offset += tmp.offset << k

				if tmp.invar != nil {
					if p.analyzeOnly {
						p.invar = tmp.invar
					} else {
						kind := tmp.invar.Kind
						p.maybeAddToInvar(p.f().MakeShiftLeft(tmp.invar, k, kind), false)
					}
				}

				return true
			}
		}
	}

	return false
}

// Match: offset is (k [+/- invariant])
// where k may be zero and invariant is optional, but not both.
func (p *VPointer) offsetPlusK(n *ir.Node, negate bool) bool {
	switch n.Op {
	case ir.ConI:
		if negate {
			p.offset -= n.GetInt()
		} else {
			p.offset += n.GetInt()
		}

		return true
	case ir.ConL:
		// Okay if the value fits into an int.
		v := n.GetLong()
		if v < math.MinInt32 || v > math.MaxInt32 {
			return false
		}

		if negate {
			p.offset -= int(v)
		} else {
			p.offset += int(v)
		}

		return true
	}

	if p.analyzeOnly && p.isLoopMember(n) {
		p.nstack.Push(n, p.stackIdx)
		p.stackIdx++
	}

	if n.Op == ir.AddI {
		if n.In[1].Op == ir.ConI && p.invariant(n.In[0]) {
			p.maybeAddToInvar(n.In[0], negate)
			p.addOffset(n.In[1].GetInt(), negate)

			return true
		}
		if n.In[0].Op == ir.ConI && p.invariant(n.In[1]) {
			p.addOffset(n.In[0].GetInt(), negate)
			p.maybeAddToInvar(n.In[1], negate)

			return true
		}
	}

	if n.Op == ir.SubI {
		if n.In[1].Op == ir.ConI && p.invariant(n.In[0]) {
			p.maybeAddToInvar(n.In[0], negate)
			p.addOffset(n.In[1].GetInt(), !negate)

			return true
		}
		if n.In[0].Op == ir.ConI && p.invariant(n.In[1]) {
			p.addOffset(n.In[0].GetInt(), negate)
			p.maybeAddToInvar(n.In[1], !negate)

			return true
		}
	}

	if !p.isLoopMember(n) {
		// n is loop invariant. Strip ConvI2L and CastII before checking
		// dominance over the pre-loop head.
		m := n
		if m.Op == ir.ConvI2L {
			m = m.In[0]
		}
		if m.Op == ir.CastII {
			m = m.In[0]
		}

		if p.invariant(m) {
			p.maybeAddToInvar(m, negate)

			return true
		}
	}

	return false
}

func (p *VPointer) addOffset(v int, negate bool) {
	if negate {
		p.offset -= v
	} else {
		p.offset += v
	}
}

func (p *VPointer) maybeNegateInvar(negate bool, invar *ir.Node) *ir.Node {
	if !negate {
		return invar
	}

	kind := invar.Kind
	zero := p.f().Zero(kind)

	return p.f().MakeSub(zero, invar, kind)
}

// maybeAddToInvar aggregates a newly found invariant term into the
// pointer. Aggregation widens to long when either side is long, inserting
// the conversion through the value-numbering table. In analyze-only mode
// no IR nodes are created and the raw node is recorded instead.
func (p *VPointer) maybeAddToInvar(newInvar *ir.Node, negate bool) {
	if p.analyzeOnly {
		if p.invar == nil {
			p.invar = newInvar
		}

		return
	}

	newInvar = p.maybeNegateInvar(negate, newInvar)

	if p.invar == nil {
		p.invar = newInvar
		return
	}

	kind := tp.KindInt
	if p.invar.Kind == tp.KindLong || newInvar.Kind == tp.KindLong {
		kind = tp.KindLong
	}

	cur := p.invar
	if cur.Kind != kind {
		cur = p.f().MakeConvI2L(cur)
	} else if newInvar.Kind != kind {
		newInvar = p.f().MakeConvI2L(newInvar)
	}

	p.invar = p.f().MakeAdd(cur, newInvar, kind)
}

// InvarFactor is the biggest detectable factor of the invariant: 2^k for a
// constant left shift, 1 for any other invariant, 0 when there is none.
func (p *VPointer) InvarFactor() int {
	n := p.invar
	if n == nil {
		return 0
	}

	if (n.Op == ir.LShiftI || n.Op == ir.LShiftL) && n.In[1].Op == ir.ConI {
		return 1 << n.In[1].GetInt()
	}

	// All best effort has failed.
	return 1
}

// CmpWith compares two decomposed pointers. They are comparable only when
// base, adr, invar and scale agree; then the order follows from the
// offsets and access sizes. Anything else is Unknown.
func (p *VPointer) CmpWith(q *VPointer) Cmp {
	if p.Valid() && q.Valid() &&
		p.base == q.base && p.adr == q.adr &&
		p.scale == q.scale && p.invar == q.invar {
		overlap := q.offset < p.offset+p.MemorySize() &&
			p.offset < q.offset+q.MemorySize()

		if overlap {
			return CmpEqual // possibly same address
		}

		if p.offset < q.offset {
			return CmpLess
		}

		return CmpGreater
	}

	return CmpUnknown
}

func (s *NodeStack) Push(n *ir.Node, idx int) {
	s.nodes = append(s.nodes, n)
	s.idxs = append(s.idxs, idx)
}

func (s *NodeStack) Len() int {
	return len(s.nodes)
}

func (s *NodeStack) At(i int) (*ir.Node, int) {
	return s.nodes[i], s.idxs[i]
}
