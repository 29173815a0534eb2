package vect

import (
	"tlog.app/go/tlog"

	"github.com/vexlang/vex/src/compiler/ir"
)

type (
	// SolutionKind tags an AlignmentSolution.
	SolutionKind int8

	// AlignmentSolution describes the admissible pre-loop iteration counts
	// that align a vector memory reference:
	//
	//	Trivial      any pre-loop count works
	//	Empty        no pre-loop count works, Reason says why
	//	Constrained  pre_iter = m*q + r  [- invar/(scale*pre_stride)]
	//	                                 [- init/pre_stride]
	//	             for any integer m, with q >= 2 a power of two and
	//	             0 <= r < q
	AlignmentSolution struct {
		Kind   SolutionKind
		Reason string

		MemRef *ir.Node
		Q      int
		R      int
		Invar  *ir.Node
		Scale  int
	}

	// AlignmentSolver decides whether the pre-loop iteration count can be
	// chosen such that every main-loop access through memRef is aligned to
	// aw.
	AlignmentSolver struct {
		memRef *ir.Node

		base   *ir.Node
		offset int
		invar  *ir.Node
		scale  int

		initNode    *ir.Node
		invarFactor int

		preStride  int
		mainStride int

		vectorLength int
		elementSize  int
		vectorWidth  int
		aw           int

		tr tlog.Span
	}

	eq4 struct {
		cConst, cInvar, cInit, cPre, aw int
	}

	eq4State int8
)

const (
	SolutionTrivial SolutionKind = iota
	SolutionEmpty
	SolutionConstrained
)

const (
	eq4Trivial eq4State = iota
	eq4Constrained
	eq4Empty
)

func Trivial() AlignmentSolution {
	return AlignmentSolution{Kind: SolutionTrivial}
}

func Empty(reason string) AlignmentSolution {
	return AlignmentSolution{Kind: SolutionEmpty, Reason: reason}
}

func Constrained(memRef *ir.Node, q, r int, invar *ir.Node, scale int) AlignmentSolution {
	return AlignmentSolution{
		Kind:   SolutionConstrained,
		MemRef: memRef,
		Q:      q,
		R:      r,
		Invar:  invar,
		Scale:  scale,
	}
}

func (s AlignmentSolution) IsTrivial() bool     { return s.Kind == SolutionTrivial }
func (s AlignmentSolution) IsEmpty() bool       { return s.Kind == SolutionEmpty }
func (s AlignmentSolution) IsConstrained() bool { return s.Kind == SolutionConstrained }

// NewAlignmentSolver captures one memory reference. p must be the valid
// VPointer of memRef, initNode the initial value of the induction
// variable, and the strides those of the pre and main loop; mainStride is
// preStride times the unroll factor.
func NewAlignmentSolver(p *VPointer, initNode *ir.Node, preStride, mainStride, vectorLength int, objectAlignment int) *AlignmentSolver {
	elementSize := p.MemorySize()
	vectorWidth := vectorLength * elementSize

	aw := vectorWidth
	if objectAlignment < aw {
		aw = objectAlignment
	}

	return &AlignmentSolver{
		memRef:       p.Mem(),
		base:         p.Base(),
		offset:       p.Offset(),
		invar:        p.Invar(),
		scale:        p.Scale(),
		initNode:     initNode,
		invarFactor:  p.InvarFactor(),
		preStride:    preStride,
		mainStride:   mainStride,
		vectorLength: vectorLength,
		elementSize:  elementSize,
		vectorWidth:  vectorWidth,
		aw:           aw,
		tr:           p.vl.tr,
	}
}

// Solve reshapes the address as
//
//	adr = base + C_const + C_invar*var_invar + C_init*var_init
//	           + C_pre*pre_iter + C_main*main_iter
//
// and decides, term by term, whether a pre-loop iteration count exists
// that aligns the access to aw for every runtime invar and init.
func (s *AlignmentSolver) Solve() AlignmentSolution {
	// Out of simplicity: non power-of-2 stride not supported.
	if !isPow2(abs(s.preStride)) {
		return Empty("non power-of-2 stride not supported")
	}

	invariant(isPow2(abs(s.mainStride)), "main_stride must be power of 2")
	invariant(s.aw > 0 && isPow2(s.aw), "aw must be power of 2")

	// Out of simplicity: non power-of-2 scale not supported.
	if abs(s.scale) == 0 || !isPow2(abs(s.scale)) {
		return Empty("non power-of-2 scale not supported")
	}

	// Attribute init either to the constant or to the init term.
	cConstInit := 0
	if s.initNode.Op == ir.ConI {
		cConstInit = s.initNode.GetInt()
	}

	cConst := s.offset + cConstInit*s.scale

	cInvar := 0
	if s.invar != nil {
		cInvar = abs(s.invarFactor)
	}

	cInit := 0
	if s.initNode.Op != ir.ConI {
		cInit = s.scale
	}

	cPre := s.scale * s.preStride
	cMain := s.scale * s.mainStride

	if s.tr.If("align") {
		s.tr.Printw("alignment solve", "mem", s.memRef,
			"c_const", cConst, "c_invar", cInvar, "c_init", cInit,
			"c_pre", cPre, "c_main", cMain, "aw", s.aw)
	}

	// base is aw aligned by the object alignment contract. Alignment must
	// be preserved over every main-loop iteration:
	//
	//	C_main % aw = 0
	if mod(cMain, s.aw) != 0 {
		return Empty("cannot align across main-loop iterations")
	}

	// Strengthen the single alignment equation into three independent
	// ones, one each for the const, invar and init terms. A solution must
	// exist for each, for any runtime value of invar and init.
	eq := eq4{cConst: cConst, cInvar: cInvar, cInit: cInit, cPre: cPre, aw: s.aw}

	sa := eq.state(eq.cConst)
	sb := eq.state(eq.cInvar)
	sc := eq.state(eq.cInit)

	if s.tr.If("align") {
		s.tr.Printw("alignment equations", "const", sa, "invar", sb, "init", sc)
	}

	if sa == eq4Trivial && sb == eq4Trivial && sc == eq4Trivial {
		return Trivial()
	}

	if sa == eq4Empty || sb == eq4Empty || sc == eq4Empty {
		return Empty("cannot align const, invar and init terms individually")
	}

	// All three are constrained now, which implies |C_pre| < aw and each
	// term divisible by |C_pre|.
	invariant(abs(cPre) < s.aw, "implied by constrained case")
	invariant(sa == eq4Constrained && sb == eq4Constrained && sc == eq4Constrained,
		"all must be constrained now")

	// The solutions are periodic with periodicity q.
	q := s.aw / abs(cPre)

	invariant(q >= 2, "implied by constrained solution")

	// Exact by the constrained precondition; scale and pre_stride carry
	// their signs into r.
	r := mod(-cConst/(s.scale*s.preStride), q)

	return Constrained(s.memRef, q, r, s.invar, s.scale)
}

// state decides one of the three strengthened equations
//
//	(C + C_pre * pre_iter_C) % aw = 0
func (e eq4) state(c int) eq4State {
	if abs(e.cPre) >= e.aw {
		if mod(c, e.aw) == 0 {
			return eq4Trivial
		}

		return eq4Empty
	}

	if mod(c, abs(e.cPre)) == 0 {
		return eq4Constrained
	}

	return eq4Empty
}

// mod is the remainder with the non-negative convention.
func mod(i, q int) int {
	r := i % q
	if r < 0 {
		r += q
	}

	return r
}
