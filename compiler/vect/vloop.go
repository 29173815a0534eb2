package vect

import (
	"context"

	"github.com/xyproto/env/v2"
	"tlog.app/go/tlog"

	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/tp"
)

type (
	// Failure is a named analysis failure reason. All recoverable failures
	// are values of this type; they are returned, never panicked.
	Failure string

	// Platform describes the SIMD capabilities of the target.
	Platform struct {
		// VectorWidth is the byte-vector width in bytes.
		VectorWidth int

		// ObjectAlignment is the guaranteed alignment of object bases.
		ObjectAlignment int

		// MisalignedOK reports whether misaligned vector accesses are
		// supported.
		MisalignedOK bool

		// UnrollAnalysis gates the max-unroll precondition of the
		// analyzer.
		UnrollAnalysis bool
	}

	// VLoop is the loop-level gatekeeper. It validates the preconditions
	// on a counted loop and carries the loop context shared by all
	// analysis passes.
	VLoop struct {
		f    *ir.Func
		loop *ir.Loop
		plat Platform

		allowCFG bool

		cl     *ir.Node // CountedLoop head
		iv     *ir.Node // induction variable phi
		clExit *ir.Node // CountedLoopEnd

		preLoopEnd *ir.Node

		tr tlog.Span
	}
)

// Precondition failure reasons.
const (
	FailureVectorWidth      = Failure("vector width must be power of 2, at least 2")
	FailureValidCountedLoop = Failure("loop is not a valid counted int loop")
	FailureAlreadyVectorized = Failure("loop is already vectorized")
	FailureUnrollOnly       = Failure("loop is marked unroll only")
	FailureControlFlow      = Failure("control flow in loop body")
	FailureBackedge         = Failure("backedge has extra control users")
	FailurePreLoopLimit     = Failure("main loop has no adjustable pre-loop limit")
)

func (e Failure) Error() string { return string(e) }

// DefaultPlatform reads the platform description, with environment
// overrides for experiments.
func DefaultPlatform() Platform {
	return Platform{
		VectorWidth:     env.Int("VEXVECWIDTH", 32),
		ObjectAlignment: env.Int("VEXOBJALIGN", 8),
		MisalignedOK:    env.Bool("VEXMISALIGNED"),
		UnrollAnalysis:  true,
	}
}

func NewVLoop(ctx context.Context, loop *ir.Loop, plat Platform, allowCFG bool) *VLoop {
	return &VLoop{
		f:        loop.Func(),
		loop:     loop,
		plat:     plat,
		allowCFG: allowCFG,
		tr:       tlog.SpanFromContext(ctx),
	}
}

func (vl *VLoop) Func() *ir.Func  { return vl.f }
func (vl *VLoop) Loop() *ir.Loop  { return vl.loop }
func (vl *VLoop) CL() *ir.Node    { return vl.cl }
func (vl *VLoop) IV() *ir.Node    { return vl.iv }

// PreLoopEnd is the pre-loop exit check whose limit the alignment logic
// rewrites. Only set on main loops.
func (vl *VLoop) PreLoopEnd() *ir.Node { return vl.preLoopEnd }

// PreLoopHead is the dominance anchor for invariants used by the pre-loop
// limit check.
func (vl *VLoop) PreLoopHead() *ir.Node {
	return vl.loop.Counted().PreHead
}

// InBody reports whether n belongs to the loop body.
func (vl *VLoop) InBody(n *ir.Node) bool {
	return vl.loop.Member(n)
}

// IsLoopMember reports loop membership of n's control.
func (vl *VLoop) IsLoopMember(n *ir.Node) bool {
	return vl.loop.Member(n)
}

// CheckPreconditions rejects loops the vectorizer cannot handle. The
// returned Failure names the first reason found; nil means the loop is
// acceptable.
func (vl *VLoop) CheckPreconditions() error {
	err := vl.checkPreconditions()
	if err != nil {
		if vl.tr.If("precondition") {
			vl.tr.Printw("precondition failed", "loop", vl.loop.Head(), "reason", err)
		}

		return err
	}

	return nil
}

func (vl *VLoop) checkPreconditions() error {
	// Only accept vector width that is a power of 2.
	w := vl.plat.VectorWidth
	if w < 2 || !isPow2(w) {
		return FailureVectorWidth
	}

	// Only accept valid counted loops (int).
	info := vl.loop.Counted()
	if info == nil || info.IV == nil || info.IV.Kind != tp.KindInt || info.Stride == 0 {
		return FailureValidCountedLoop
	}

	vl.cl = vl.loop.Head()
	vl.iv = info.IV

	if info.Vectorized {
		return FailureAlreadyVectorized
	}

	if info.UnrollOnly {
		return FailureUnrollOnly
	}

	// Check for control flow in the body.
	vl.clExit = info.Exit
	if vl.clExit == nil {
		return FailureValidCountedLoop
	}

	hasCFG := vl.clExit.In[0] != vl.cl
	if hasCFG && !vl.allowCFG {
		return FailureControlFlow
	}

	// Make sure there are no extra control users of the loop backedge.
	if back := vl.loop.BackControl(); back != nil && len(back.Outs()) != 1 {
		return FailureBackedge
	}

	// To align vector memory accesses in the main loop, the pre-loop limit
	// has to stay adjustable.
	if info.Main {
		preEnd := info.PreEnd
		if preEnd == nil {
			return FailurePreLoopLimit
		}

		limit := preLoopLimit(preEnd)
		if limit == nil || limit.Op != ir.Opaque1 {
			return FailurePreLoopLimit
		}

		vl.preLoopEnd = preEnd
	}

	return nil
}

// preLoopLimit digs the limit value out of a pre-loop exit check:
// CountedLoopEnd(ctrl, Bool(CmpI(iv', limit))).
func preLoopLimit(preEnd *ir.Node) *ir.Node {
	if len(preEnd.In) < 2 {
		return nil
	}

	b := preEnd.In[1]
	if b == nil || b.Op != ir.Bool || len(b.In) < 1 {
		return nil
	}

	cmp := b.In[0]
	if cmp == nil || len(cmp.In) < 2 {
		return nil
	}

	return cmp.In[1]
}

func isPow2(x int) bool {
	return x > 0 && x&(x-1) == 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}

	return x
}
