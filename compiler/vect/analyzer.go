package vect

import (
	"context"

	"github.com/vexlang/vex/src/compiler/ir"
)

type (
	// VLoopAnalyzer composes the analysis passes into a single pipeline
	// over one counted loop. On success the bundle (reductions, memory
	// slices, body order, element types, dependence graph) is ready for
	// the code generator.
	VLoopAnalyzer struct {
		vl *VLoop

		reductions      *VLoopReductions
		memorySlices    *VLoopMemorySlices
		body            *VLoopBody
		types           *VLoopTypes
		dependenceGraph *VLoopDependenceGraph
	}
)

const (
	FailureNoMaxUnroll        = Failure("loop was not assigned a max unroll factor")
	FailureNoReductionOrStore = Failure("no reduction and no store in loop")
)

func NewVLoopAnalyzer(ctx context.Context, loop *ir.Loop, plat Platform, allowCFG bool) *VLoopAnalyzer {
	vl := NewVLoop(ctx, loop, plat, allowCFG)

	a := &VLoopAnalyzer{
		vl:           vl,
		reductions:   newVLoopReductions(vl),
		memorySlices: newVLoopMemorySlices(vl),
		body:         newVLoopBody(vl),
	}

	a.types = newVLoopTypes(vl, a.body)
	a.dependenceGraph = newVLoopDependenceGraph(vl, a.body, a.memorySlices)

	return a
}

func (a *VLoopAnalyzer) VLoop() *VLoop                            { return a.vl }
func (a *VLoopAnalyzer) Reductions() *VLoopReductions             { return a.reductions }
func (a *VLoopAnalyzer) MemorySlices() *VLoopMemorySlices         { return a.memorySlices }
func (a *VLoopAnalyzer) Body() *VLoopBody                         { return a.body }
func (a *VLoopAnalyzer) Types() *VLoopTypes                       { return a.types }
func (a *VLoopAnalyzer) DependenceGraph() *VLoopDependenceGraph   { return a.dependenceGraph }

// Analyze runs the pipeline: preconditions, reductions, memory slices,
// body, element types, dependence graph. The first failure reason wins.
func (a *VLoopAnalyzer) Analyze() error {
	err := a.vl.CheckPreconditions()
	if err != nil {
		return err
	}

	err = a.analyze()
	if err != nil {
		if tr := a.vl.tr; tr.If("loop_analyzer") {
			tr.Printw("analyze failed", "loop", a.vl.cl, "reason", err)
		}

		return err
	}

	return nil
}

func (a *VLoopAnalyzer) analyze() error {
	info := a.vl.loop.Counted()

	// Skip any loop that was not assigned a max unroll by the unroll
	// analysis.
	if a.vl.plat.UnrollAnalysis && info.SLPMaxUnroll == 0 {
		return FailureNoMaxUnroll
	}

	a.reductions.MarkReductions()

	a.memorySlices.Analyze()

	// No memory slice means no store. Without a reduction and without a
	// store vectorization has nothing to gain.
	if !a.reductions.IsMarkedReductionLoop() && len(a.memorySlices.Heads()) == 0 {
		return FailureNoReductionOrStore
	}

	err := a.body.Construct()
	if err != nil {
		return err
	}

	a.types.ComputeVectorElementType()

	a.dependenceGraph.Build()

	return nil
}

// VPointerOf exposes the decomposition of one memory reference of the
// analyzed loop.
func (a *VLoopAnalyzer) VPointerOf(mem *ir.Node) *VPointer {
	return NewVPointer(mem, a.vl)
}

// SolveAlignment decides whether the pre-loop iteration count can align
// all main-loop accesses through mem for the given vector length.
func (a *VLoopAnalyzer) SolveAlignment(mem *ir.Node, vectorLength int) AlignmentSolution {
	p := NewVPointer(mem, a.vl)
	if !p.Valid() {
		return Empty("memory reference not decomposable")
	}

	info := a.vl.loop.Counted()

	preStride := info.Stride
	if info.Main && info.PreHead != nil {
		if pre, ok := info.PreHead.Aux.(*ir.CountedLoopInfo); ok && pre != nil {
			preStride = pre.Stride
		}
	}

	initNode := a.vl.iv.In[ir.PhiEntry]

	s := NewAlignmentSolver(p, initNode, preStride, info.Stride, vectorLength, a.vl.plat.ObjectAlignment)

	return s.Solve()
}
