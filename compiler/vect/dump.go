package vect

import (
	"github.com/nikandfor/hacked/hfmt"
)

// AppendDump renders the analysis bundle for humans: slices, body order
// with element kinds and dependence depths. It is a debugging side
// channel, not part of the analysis result.
func (a *VLoopAnalyzer) AppendDump(b []byte) []byte {
	b = hfmt.Appendf(b, "loop %d  body %d nodes  %d memory slices\n",
		a.vl.cl.ID, len(a.body.Body()), len(a.memorySlices.Heads()))

	for i, h := range a.memorySlices.Heads() {
		b = hfmt.Appendf(b, "slice %d  head %d  tail %d\n",
			i, h.ID, a.memorySlices.Tails()[i].ID)
	}

	for i, n := range a.body.Body() {
		b = hfmt.Appendf(b, "%3d  %4d %-14s %-6s depth %d",
			i, n.ID, n.Op.String(), a.types.VeltType(n).String(), a.dependenceGraph.Depth(n))

		if a.reductions.IsMarkedReduction(n) {
			b = append(b, "  reduction"...)
		}

		b = append(b, '\n')
	}

	return b
}

// AppendSolution renders an alignment solution on one line.
func AppendSolution(b []byte, s AlignmentSolution) []byte {
	switch s.Kind {
	case SolutionTrivial:
		return append(b, "trivial"...)
	case SolutionEmpty:
		return hfmt.Appendf(b, "empty: %s", s.Reason)
	case SolutionConstrained:
		b = hfmt.Appendf(b, "constrained: pre_iter = m * %d + %d", s.Q, s.R)

		if s.Invar != nil {
			b = hfmt.Appendf(b, " - invar[%d] / (scale(%d) * pre_stride)", s.Invar.ID, s.Scale)
		}

		return b
	}

	return append(b, "solution?"...)
}
