package vect

import (
	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/tp"
)

type (
	// VLoopTypes assigns each body node its inferred vector element kind,
	// narrowing integers where no user depends on the higher order bits.
	VLoopTypes struct {
		vl   *VLoop
		body *VLoopBody

		velt []tp.Kind // by body position
	}
)

func newVLoopTypes(vl *VLoop, body *VLoopBody) *VLoopTypes {
	return &VLoopTypes{vl: vl, body: body}
}

// VeltType is the inferred element kind of an in-body node.
func (t *VLoopTypes) VeltType(n *ir.Node) tp.Kind {
	return t.velt[t.body.BodyIdx(n)]
}

func (t *VLoopTypes) setVeltType(n *ir.Node, k tp.Kind) {
	t.velt[t.body.BodyIdx(n)] = k
}

func (t *VLoopTypes) sameVeltType(n1, n2 *ir.Node) bool {
	return t.VeltType(n1) == t.VeltType(n2)
}

func (t *VLoopTypes) dataSize(n *ir.Node) int {
	return t.VeltType(n).Size()
}

func (t *VLoopTypes) ComputeVectorElementType() {
	invariant(len(t.velt) == 0, "must have been reset")

	body := t.body.Body()
	t.velt = make([]tp.Kind, len(body))

	// Initial kind.
	for i, n := range body {
		t.velt[i] = t.containerType(n)
	}

	// Propagate narrowed integer kinds backwards through operations that
	// don't depend on higher order bits.
	for i := len(body) - 1; i >= 0; i-- {
		n := body[i]

		vtn := t.VeltType(n)
		if !vtn.IsIntFamily() {
			continue
		}

		start, end := vectorOperands(n)

		for j := start; j < end; j++ {
			in := n.In[j]

			// Don't propagate through a memory.
			if in == nil || in.IsMem() || !t.vl.InBody(in) ||
				!t.VeltType(in).IsIntFamily() ||
				t.dataSize(n) >= t.dataSize(in) {
				continue
			}

			sameType := true

			for _, use := range in.Outs() {
				if !t.vl.InBody(use) || !t.sameVeltType(use, n) {
					sameType = false
					break
				}
			}

			if !sameType {
				continue
			}

			// Arithmetic promotes narrow operands to int, so for
			// operations that need the higher order bits of their first
			// operand the narrowed kind would be lossy. Loads still know
			// the exact signedness; anything else widens back to int.
			// Left shift only depends on the low bits.
			vt := vtn
			op := in.Op

			if op.IsShift() || op == ir.AbsI || op == ir.ReverseBytesI {
				load := in.In[0]

				if load != nil && load.IsLoad() &&
					t.vl.InBody(load) &&
					t.VeltType(load).IsIntFamily() {
					vt = t.VeltType(load)
				} else if op != ir.LShiftI {
					vt = tp.KindInt
				}
			}

			t.setVeltType(in, vt)
		}
	}

	// Look for the pattern Bool -> Cmp -> x and propagate the kind of the
	// compared values down: a vectorized bit mask has the same width as
	// the values it compares.
	for _, n := range body {
		nn := n

		if nn.Op == ir.Bool && nn.Pin == nil {
			nn = nn.In[0]
			invariant(nn.Op == ir.CmpI || nn.Op == ir.CmpL, "always have Cmp above Bool")
		}

		if (nn.Op == ir.CmpI || nn.Op == ir.CmpL) && nn.Pin == nil {
			invariant(t.vl.InBody(nn.In[0]) || t.vl.InBody(nn.In[1]),
				"one of the compared inputs must be in the loop too")

			if t.vl.InBody(nn.In[0]) {
				t.setVeltType(n, t.VeltType(nn.In[0]))
			} else {
				t.setVeltType(n, t.VeltType(nn.In[1]))
			}
		}
	}

	if tr := t.vl.tr; tr.If("types") {
		for i, n := range body {
			tr.Printw("velt", "i", i, "node", n, "kind", t.velt[i])
		}
	}
}

// containerType is the initial element kind of a node. Stored chars read
// back as signed shorts because preceding arithmetic extends to int;
// unsigned byte loads type as bool, where only size and zero extension
// matter.
func (t *VLoopTypes) containerType(n *ir.Node) tp.Kind {
	if n.IsMem() {
		k := n.MemoryKind()

		if n.IsStore() && k == tp.KindChar {
			k = tp.KindShort
		}

		if n.Op == ir.LoadUB {
			k = tp.KindBool
		}

		return k
	}

	if n.Kind.IsIntFamily() {
		// Narrow arithmetic kinds are determined by propagation from the
		// memory operations.
		return tp.KindInt
	}

	return n.Kind
}

// vectorOperands is the input range that would become vector lanes.
func vectorOperands(n *ir.Node) (start, end int) {
	switch {
	case n.Op.IsShift() || n.Op == ir.AbsI || n.Op == ir.ReverseBytesI ||
		n.Op == ir.ConvI2L || n.Op == ir.CastII || n.Op == ir.Bool:
		return 0, 1
	case n.IsPhi():
		return ir.PhiEntry, min(len(n.In), ir.PhiBack+1)
	case n.IsStore():
		return ir.MemVal, min(len(n.In), ir.MemVal+1)
	case n.IsLoad() || n.IsCFG() || n.IsCon():
		return 0, 0
	default:
		return 0, len(n.In)
	}
}
