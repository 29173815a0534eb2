package vect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/tp"
	"github.com/vexlang/vex/src/compiler/vect/vectest"
)

func constructedBody(t *testing.T, b *vectest.LoopBuilder) (*VLoop, *VLoopBody) {
	t.Helper()

	vl := checkedVLoop(t, b.Done())

	body := newVLoopBody(vl)
	require.NoError(t, body.Construct())

	return vl, body
}

func TestBodyReversePostorder(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	dst := b.NewArray(tp.KindInt)
	src := b.NewArray(tp.KindInt)

	ld := b.Load(src, b.IV, 0)
	sum := b.DataNode(ir.AddI, tp.KindInt, ld, b.F.ConstI(1))
	b.Store(dst, b.IV, 0, sum)

	vl, body := constructedBody(t, b)

	nodes := body.Body()
	require.NotEmpty(t, nodes)

	// The loop head comes first.
	assert.Same(t, vl.CL(), nodes[0])

	// Every node is mapped back to its position.
	for i, n := range nodes {
		assert.Equal(t, i, body.BodyIdx(n))
	}

	// Every non-phi node appears after at least one of its in-body
	// predecessors.
	for i, n := range nodes {
		if n.IsPhi() || n == vl.CL() {
			continue
		}

		found := false

		for _, def := range n.In {
			if def != nil && vl.InBody(def) && body.BodyIdx(def) < i {
				found = true
				break
			}
		}

		assert.True(t, found, "node %d (%v) has no earlier in-body input", n.ID, n.Op)
	}
}

func TestBodyRejectsLoadStore(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	arr := b.NewArray(tp.KindInt)

	b.AtomicUpdate(arr, b.IV, b.F.ConstI(1))

	vl := checkedVLoop(t, b.Done())

	body := newVLoopBody(vl)
	assert.ErrorIs(t, body.Construct(), FailureNodeNotAllowed)
}

func TestBodyRejectsMergeMem(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	arr := b.NewArray(tp.KindInt)

	st := b.Store(arr, b.IV, 0, b.F.ConstI(0))
	b.DataNode(ir.MergeMem, tp.KindMem, st)

	vl := checkedVLoop(t, b.Done())

	body := newVLoopBody(vl)
	assert.ErrorIs(t, body.Construct(), FailureNodeNotAllowed)
}

func TestBodyRejectsDataProj(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	arr := b.NewArray(tp.KindInt)

	b.Store(arr, b.IV, 0, b.F.ConstI(0))
	b.DataNode(ir.Proj, tp.KindInt, b.Incr)

	vl := checkedVLoop(t, b.Done())

	body := newVLoopBody(vl)
	assert.ErrorIs(t, body.Construct(), FailureNodeNotAllowed)
}
