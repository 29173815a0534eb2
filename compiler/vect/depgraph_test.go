package vect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/tp"
	"github.com/vexlang/vex/src/compiler/vect/vectest"
)

func builtGraph(t *testing.T, b *vectest.LoopBuilder) (*VLoop, *VLoopDependenceGraph) {
	t.Helper()

	vl := checkedVLoop(t, b.Done())

	ms := newVLoopMemorySlices(vl)
	ms.Analyze()

	body := newVLoopBody(vl)
	require.NoError(t, body.Construct())

	g := newVLoopDependenceGraph(vl, body, ms)
	g.Build()

	return vl, g
}

func TestDependenceSameAddress(t *testing.T) {
	// a[i] = a[i] + 1: the load and store overlap, an edge orders them.
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	arr := b.NewArray(tp.KindInt)

	ld := b.Load(arr, b.IV, 0)
	sum := b.DataNode(ir.AddI, tp.KindInt, ld, b.F.ConstI(1))
	st := b.Store(arr, b.IV, 0, sum)

	_, g := builtGraph(t, b)

	assert.False(t, g.Independent(ld, st))
	assert.False(t, g.Independent(st, ld), "independence is symmetric")

	// The load has a direct dependence edge to the store.
	deps := 0
	for e := g.get(ld).outHead; e != nil; e = e.nextOut {
		if e.succ.Node() == st {
			deps++
		}
	}
	assert.Equal(t, 1, deps)
}

func TestDependenceDisjointStores(t *testing.T) {
	// a[i] and a[i+7] provably never collide within one iteration.
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	arr := b.NewArray(tp.KindInt)

	s0 := b.Store(arr, b.IV, 0, b.F.ConstI(0))
	s7 := b.Store(arr, b.IV, 7, b.F.ConstI(0))

	_, g := builtGraph(t, b)

	assert.True(t, g.Independent(s0, s7))
	assert.True(t, g.Independent(s7, s0))
}

func TestDependenceValueFlow(t *testing.T) {
	// a[i+7] = a[i]: no memory conflict within the iteration, but the
	// store consumes the load's value.
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	arr := b.NewArray(tp.KindInt)

	ld := b.Load(arr, b.IV, 0)
	st := b.Store(arr, b.IV, 7, ld)

	_, g := builtGraph(t, b)

	assert.False(t, g.Independent(ld, st))
}

func TestDependenceLoadsNeverConflict(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	dst := b.NewArray(tp.KindInt)
	src := b.NewArray(tp.KindInt)

	ld0 := b.Load(src, b.IV, 0)
	ld1 := b.Load(src, b.IV, 0)

	sum := b.DataNode(ir.AddI, tp.KindInt, ld0, ld1)
	b.Store(dst, b.IV, 0, sum)

	_, g := builtGraph(t, b)

	assert.True(t, g.Independent(ld0, ld1), "load after load needs no edge")
}

func TestMutuallyIndependent(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	arr := b.NewArray(tp.KindInt)

	s0 := b.Store(arr, b.IV, 0, b.F.ConstI(0))
	s1 := b.Store(arr, b.IV, 1, b.F.ConstI(0))
	s2 := b.Store(arr, b.IV, 2, b.F.ConstI(0))

	_, g := builtGraph(t, b)

	assert.True(t, g.MutuallyIndependent([]*ir.Node{s0, s1, s2}))

	// A value-flow pair inside the set breaks mutual independence.
	b2 := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	arr2 := b2.NewArray(tp.KindInt)

	ld := b2.Load(arr2, b2.IV, 0)
	st := b2.Store(arr2, b2.IV, 7, ld)

	_, g2 := builtGraph(t, b2)

	assert.False(t, g2.MutuallyIndependent([]*ir.Node{ld, st}))
}

func TestDepthFixpoint(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	dst := b.NewArray(tp.KindInt)
	src := b.NewArray(tp.KindInt)

	ld := b.Load(src, b.IV, 0)
	sum := b.DataNode(ir.AddI, tp.KindInt, ld, b.F.ConstI(1))
	b.Store(dst, b.IV, 0, sum)

	vl, g := builtGraph(t, b)

	for _, n := range g.body.Body() {
		if n.IsPhi() {
			continue
		}

		want := 1

		for it := g.Preds(n); !it.Done(); it.Next() {
			pred := it.Current()

			if vl.InBody(pred) && g.Depth(pred)+1 > want {
				want = g.Depth(pred) + 1
			}
		}

		assert.Equal(t, want, g.Depth(n), "node %d (%v)", n.ID, n.Op)
	}

	assert.Greater(t, g.Depth(sum), g.Depth(ld))
}

func TestGraphRootAndSinkWiring(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	a1 := b.NewArray(tp.KindInt)
	a2 := b.NewArray(tp.KindInt)

	b.Store(a1, b.IV, 0, b.F.ConstI(0))
	b.Store(a2, b.IV, 0, b.F.ConstI(0))

	_, g := builtGraph(t, b)

	assert.Equal(t, 2, g.Root().OutCnt(), "one slice head per slice")
	assert.Equal(t, 2, g.Sink().InCnt(), "one slice sink per slice")
}
