package vect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexlang/vex/src/compiler/tp"
	"github.com/vexlang/vex/src/compiler/vect/vectest"
)

func TestMemorySlicesAnalyze(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	dst := b.NewArray(tp.KindInt)
	other := b.NewArray(tp.KindByte)
	src := b.NewArray(tp.KindInt)

	ld := b.Load(src, b.IV, 0)
	stDst := b.Store(dst, b.IV, 0, ld)
	stOther := b.Store(other, b.IV, 0, b.F.ConstI(0))

	vl := checkedVLoop(t, b.Done())

	ms := newVLoopMemorySlices(vl)
	ms.Analyze()

	// One slice per stored array; the load-only src slice folds away.
	require.Len(t, ms.Heads(), 2)
	require.Len(t, ms.Tails(), 2)

	assert.Contains(t, ms.Tails(), stDst)
	assert.Contains(t, ms.Tails(), stOther)

	for _, h := range ms.Heads() {
		assert.True(t, h.IsMemoryPhi())
	}
}

func TestMemorySlicesGetSlice(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	arr := b.NewArray(tp.KindInt)

	ld := b.Load(arr, b.IV, 0)
	s1 := b.Store(arr, b.IV, 1, ld)
	s2 := b.Store(arr, b.IV, 2, b.F.ConstI(0))

	vl := checkedVLoop(t, b.Done())

	ms := newVLoopMemorySlices(vl)
	ms.Analyze()

	require.Len(t, ms.Heads(), 1)

	slice := ms.GetSlice(ms.Heads()[0], ms.Tails()[0])

	// Reverse program order: the tail side first, loads after the store
	// they hang off.
	require.Len(t, slice, 3)
	assert.Same(t, s2, slice[0])
	assert.Same(t, s1, slice[1])
	assert.Same(t, ld, slice[2])
}

func TestSameMemorySlice(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	a1 := b.NewArray(tp.KindInt)
	a2 := b.NewArray(tp.KindByte)

	s1 := b.Store(a1, b.IV, 0, b.F.ConstI(0))
	s2 := b.Store(a1, b.IV, 1, b.F.ConstI(0))
	s3 := b.Store(a2, b.IV, 0, b.F.ConstI(0))

	vl := checkedVLoop(t, b.Done())

	ms := newVLoopMemorySlices(vl)

	assert.True(t, ms.SameMemorySlice(s1, s2))
	assert.False(t, ms.SameMemorySlice(s1, s3))
}
