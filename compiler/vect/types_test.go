package vect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/tp"
	"github.com/vexlang/vex/src/compiler/vect/vectest"
)

func computedTypes(t *testing.T, b *vectest.LoopBuilder) (*VLoop, *VLoopTypes) {
	t.Helper()

	vl, body := constructedBody(t, b)

	types := newVLoopTypes(vl, body)
	types.ComputeVectorElementType()

	return vl, types
}

func TestTypesNarrowShiftOverLoad(t *testing.T) {
	// s[i] = (short)(b[i] >> 3): the shift adopts the load's signed-short
	// kind.
	b := vectest.NewLoop(vectest.Config{Stride: 16, Main: true, Unroll: 16})
	dst := b.NewArray(tp.KindShort)
	src := b.NewArray(tp.KindShort)

	ld := b.Load(src, b.IV, 0)
	sh := b.DataNode(ir.RShiftI, tp.KindInt, ld, b.F.ConstI(3))
	st := b.Store(dst, b.IV, 0, sh)

	_, types := computedTypes(t, b)

	assert.Equal(t, tp.KindShort, types.VeltType(ld))
	assert.Equal(t, tp.KindShort, types.VeltType(sh))
	assert.Equal(t, tp.KindShort, types.VeltType(st))
}

func TestTypesShiftOverWidenedInput(t *testing.T) {
	// s[i] = (short)((b[i] + c[i]) >> 3): the shift input is a widened
	// int, so the shift widens back to full int.
	b := vectest.NewLoop(vectest.Config{Stride: 16, Main: true, Unroll: 16})
	dst := b.NewArray(tp.KindShort)
	src1 := b.NewArray(tp.KindShort)
	src2 := b.NewArray(tp.KindShort)

	ld1 := b.Load(src1, b.IV, 0)
	ld2 := b.Load(src2, b.IV, 0)
	sum := b.DataNode(ir.AddI, tp.KindInt, ld1, ld2)
	sh := b.DataNode(ir.RShiftI, tp.KindInt, sum, b.F.ConstI(3))
	b.Store(dst, b.IV, 0, sh)

	_, types := computedTypes(t, b)

	assert.Equal(t, tp.KindInt, types.VeltType(sh))
}

func TestTypesNarrowPlainArith(t *testing.T) {
	// s[i] = (short)(b[i] + c[i]): plain arithmetic narrows to the stored
	// kind.
	b := vectest.NewLoop(vectest.Config{Stride: 16, Main: true, Unroll: 16})
	dst := b.NewArray(tp.KindShort)
	src1 := b.NewArray(tp.KindShort)
	src2 := b.NewArray(tp.KindShort)

	ld1 := b.Load(src1, b.IV, 0)
	ld2 := b.Load(src2, b.IV, 0)
	sum := b.DataNode(ir.AddI, tp.KindInt, ld1, ld2)
	b.Store(dst, b.IV, 0, sum)

	_, types := computedTypes(t, b)

	assert.Equal(t, tp.KindShort, types.VeltType(sum))
}

func TestTypesNoNarrowOnEscape(t *testing.T) {
	// The sum is also stored into an int array, so it stays int.
	b := vectest.NewLoop(vectest.Config{Stride: 16, Main: true, Unroll: 16})
	dst := b.NewArray(tp.KindShort)
	wide := b.NewArray(tp.KindInt)
	src1 := b.NewArray(tp.KindShort)
	src2 := b.NewArray(tp.KindShort)

	ld1 := b.Load(src1, b.IV, 0)
	ld2 := b.Load(src2, b.IV, 0)
	sum := b.DataNode(ir.AddI, tp.KindInt, ld1, ld2)
	b.Store(dst, b.IV, 0, sum)
	b.Store(wide, b.IV, 0, sum)

	_, types := computedTypes(t, b)

	assert.Equal(t, tp.KindInt, types.VeltType(sum))
}

func TestTypesStoredCharBecomesShort(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 16, Main: true, Unroll: 16})
	dst := b.NewArray(tp.KindChar)
	src := b.NewArray(tp.KindChar)

	ld := b.Load(src, b.IV, 0)
	st := b.Store(dst, b.IV, 0, ld)

	_, types := computedTypes(t, b)

	assert.Equal(t, tp.KindShort, types.VeltType(st), "stored char reads back as signed short")
	assert.Equal(t, tp.KindChar, types.VeltType(ld), "char load keeps its zero extension")
}

func TestTypesUnsignedByteLoad(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 32, Main: true, Unroll: 32})
	dst := b.NewArray(tp.KindByte)
	src := b.NewArray(tp.KindByte)

	ld := b.LoadOp(ir.LoadUB, src, b.IV, 0)
	b.Store(dst, b.IV, 0, ld)

	_, types := computedTypes(t, b)

	assert.Equal(t, tp.KindBool, types.VeltType(ld), "unsigned byte load is bool typed")
}

func TestTypesBoolCmpPropagation(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 16, Main: true, Unroll: 16})
	dst := b.NewArray(tp.KindShort)
	src := b.NewArray(tp.KindShort)

	ld := b.Load(src, b.IV, 0)
	b.Store(dst, b.IV, 0, ld)

	// A compare of the loaded value against an out-of-loop threshold.
	cmp := b.DataNode(ir.CmpI, tp.KindInt, ld, b.F.ConstI(0))
	bl := b.DataNode(ir.Bool, tp.KindInt, cmp)
	b.Store(dst, b.IV, 1, bl)

	_, types := computedTypes(t, b)

	require.Equal(t, tp.KindShort, types.VeltType(ld))
	assert.Equal(t, tp.KindShort, types.VeltType(cmp))
	assert.Equal(t, tp.KindShort, types.VeltType(bl))
}

func TestTypesExitCheckFollowsIV(t *testing.T) {
	b := vectest.NewLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	arr := b.NewArray(tp.KindInt)

	b.Store(arr, b.IV, 0, b.F.ConstI(0))

	vl, types := computedTypes(t, b)

	exitBool := vl.CL().In[ir.PhiBack].In[0].In[1]

	assert.Equal(t, tp.KindInt, types.VeltType(exitBool))
}
