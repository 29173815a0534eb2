package vect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/tp"
	"github.com/vexlang/vex/src/compiler/vect/vectest"
)

func simpleStoreLoop(cfg vectest.Config) (*vectest.LoopBuilder, *ir.Loop) {
	b := vectest.NewLoop(cfg)
	arr := b.NewArray(tp.KindInt)

	b.Store(arr, b.IV, 0, b.F.ConstI(0))

	return b, b.Done()
}

func TestPreconditionsOK(t *testing.T) {
	_, loop := simpleStoreLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})

	vl := NewVLoop(context.Background(), loop, testPlatform(), false)
	require.NoError(t, vl.CheckPreconditions())

	assert.Same(t, loop.Head(), vl.CL())
	assert.NotNil(t, vl.IV())
	assert.NotNil(t, vl.PreLoopEnd())
}

func TestPreconditionVectorWidth(t *testing.T) {
	_, loop := simpleStoreLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})

	for _, w := range []int{0, 1, 24} {
		vl := NewVLoop(context.Background(), loop, Platform{VectorWidth: w, ObjectAlignment: 8}, false)
		assert.ErrorIs(t, vl.CheckPreconditions(), FailureVectorWidth, "width %d", w)
	}
}

func TestPreconditionNotCounted(t *testing.T) {
	b, _ := simpleStoreLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})

	// Strip the counted-loop metadata.
	b.CL.Aux = nil
	loop := ir.NewLoop(b.F, b.CL, []*ir.Node{b.CL})

	vl := NewVLoop(context.Background(), loop, testPlatform(), false)
	assert.ErrorIs(t, vl.CheckPreconditions(), FailureValidCountedLoop)
}

func TestPreconditionAlreadyVectorized(t *testing.T) {
	b, loop := simpleStoreLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	b.Info().Vectorized = true

	vl := NewVLoop(context.Background(), loop, testPlatform(), false)
	assert.ErrorIs(t, vl.CheckPreconditions(), FailureAlreadyVectorized)
}

func TestPreconditionUnrollOnly(t *testing.T) {
	b, loop := simpleStoreLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})
	b.Info().UnrollOnly = true

	vl := NewVLoop(context.Background(), loop, testPlatform(), false)
	assert.ErrorIs(t, vl.CheckPreconditions(), FailureUnrollOnly)
}

func TestPreconditionControlFlow(t *testing.T) {
	b, _ := simpleStoreLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})

	// Interpose a region between the head and the exit check.
	f := b.F
	mid := f.NewNode(ir.Region, tp.KindCtrl, b.CL)
	f.SetIdom(mid, b.CL)
	f.SetIn(b.Exit, 0, mid)

	loop := b.Done()

	vl := NewVLoop(context.Background(), loop, testPlatform(), false)
	assert.ErrorIs(t, vl.CheckPreconditions(), FailureControlFlow)

	vl = NewVLoop(context.Background(), loop, testPlatform(), true)
	assert.NoError(t, vl.CheckPreconditions(), "caller explicitly allowed control flow")
}

func TestPreconditionBackedge(t *testing.T) {
	b, _ := simpleStoreLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})

	// Attach an extra control user to the backedge.
	back := b.CL.In[ir.PhiBack]
	b.F.NewNode(ir.Region, tp.KindCtrl, back)

	loop := b.Done()

	vl := NewVLoop(context.Background(), loop, testPlatform(), false)
	assert.ErrorIs(t, vl.CheckPreconditions(), FailureBackedge)
}

func TestPreconditionPreLoopLimit(t *testing.T) {
	b, _ := simpleStoreLoop(vectest.Config{Stride: 8, Main: true, Unroll: 8})

	// Replace the opaque pre-loop limit by a constant: the limit is no
	// longer adjustable.
	preBool := b.PreEnd.In[1]
	preCmp := preBool.In[0]
	b.F.SetIn(preCmp, 1, b.F.ConstI(1000))

	loop := b.Done()

	vl := NewVLoop(context.Background(), loop, testPlatform(), false)
	assert.ErrorIs(t, vl.CheckPreconditions(), FailurePreLoopLimit)

	// Dropping the pre-loop link entirely fails the same way.
	b.Info().PreEnd = nil

	vl = NewVLoop(context.Background(), loop, testPlatform(), false)
	assert.ErrorIs(t, vl.CheckPreconditions(), FailurePreLoopLimit)
}
