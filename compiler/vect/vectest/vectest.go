// Package vectest assembles small counted-loop IR fragments in the shape
// the vectorization analysis expects. Tests and the developer harness use
// it to drive the analysis without a frontend.
package vectest

import (
	"github.com/vexlang/vex/src/compiler/ir"
	"github.com/vexlang/vex/src/compiler/tp"
)

type (
	// LoopBuilder wires one counted loop: a pre-loop skeleton with an
	// opaque limit, the main loop head with its induction variable and
	// exit check, and per-array memory slices.
	LoopBuilder struct {
		F *ir.Func

		PreHead *ir.Node
		PreEnd  *ir.Node

		CL   *ir.Node
		IV   *ir.Node
		Incr *ir.Node
		Exit *ir.Node

		info   *ir.CountedLoopInfo
		body   []*ir.Node
		arrays []*Array
	}

	// Array is one flat array object: a loop-invariant base and an alias
	// class, with a memory phi once it is accessed.
	Array struct {
		Base *ir.Node
		Type tp.Type
		Elem tp.Kind

		// Header is the byte offset of element 0 from the base.
		Header int

		phi  *ir.Node
		mem  *ir.Node
		last *ir.Node
	}

	// Config of the loop skeleton.
	Config struct {
		Stride    int // main-loop stride
		PreStride int // pre-loop stride, defaults to sign(Stride)
		Init      int // constant initial iv value
		Main      bool
		Unroll    int // SLP max unroll hint
	}
)

// NewLoop builds the loop skeleton.
func NewLoop(cfg Config) *LoopBuilder {
	f := ir.New("test")

	b := &LoopBuilder{F: f}

	preStride := cfg.PreStride
	if preStride == 0 {
		preStride = 1
		if cfg.Stride < 0 {
			preStride = -1
		}
	}

	// Pre-loop skeleton: head and exit check with an Opaque1 limit.
	b.PreHead = f.NewNode(ir.CountedLoop, tp.KindCtrl, nil, f.Root(), nil)
	b.PreHead.Aux = &ir.CountedLoopInfo{Stride: preStride, Pre: true}
	f.SetIdom(b.PreHead, f.Root())

	opaq := f.NewNode(ir.Opaque1, tp.KindInt, f.ConstI(1000))
	preCmp := f.NewNode(ir.CmpI, tp.KindInt, f.ConstI(0), opaq)
	preBool := f.NewNode(ir.Bool, tp.KindInt, preCmp)
	b.PreEnd = f.NewNode(ir.CountedLoopEnd, tp.KindCtrl, b.PreHead, preBool)
	f.SetIdom(b.PreEnd, b.PreHead)

	preExit := f.NewNode(ir.IfFalse, tp.KindCtrl, b.PreEnd)
	f.SetIdom(preExit, b.PreEnd)

	// Main loop head.
	b.CL = f.NewNode(ir.CountedLoop, tp.KindCtrl, nil, preExit, nil)
	f.SetIdom(b.CL, preExit)

	b.info = &ir.CountedLoopInfo{
		Stride:       cfg.Stride,
		Main:         cfg.Main,
		SLPMaxUnroll: cfg.Unroll,
		PreHead:      b.PreHead,
		PreEnd:       b.PreEnd,
	}
	b.CL.Aux = b.info

	// Induction variable and exit check.
	b.IV = f.NewNode(ir.Phi, tp.KindInt, b.CL, f.ConstI(cfg.Init), nil)
	f.SetCtrl(b.IV, b.CL)
	b.info.IV = b.IV

	b.Incr = b.DataNode(ir.AddI, tp.KindInt, b.IV, f.ConstI(cfg.Stride))
	f.SetIn(b.IV, ir.PhiBack, b.Incr)

	limit := f.NewNode(ir.Parm, tp.KindInt)
	f.SetCtrl(limit, f.Root())

	exitCmp := b.DataNode(ir.CmpI, tp.KindInt, b.Incr, limit)
	exitBool := b.DataNode(ir.Bool, tp.KindInt, exitCmp)

	b.Exit = f.NewNode(ir.CountedLoopEnd, tp.KindCtrl, b.CL, exitBool)
	b.info.Exit = b.Exit
	f.SetIdom(b.Exit, b.CL)

	back := f.NewNode(ir.IfTrue, tp.KindCtrl, b.Exit)
	f.SetIn(b.CL, ir.PhiBack, back)
	f.SetIdom(back, b.Exit)

	mainExit := f.NewNode(ir.IfFalse, tp.KindCtrl, b.Exit)
	f.SetIdom(mainExit, b.Exit)

	b.body = append(b.body, b.CL, b.IV)

	return b
}

func (b *LoopBuilder) Info() *ir.CountedLoopInfo { return b.info }

// DataNode creates a node placed inside the loop.
func (b *LoopBuilder) DataNode(op ir.Op, kind tp.Kind, in ...*ir.Node) *ir.Node {
	n := b.F.NewNode(op, kind, in...)
	b.F.SetCtrl(n, b.CL)
	b.body = append(b.body, n)

	return n
}

// Invariant creates a loop-invariant node dominating the pre-loop head.
func (b *LoopBuilder) Invariant(op ir.Op, kind tp.Kind, in ...*ir.Node) *ir.Node {
	n := b.F.NewNode(op, kind, in...)
	b.F.SetCtrl(n, b.F.Root())

	return n
}

// NewArray declares an array of the given element kind with a 16 byte
// header, its own alias class and initial memory state.
func (b *LoopBuilder) NewArray(elem tp.Kind) *Array {
	f := b.F

	base := f.NewNode(ir.Parm, tp.KindPtr)
	f.SetCtrl(base, f.Root())

	mem := f.NewNode(ir.Parm, tp.KindMem)
	f.SetCtrl(mem, f.Root())

	a := &Array{
		Base:   base,
		Type:   tp.Array{X: tp.Int{Bits: int16(elem.Size() * 8), Signed: elem.Signed()}},
		Elem:   elem,
		Header: 16,
		mem:    mem,
	}

	b.arrays = append(b.arrays, a)

	return a
}

// memPhi lazily creates the array's memory phi at the loop head.
func (b *LoopBuilder) memPhi(a *Array) *ir.Node {
	if a.phi == nil {
		a.phi = b.DataNode(ir.Phi, tp.KindMem, b.CL, a.mem, nil)
		a.phi.Adr = a.Type
		a.last = a.phi
	}

	return a.phi
}

// Adr builds the canonical address a.Base + header + size*(idx+extra) as
// AddP(base, base, offset-expression).
func (b *LoopBuilder) Adr(a *Array, idx *ir.Node, extra int) *ir.Node {
	f := b.F

	var off *ir.Node

	switch a.Elem.Size() {
	case 1:
		off = idx
	default:
		sh := 0
		for 1<<sh < a.Elem.Size() {
			sh++
		}

		off = b.DataNode(ir.LShiftI, tp.KindInt, idx, f.ConstI(sh))
	}

	off = b.DataNode(ir.AddI, tp.KindInt, off, f.ConstI(a.Header+extra*a.Elem.Size()))

	adr := b.DataNode(ir.AddP, tp.KindPtr, a.Base, a.Base, off)

	return adr
}

// AdrInvar is Adr with an extra loop-invariant term folded into the
// constant offset input: AddI(const, invar).
func (b *LoopBuilder) AdrInvar(a *Array, idx, invar *ir.Node, extra int) *ir.Node {
	f := b.F

	sh := 0
	for 1<<sh < a.Elem.Size() {
		sh++
	}

	var off *ir.Node
	if sh > 0 {
		off = b.DataNode(ir.LShiftI, tp.KindInt, idx, f.ConstI(sh))
	} else {
		off = idx
	}

	k := f.NewNode(ir.AddI, tp.KindInt, f.ConstI(a.Header+extra*a.Elem.Size()), invar)
	f.SetCtrl(k, f.Root())

	off = b.DataNode(ir.AddI, tp.KindInt, off, k)

	return b.DataNode(ir.AddP, tp.KindPtr, a.Base, a.Base, off)
}

func loadOp(k tp.Kind) ir.Op {
	switch k {
	case tp.KindByte:
		return ir.LoadB
	case tp.KindChar:
		return ir.LoadUS
	case tp.KindShort:
		return ir.LoadS
	case tp.KindLong:
		return ir.LoadL
	}

	return ir.LoadI
}

func storeOp(k tp.Kind) ir.Op {
	switch k {
	case tp.KindByte:
		return ir.StoreB
	case tp.KindChar:
		return ir.StoreC
	case tp.KindShort:
		return ir.StoreS
	case tp.KindLong:
		return ir.StoreL
	}

	return ir.StoreI
}

// Load reads a[idx+extra].
func (b *LoopBuilder) Load(a *Array, idx *ir.Node, extra int) *ir.Node {
	return b.LoadOp(loadOp(a.Elem), a, idx, extra)
}

// LoadOp reads through an explicit load opcode, e.g. LoadUB.
func (b *LoopBuilder) LoadOp(op ir.Op, a *Array, idx *ir.Node, extra int) *ir.Node {
	adr := b.Adr(a, idx, extra)

	ld := b.DataNode(op, op.MemoryKind(), b.CL, b.memPhi(a), adr)
	ld.Adr = a.Type

	return ld
}

// Store writes a[idx+extra] = val.
func (b *LoopBuilder) Store(a *Array, idx *ir.Node, extra int, val *ir.Node) *ir.Node {
	return b.storeAt(a, b.Adr(a, idx, extra), val)
}

// StoreAdr writes through a prebuilt address.
func (b *LoopBuilder) StoreAdr(a *Array, adr, val *ir.Node) *ir.Node {
	return b.storeAt(a, adr, val)
}

func (b *LoopBuilder) storeAt(a *Array, adr, val *ir.Node) *ir.Node {
	st := b.DataNode(storeOp(a.Elem), tp.KindMem, b.CL, b.memPhi(a), adr, val)
	st.Adr = a.Type

	// Later accesses of the slice depend on this store.
	if a.last != a.phi {
		b.F.SetIn(st, ir.MemMem, a.last)
	}

	a.last = st

	return st
}

// AtomicUpdate models a LoadStore style atomic read-modify-write of
// a[idx].
func (b *LoopBuilder) AtomicUpdate(a *Array, idx, val *ir.Node) *ir.Node {
	adr := b.Adr(a, idx, 0)

	n := b.DataNode(ir.CompareAndSwapI, tp.KindInt, b.CL, b.memPhi(a), adr, val)
	n.Adr = a.Type

	if a.last != a.phi {
		b.F.SetIn(n, ir.MemMem, a.last)
	}

	a.last = n

	return n
}

// Done patches the memory phis of every declared array and returns the
// finished loop.
func (b *LoopBuilder) Done() *ir.Loop {
	for _, a := range b.arrays {
		if a.phi != nil && a.last != a.phi {
			b.F.SetIn(a.phi, ir.PhiBack, a.last)
		} else if a.phi != nil {
			// Load-only slice: phi folds away, back input equals entry.
			b.F.SetIn(a.phi, ir.PhiBack, a.mem)
		}
	}

	return ir.NewLoop(b.F, b.CL, b.body)
}
