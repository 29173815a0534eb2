package ir

import (
	"github.com/vexlang/vex/src/compiler/tp"
)

type (
	Op int32
)

const (
	Invalid Op = iota

	// control
	Top
	Root
	Region
	CountedLoop
	CountedLoopEnd
	If
	IfTrue
	IfFalse

	Phi
	Proj
	Parm

	// constants
	ConI
	ConL

	// arithmetic
	AddI
	AddL
	SubI
	SubL
	MulI
	MulL
	AndI
	OrI
	XorI
	MinI
	MaxI
	LShiftI
	LShiftL
	RShiftI
	URShiftI
	AbsI
	ReverseBytesI
	ConvI2L
	CastII

	// address compute
	AddP

	// compare
	CmpI
	CmpL
	Bool

	// pre-loop limit guard
	Opaque1

	// memory
	LoadB
	LoadUB
	LoadS
	LoadUS
	LoadI
	LoadL
	StoreB
	StoreC
	StoreS
	StoreI
	StoreL
	StoreCM
	CompareAndSwapI
	MergeMem

	opMax
)

var opNames = [...]string{
	Invalid:         "Invalid",
	Top:             "Top",
	Root:            "Root",
	Region:          "Region",
	CountedLoop:     "CountedLoop",
	CountedLoopEnd:  "CountedLoopEnd",
	If:              "If",
	IfTrue:          "IfTrue",
	IfFalse:         "IfFalse",
	Phi:             "Phi",
	Proj:            "Proj",
	Parm:            "Parm",
	ConI:            "ConI",
	ConL:            "ConL",
	AddI:            "AddI",
	AddL:            "AddL",
	SubI:            "SubI",
	SubL:            "SubL",
	MulI:            "MulI",
	MulL:            "MulL",
	AndI:            "AndI",
	OrI:             "OrI",
	XorI:            "XorI",
	MinI:            "MinI",
	MaxI:            "MaxI",
	LShiftI:         "LShiftI",
	LShiftL:         "LShiftL",
	RShiftI:         "RShiftI",
	URShiftI:        "URShiftI",
	AbsI:            "AbsI",
	ReverseBytesI:   "ReverseBytesI",
	ConvI2L:         "ConvI2L",
	CastII:          "CastII",
	AddP:            "AddP",
	CmpI:            "CmpI",
	CmpL:            "CmpL",
	Bool:            "Bool",
	Opaque1:         "Opaque1",
	LoadB:           "LoadB",
	LoadUB:          "LoadUB",
	LoadS:           "LoadS",
	LoadUS:          "LoadUS",
	LoadI:           "LoadI",
	LoadL:           "LoadL",
	StoreB:          "StoreB",
	StoreC:          "StoreC",
	StoreS:          "StoreS",
	StoreI:          "StoreI",
	StoreL:          "StoreL",
	StoreCM:         "StoreCM",
	CompareAndSwapI: "CompareAndSwapI",
	MergeMem:        "MergeMem",
}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) || opNames[op] == "" {
		return "Op?"
	}

	return opNames[op]
}

func (op Op) IsCFG() bool {
	switch op {
	case Root, Region, CountedLoop, CountedLoopEnd, If, IfTrue, IfFalse:
		return true
	}

	return false
}

func (op Op) IsLoad() bool {
	return op >= LoadB && op <= LoadL
}

func (op Op) IsStore() bool {
	return op >= StoreB && op <= StoreCM
}

// IsMem reports ops that produce or consume raw memory state through the
// standard ctrl/mem/adr input layout.
func (op Op) IsMem() bool {
	return op.IsLoad() || op.IsStore() || op == CompareAndSwapI
}

func (op Op) IsLoadStore() bool {
	return op == CompareAndSwapI
}

func (op Op) IsShift() bool {
	switch op {
	case LShiftI, LShiftL, RShiftI, URShiftI:
		return true
	}

	return false
}

// IsCommutative reports ops whose two inputs may have been swapped by
// canonicalization.
func (op Op) IsCommutative() bool {
	switch op {
	case AddI, AddL, MulI, MulL, AndI, OrI, XorI, MinI, MaxI:
		return true
	}

	return false
}

// MemoryKind is the declared kind of the memory access. Container-type
// adjustments (stored char, unsigned byte load) are not applied here.
func (op Op) MemoryKind() tp.Kind {
	switch op {
	case LoadB, LoadUB, StoreB:
		return tp.KindByte
	case LoadS, StoreS:
		return tp.KindShort
	case LoadUS, StoreC:
		return tp.KindChar
	case LoadI, StoreI, CompareAndSwapI:
		return tp.KindInt
	case LoadL, StoreL:
		return tp.KindLong
	case StoreCM:
		return tp.KindByte
	}

	return tp.KindVoid
}

// HasReductionOp reports whether a scalar op over elements of kind k has a
// matching vector reduction opcode, i.e. whether it may act as a reduction
// operator.
func HasReductionOp(op Op, k tp.Kind) bool {
	if k.IsIntFamily() {
		switch op {
		case AddI, MulI, AndI, OrI, XorI, MinI, MaxI:
			return true
		}

		return false
	}

	if k == tp.KindLong {
		switch op {
		case AddL, MulL:
			return true
		}
	}

	return false
}
