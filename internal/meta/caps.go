package meta

import "reflect"

// Cap identifies one declarable native method. The capability table is a
// bitset built once per class at registration; protocol builders consult it
// instead of probing the method set again.
type Cap uint

const (
	CapInit Cap = iota
	CapRepr
	CapHash
	CapCall

	CapAdd
	CapRAdd
	CapSub
	CapRSub
	CapMul
	CapRMul
	CapDiv
	CapRDiv
	CapFloorDiv
	CapRFloorDiv
	CapMod
	CapRMod
	CapPow
	CapRPow
	CapLShift
	CapRShift
	CapBitAnd
	CapBitOr
	CapBitXor
	CapIAdd
	CapISub
	CapIMul
	CapNeg
	CapPos
	CapAbs
	CapInvert
	CapToInt
	CapToFloat
	CapIndex

	CapEq
	CapNe
	CapLt
	CapLe
	CapGt
	CapGe

	CapLen
	CapGetItem
	CapSetItem
	CapDelItem

	CapIter
	CapNext

	CapBuffer

	CapTraverse
	CapClear

	capCount
)

// capMethods maps each capability to the Go method name probed on *T.
var capMethods = [capCount]string{
	CapInit: "Init", CapRepr: "Repr", CapHash: "Hash", CapCall: "Call",

	CapAdd: "Add", CapRAdd: "RAdd", CapSub: "Sub", CapRSub: "RSub",
	CapMul: "Mul", CapRMul: "RMul", CapDiv: "Div", CapRDiv: "RDiv",
	CapFloorDiv: "FloorDiv", CapRFloorDiv: "RFloorDiv",
	CapMod: "Mod", CapRMod: "RMod", CapPow: "Pow", CapRPow: "RPow",
	CapLShift: "LShift", CapRShift: "RShift",
	CapBitAnd: "BitAnd", CapBitOr: "BitOr", CapBitXor: "BitXor",
	CapIAdd: "IAdd", CapISub: "ISub", CapIMul: "IMul",
	CapNeg: "Neg", CapPos: "Pos", CapAbs: "Abs", CapInvert: "Invert",
	CapToInt: "ToInt", CapToFloat: "ToFloat", CapIndex: "Index",

	CapEq: "Eq", CapNe: "Ne", CapLt: "Lt", CapLe: "Le", CapGt: "Gt", CapGe: "Ge",

	CapLen: "Len", CapGetItem: "GetItem", CapSetItem: "SetItem", CapDelItem: "DelItem",

	CapIter: "Iter", CapNext: "Next",

	CapBuffer: "Buffer",

	CapTraverse: "Traverse", CapClear: "Clear",
}

// MethodName returns the probed Go method name for c.
func (c Cap) MethodName() string { return capMethods[c] }

// Caps is a class's capability bitset.
type Caps uint64

// Has reports whether c is declared.
func (cs Caps) Has(c Cap) bool { return cs&(1<<c) != 0 }

func (cs *Caps) set(c Cap) { *cs |= 1 << c }

// HasAnyNumeric reports whether any numeric-protocol capability is set.
func (cs Caps) HasAnyNumeric() bool {
	for c := CapAdd; c <= CapIndex; c++ {
		if cs.Has(c) {
			return true
		}
	}
	return false
}

// HasAnyCompare reports whether any comparison capability is set.
func (cs Caps) HasAnyCompare() bool {
	for c := CapEq; c <= CapGe; c++ {
		if cs.Has(c) {
			return true
		}
	}
	return false
}

// HasAnyMapping reports whether any mapping capability is set.
func (cs Caps) HasAnyMapping() bool {
	return cs.Has(CapLen) || cs.Has(CapGetItem) || cs.Has(CapSetItem) || cs.Has(CapDelItem)
}

// probeCaps builds the capability table for a struct pointer type.
func probeCaps(ptr reflect.Type) (Caps, map[Cap]reflect.Method) {
	var caps Caps
	methods := make(map[Cap]reflect.Method)
	for c := Cap(0); c < capCount; c++ {
		m, ok := ptr.MethodByName(capMethods[c])
		if !ok {
			continue
		}
		caps.set(c)
		methods[c] = m
	}
	return caps, methods
}
