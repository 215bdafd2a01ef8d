package bind

import (
	"fmt"
	"reflect"

	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// operandCase classifies a binary operator's operand pair against the
// registered class once, so each slot branches a single time instead of
// nesting per-operator conditionals.
type operandCase int

const (
	operandNeither operandCase = iota
	operandLeft                // self on the left, foreign right
	operandRight               // foreign left, self on the right
	operandBoth
)

func (c *Class) classifyOperands(a, b rt.Object) operandCase {
	_, aOK := unwrap(c, a)
	_, bOK := unwrap(c, b)
	switch {
	case aOK && bOK:
		return operandBoth
	case aOK:
		return operandLeft
	case bOK:
		return operandRight
	}
	return operandNeither
}

// notImplemented returns an owned handle to the NotImplemented singleton,
// telling the runtime to try the other operand.
func notImplemented() (rt.Object, error) {
	rt.Incref(rt.NotImplemented)
	return rt.NotImplemented, nil
}

// protoSpec builds the call descriptor for a declared protocol method.
// Shape errors are latched into slotErr and fail registration.
func (c *Class) protoSpec(cap meta.Cap) *meta.FuncSpec {
	m, ok := c.spec.Methods[cap]
	if !ok {
		return nil
	}
	fs, err := meta.FuncOf(c.Name()+"."+m.Name, m.Func.Interface(),
		meta.WithReceiver(), meta.WithMode(meta.PositionalOnly))
	if err != nil {
		if c.slotErr == nil {
			c.slotErr = fmt.Errorf("method %s: %w", m.Name, err)
		}
		return nil
	}
	fs.ErrTable = c.def.ErrTable
	return fs
}

// callProto invokes a protocol method with self as receiver and the given
// operands converted to the method's parameter types. An operand the
// method cannot accept declines the pairing instead of raising.
func (c *Class) callProto(r *rt.Runtime, fs *meta.FuncSpec, self rt.Object, operands ...rt.Object) (rt.Object, error) {
	recv, ok := c.self(self)
	if !ok {
		return notImplemented()
	}
	if len(operands) != len(fs.Params) {
		return notImplemented()
	}
	in := make([]reflect.Value, len(operands))
	for i, p := range fs.Params {
		v, err := c.binder.marshaller.ToNative(r, p.Spec, operands[i])
		if err != nil {
			if isTypeMismatch(err) {
				return notImplemented()
			}
			return nil, raiseConversion(r, fs.Name+"() operand", err)
		}
		in[i] = v
	}
	return c.binder.invoke(r, fs, c.reg, recv, in)
}

// buildNumeric installs the numeric protocol table from the capability
// bitset. Binary operators honor the reflected-operand contract: a foreign
// left operand with a self right operand routes to the r-prefixed method,
// and a missing method declines rather than raises.
func (c *Class) buildNumeric() {
	caps := c.spec.Caps
	if !caps.HasAnyNumeric() {
		return
	}
	n := &rt.NumberSlots{}

	n.Add = c.binarySlot(meta.CapAdd, meta.CapRAdd)
	n.Subtract = c.binarySlot(meta.CapSub, meta.CapRSub)
	n.Multiply = c.binarySlot(meta.CapMul, meta.CapRMul)
	n.Divide = c.binarySlot(meta.CapDiv, meta.CapRDiv)
	n.FloorDiv = c.binarySlot(meta.CapFloorDiv, meta.CapRFloorDiv)
	n.Remainder = c.binarySlot(meta.CapMod, meta.CapRMod)
	n.Power = c.binarySlot(meta.CapPow, meta.CapRPow)

	n.LShift = c.forwardSlot(meta.CapLShift)
	n.RShift = c.forwardSlot(meta.CapRShift)
	n.BitAnd = c.forwardSlot(meta.CapBitAnd)
	n.BitOr = c.forwardSlot(meta.CapBitOr)
	n.BitXor = c.forwardSlot(meta.CapBitXor)

	n.InPlaceAdd = c.inplaceSlot(meta.CapIAdd)
	n.InPlaceSubtract = c.inplaceSlot(meta.CapISub)
	n.InPlaceMultiply = c.inplaceSlot(meta.CapIMul)

	n.Negative = c.unarySlot(meta.CapNeg)
	n.Positive = c.unarySlot(meta.CapPos)
	n.Absolute = c.unarySlot(meta.CapAbs)
	n.Invert = c.unarySlot(meta.CapInvert)

	n.ToInt = c.unarySlot(meta.CapToInt)
	n.ToFloat = c.unarySlot(meta.CapToFloat)
	n.Index = c.unarySlot(meta.CapIndex)

	c.typ.Number = n
}

// binarySlot builds a two-operand slot from a forward and a reflected
// capability. Returns nil when neither is declared.
func (c *Class) binarySlot(fwd, rev meta.Cap) rt.BinaryFunc {
	fs := c.protoSpec(fwd)
	rs := c.protoSpec(rev)
	if fs == nil && rs == nil {
		return nil
	}
	return func(r *rt.Runtime, a, b rt.Object) (rt.Object, error) {
		switch c.classifyOperands(a, b) {
		case operandBoth, operandLeft:
			if fs == nil {
				return notImplemented()
			}
			return c.callProto(r, fs, a, b)
		case operandRight:
			if rs == nil {
				return notImplemented()
			}
			return c.callProto(r, rs, b, a)
		}
		return notImplemented()
	}
}

// forwardSlot builds a two-operand slot with no reflected form.
func (c *Class) forwardSlot(cap meta.Cap) rt.BinaryFunc {
	fs := c.protoSpec(cap)
	if fs == nil {
		return nil
	}
	return func(r *rt.Runtime, a, b rt.Object) (rt.Object, error) {
		kind := c.classifyOperands(a, b)
		if kind != operandLeft && kind != operandBoth {
			return notImplemented()
		}
		return c.callProto(r, fs, a, b)
	}
}

// inplaceSlot builds an augmented-assignment slot. A method that mutates
// in place and returns nothing yields the receiver itself.
func (c *Class) inplaceSlot(cap meta.Cap) rt.BinaryFunc {
	fs := c.protoSpec(cap)
	if fs == nil {
		return nil
	}
	returnsSelf := fs.Return.Go == nil
	return func(r *rt.Runtime, a, b rt.Object) (rt.Object, error) {
		kind := c.classifyOperands(a, b)
		if kind != operandLeft && kind != operandBoth {
			return notImplemented()
		}
		out, err := c.callProto(r, fs, a, b)
		if err != nil {
			return nil, err
		}
		if returnsSelf && out != rt.Object(rt.NotImplemented) {
			rt.Decref(out)
			return rt.NewRef(a), nil
		}
		return out, nil
	}
}

// unarySlot builds a one-operand slot.
func (c *Class) unarySlot(cap meta.Cap) rt.UnaryFunc {
	fs := c.protoSpec(cap)
	if fs == nil {
		return nil
	}
	return func(r *rt.Runtime, self rt.Object) (rt.Object, error) {
		recv, ok := c.self(self)
		if !ok {
			return nil, r.Raise(rt.TypeError, "%s: wrong receiver", fs.Name)
		}
		return c.binder.invoke(r, fs, c.reg, recv, nil)
	}
}
