package rt

// Abstract object operations: the slot-dispatching entry points the wider
// runtime (and the embedding layer) calls on arbitrary handles.

// BinaryOpKind selects a slot pair for BinaryOp.
type BinaryOpKind int

const (
	OpAdd BinaryOpKind = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpFloorDiv
	OpRemainder
	OpPower
	OpLShift
	OpRShift
	OpBitAnd
	OpBitOr
	OpBitXor
)

var opNames = map[BinaryOpKind]string{
	OpAdd: "+", OpSubtract: "-", OpMultiply: "*", OpDivide: "/",
	OpFloorDiv: "//", OpRemainder: "%", OpPower: "**",
	OpLShift: "<<", OpRShift: ">>", OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^",
}

func numberSlot(t *Type, op BinaryOpKind) BinaryFunc {
	if t == nil || t.Number == nil {
		return nil
	}
	n := t.Number
	switch op {
	case OpAdd:
		return n.Add
	case OpSubtract:
		return n.Subtract
	case OpMultiply:
		return n.Multiply
	case OpDivide:
		return n.Divide
	case OpFloorDiv:
		return n.FloorDiv
	case OpRemainder:
		return n.Remainder
	case OpPower:
		return n.Power
	case OpLShift:
		return n.LShift
	case OpRShift:
		return n.RShift
	case OpBitAnd:
		return n.BitAnd
	case OpBitOr:
		return n.BitOr
	case OpBitXor:
		return n.BitXor
	}
	return nil
}

// BinaryOp dispatches a binary operator: the left operand's slot first,
// then the right operand's when the left declines with NotImplemented.
// Owned result.
func BinaryOp(r *Runtime, op BinaryOpKind, a, b Object) (Object, error) {
	if slot := numberSlot(a.TypeOf(), op); slot != nil {
		res, err := slot(r, a, b)
		if err != nil {
			return nil, err
		}
		if res != Object(NotImplemented) {
			return res, nil
		}
		Decref(res)
	}
	if b.TypeOf() != a.TypeOf() {
		if slot := numberSlot(b.TypeOf(), op); slot != nil {
			res, err := slot(r, a, b)
			if err != nil {
				return nil, err
			}
			if res != Object(NotImplemented) {
				return res, nil
			}
			Decref(res)
		}
	}
	return nil, r.Raise(TypeError, "unsupported operand type(s) for %s: %q and %q",
		opNames[op], a.TypeOf().Name, b.TypeOf().Name)
}

// RichCompare dispatches a comparison through the operands' compare slots,
// swapping the operator when only the right side implements it.
func RichCompare(r *Runtime, a, b Object, op CompareOp) (Object, error) {
	if cmp := a.TypeOf().Compare; cmp != nil {
		res, err := cmp(r, a, b, op)
		if err != nil {
			return nil, err
		}
		if res != Object(NotImplemented) {
			return res, nil
		}
		Decref(res)
	}
	if b.TypeOf() != a.TypeOf() {
		if cmp := b.TypeOf().Compare; cmp != nil {
			res, err := cmp(r, b, a, swapCompare(op))
			if err != nil {
				return nil, err
			}
			if res != Object(NotImplemented) {
				return res, nil
			}
			Decref(res)
		}
	}
	// == and != fall back to identity, the rest have no default ordering.
	switch op {
	case CompareEQ:
		return NewBool(a == b), nil
	case CompareNE:
		return NewBool(a != b), nil
	}
	return nil, r.Raise(TypeError, "%q not supported between instances of %q and %q",
		op.String(), a.TypeOf().Name, b.TypeOf().Name)
}

func swapCompare(op CompareOp) CompareOp {
	switch op {
	case CompareLT:
		return CompareGT
	case CompareLE:
		return CompareGE
	case CompareGT:
		return CompareLT
	case CompareGE:
		return CompareLE
	}
	return op
}

// Length reports len(o) through the mapping slot table.
func Length(r *Runtime, o Object) (int, error) {
	t := o.TypeOf()
	if t.Mapping == nil || t.Mapping.Length == nil {
		return 0, r.Raise(TypeError, "object of type %q has no len()", t.Name)
	}
	return t.Mapping.Length(r, o)
}

// GetItem reads o[key]. Owned result.
func GetItem(r *Runtime, o, key Object) (Object, error) {
	t := o.TypeOf()
	if t.Mapping == nil || t.Mapping.GetItem == nil {
		return nil, r.Raise(TypeError, "%q object is not subscriptable", t.Name)
	}
	return t.Mapping.GetItem(r, o, key)
}

// SetItem writes o[key] = value. Borrows all handles.
func SetItem(r *Runtime, o, key, value Object) error {
	t := o.TypeOf()
	if t.Mapping == nil || t.Mapping.SetItem == nil {
		return r.Raise(TypeError, "%q object does not support item assignment", t.Name)
	}
	return t.Mapping.SetItem(r, o, key, value)
}

// DelItem deletes o[key] by invoking the set slot with a nil value, the
// slot-level deletion convention.
func DelItem(r *Runtime, o, key Object) error {
	t := o.TypeOf()
	if t.Mapping == nil || t.Mapping.SetItem == nil {
		return r.Raise(TypeError, "%q object does not support item deletion", t.Name)
	}
	return t.Mapping.SetItem(r, o, key, nil)
}

// GetIter returns an iterator over o. Owned result.
func GetIter(r *Runtime, o Object) (Object, error) {
	t := o.TypeOf()
	if t.Iter == nil {
		return nil, r.Raise(TypeError, "%q object is not iterable", t.Name)
	}
	return t.Iter(r, o)
}

// Next advances an iterator. Returns nil with a StopIteration pending when
// exhausted. Owned result otherwise.
func Next(r *Runtime, it Object) (Object, error) {
	t := it.TypeOf()
	if t.IterNext == nil {
		return nil, r.Raise(TypeError, "%q object is not an iterator", t.Name)
	}
	return t.IterNext(r, it)
}

// CallObject calls a callable handle: builtin functions, type objects
// (construction) and instances with a call slot. Owned result.
func CallObject(r *Runtime, callable Object, args *Tuple, kwargs *Dict) (Object, error) {
	switch c := callable.(type) {
	case *BuiltinFunc:
		return c.Call(r, args, kwargs)
	case *Type:
		return construct(r, c, args, kwargs)
	default:
		if call := callable.TypeOf().Call; call != nil {
			return call(r, callable, args, kwargs)
		}
	}
	return nil, r.Raise(TypeError, "%q object is not callable", callable.TypeOf().Name)
}

// construct builds a new instance of t: allocation, then initialization.
// A failed init releases the half-built instance and reports the error.
func construct(r *Runtime, t *Type, args *Tuple, kwargs *Dict) (Object, error) {
	if !t.IsReady() {
		return nil, r.Raise(TypeError, "type %q is not ready", t.Name)
	}
	if t.Alloc == nil {
		return nil, r.Raise(TypeError, "cannot create %q instances", t.Name)
	}
	self, err := t.Alloc(r, t)
	if err != nil {
		return nil, err
	}
	if t.Init != nil {
		if err := t.Init(r, self, args, kwargs); err != nil {
			Decref(self)
			return nil, err
		}
	}
	return self, nil
}
