package bind

import (
	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// buildCompare installs the single rich-comparison entry point. Missing
// operators derive from declared ones by the standard order relations:
// != from ==, > from < with swapped operands, <= from its declared form or
// else < OR ==, >= symmetric. A foreign operand declines, never raises.
func (c *Class) buildCompare() {
	if !c.spec.Caps.HasAnyCompare() {
		return
	}
	eq := c.protoSpec(meta.CapEq)
	ne := c.protoSpec(meta.CapNe)
	lt := c.protoSpec(meta.CapLt)
	le := c.protoSpec(meta.CapLe)
	gt := c.protoSpec(meta.CapGt)
	ge := c.protoSpec(meta.CapGe)

	evalEQ := func(r *rt.Runtime, self, other rt.Object) (rt.Object, error) {
		return c.cmpCall(r, eq, self, other)
	}
	evalLT := func(r *rt.Runtime, self, other rt.Object) (rt.Object, error) {
		return c.cmpCall(r, lt, self, other)
	}
	evalGT := func(r *rt.Runtime, self, other rt.Object) (rt.Object, error) {
		if gt != nil {
			return c.cmpCall(r, gt, self, other)
		}
		// a > b  ==  b < a, when the other side is also ours.
		if _, ok := unwrap(c, other); !ok {
			return notImplemented()
		}
		return c.cmpCall(r, lt, other, self)
	}

	c.typ.Compare = func(r *rt.Runtime, self, other rt.Object, op rt.CompareOp) (rt.Object, error) {
		switch op {
		case rt.CompareEQ:
			return evalEQ(r, self, other)
		case rt.CompareNE:
			if ne != nil {
				return c.cmpCall(r, ne, self, other)
			}
			return cmpNegate(evalEQ(r, self, other))
		case rt.CompareLT:
			return evalLT(r, self, other)
		case rt.CompareGT:
			return evalGT(r, self, other)
		case rt.CompareLE:
			if le != nil {
				return c.cmpCall(r, le, self, other)
			}
			// Without a declared <, "< or ==" would degrade to plain
			// equality; decline instead.
			if lt == nil {
				return notImplemented()
			}
			return cmpEither(r, evalLT, evalEQ, self, other)
		case rt.CompareGE:
			if ge != nil {
				return c.cmpCall(r, ge, self, other)
			}
			if gt == nil && lt == nil {
				return notImplemented()
			}
			return cmpEither(r, evalGT, evalEQ, self, other)
		}
		return notImplemented()
	}
}

// cmpCall runs one declared comparison method; a nil descriptor or an
// unconvertible operand declines.
func (c *Class) cmpCall(r *rt.Runtime, fs *meta.FuncSpec, self, other rt.Object) (rt.Object, error) {
	if fs == nil {
		return notImplemented()
	}
	return c.callProto(r, fs, self, other)
}

// cmpNegate inverts a boolean comparison result, passing NotImplemented
// and errors through.
func cmpNegate(o rt.Object, err error) (rt.Object, error) {
	if err != nil || o == rt.Object(rt.NotImplemented) {
		return o, err
	}
	b, ok := o.(*rt.Bool)
	if !ok {
		return o, nil
	}
	rt.Decref(o)
	return rt.NewBool(!b.Value), nil
}

type cmpEval func(r *rt.Runtime, self, other rt.Object) (rt.Object, error)

// cmpEither derives an or-relation (<=, >=) from a strict relation and
// equality: true when either holds, NotImplemented when both decline.
func cmpEither(r *rt.Runtime, strict, equal cmpEval, self, other rt.Object) (rt.Object, error) {
	first, err := strict(r, self, other)
	if err != nil {
		return nil, err
	}
	if b, ok := first.(*rt.Bool); ok && b.Value {
		return first, nil
	}
	firstDeclined := first == rt.Object(rt.NotImplemented)
	rt.Decref(first)

	second, err := equal(r, self, other)
	if err != nil {
		return nil, err
	}
	if second == rt.Object(rt.NotImplemented) && firstDeclined {
		return second, nil
	}
	if second == rt.Object(rt.NotImplemented) {
		rt.Decref(second)
		return rt.NewBool(false), nil
	}
	return second, nil
}
