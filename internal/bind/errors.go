package bind

import (
	"errors"

	"github.com/funvibe/pyrite/internal/marshal"
	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// ErrDivisionByZero is the sentinel native division-family methods return
// so their adapters raise the runtime's zero-division exception instead of
// a generic error.
var ErrDivisionByZero = errors.New("division by zero")

// raiseConversion translates a marshalling failure into the pending runtime
// exception at the adapter boundary. Native code never sees the runtime
// exception object itself.
func raiseConversion(r *rt.Runtime, context string, err error) error {
	if re, ok := err.(*rt.Raised); ok {
		return r.RaiseObject(re)
	}
	switch {
	case errors.Is(err, marshal.ErrConversion):
		return r.Raise(rt.ValueError, "%s: %s", context, err)
	case errors.Is(err, marshal.ErrType),
		errors.Is(err, marshal.ErrWrongArgumentCount),
		errors.Is(err, marshal.ErrMissingArgument),
		errors.Is(err, marshal.ErrInvalidArgument):
		return r.Raise(rt.TypeError, "%s: %s", context, err)
	}
	return r.Raise(rt.TypeError, "%s: %s", context, err)
}

// raiseNative maps an error returned by native code onto a runtime
// exception: the per-function error table first (exact match on the native
// error's name), the zero-division sentinel next, then the generic
// runtime-error fallback carrying the error text.
func raiseNative(r *rt.Runtime, reg *Registry, table []meta.ErrCase, err error) error {
	if re, ok := err.(*rt.Raised); ok {
		return r.RaiseObject(re)
	}
	name := err.Error()
	for _, c := range table {
		if c.Name != name {
			continue
		}
		exc := rt.RuntimeError
		if reg != nil {
			if t := reg.Exception(c.Exception); t != nil {
				exc = t
			}
		}
		msg := c.Message
		if msg == "" {
			msg = c.Name
		}
		return r.Raise(exc, "%s", msg)
	}
	if errors.Is(err, ErrDivisionByZero) {
		return r.Raise(rt.ZeroDivisionError, "division by zero")
	}
	return r.Raise(rt.RuntimeError, "%s", name)
}

// isTypeMismatch reports whether err is a plain wrong-kind failure, the
// case binary operator adapters turn into NotImplemented instead of a
// raise.
func isTypeMismatch(err error) bool {
	return errors.Is(err, marshal.ErrType)
}
