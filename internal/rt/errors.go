package rt

import "fmt"

// Standard exception types. These are static, immortal type objects; the
// binding layer may additionally create heap exception types per module.
var (
	BaseException       = newStaticType("BaseException")
	Exception           = newExcType("Exception", BaseException)
	TypeError           = newExcType("TypeError", Exception)
	ValueError          = newExcType("ValueError", Exception)
	KeyError            = newExcType("KeyError", Exception)
	IndexError          = newExcType("IndexError", Exception)
	AttributeError      = newExcType("AttributeError", Exception)
	ZeroDivisionError   = newExcType("ZeroDivisionError", Exception)
	StopIteration       = newExcType("StopIteration", Exception)
	RuntimeError        = newExcType("RuntimeError", Exception)
	NotImplementedError = newExcType("NotImplementedError", RuntimeError)
	MemoryError         = newExcType("MemoryError", Exception)
	ImportError         = newExcType("ImportError", Exception)
)

func newExcType(name string, base *Type) *Type {
	t := newStaticType(name)
	t.Base = base
	return t
}

// NewExceptionType creates a heap exception type for a bound module.
func NewExceptionType(name string, base *Type) *Type {
	if base == nil {
		base = Exception
	}
	t := NewHeapType(name, "")
	t.Base = base
	t.ready = true
	return t
}

// Raised is the Go error form of a pending runtime exception. Adapters that
// receive it from a runtime call must not set a second exception.
type Raised struct {
	Type    *Type
	Message string
}

func (e *Raised) Error() string {
	return fmt.Sprintf("%s: %s", e.Type.Name, e.Message)
}

// ExcState is a fetched pending exception, restorable later.
type ExcState struct {
	Type    *Type
	Message string
}

// Raise sets the pending exception and returns it as a Go error. Any
// previously pending exception is replaced.
func (r *Runtime) Raise(t *Type, format string, args ...interface{}) error {
	e := &Raised{Type: t, Message: fmt.Sprintf(format, args...)}
	r.pending = e
	return e
}

// RaiseObject sets a pending exception from an existing Raised value.
func (r *Runtime) RaiseObject(e *Raised) error {
	r.pending = e
	return e
}

// ErrOccurred returns the type of the pending exception, or nil. Borrowed.
func (r *Runtime) ErrOccurred() *Type {
	if r.pending == nil {
		return nil
	}
	return r.pending.Type
}

// ErrMatches reports whether the pending exception is t or derives from t.
func (r *Runtime) ErrMatches(t *Type) bool {
	if r.pending == nil {
		return false
	}
	for et := r.pending.Type; et != nil; et = et.Base {
		if et == t {
			return true
		}
	}
	return false
}

// Fetch clears and returns the pending exception state.
func (r *Runtime) Fetch() *ExcState {
	if r.pending == nil {
		return nil
	}
	s := &ExcState{Type: r.pending.Type, Message: r.pending.Message}
	r.pending = nil
	return s
}

// Restore re-installs a previously fetched exception state.
func (r *Runtime) Restore(s *ExcState) {
	if s == nil {
		r.pending = nil
		return
	}
	r.pending = &Raised{Type: s.Type, Message: s.Message}
}

// ErrClear drops the pending exception.
func (r *Runtime) ErrClear() { r.pending = nil }

// Pending returns the pending exception as a Go error, or nil.
func (r *Runtime) Pending() error {
	if r.pending == nil {
		return nil
	}
	return r.pending
}

// AdoptError ensures err is reflected in the pending exception state. A
// *Raised produced by Raise is already pending; any other Go error becomes
// a RuntimeError. Returns the pending error.
func (r *Runtime) AdoptError(err error) error {
	if re, ok := err.(*Raised); ok {
		r.pending = re
		return re
	}
	return r.Raise(RuntimeError, "%s", err.Error())
}
