package rt

import (
	"fmt"

	"github.com/google/uuid"
)

// WeakRef refers to an object without keeping it alive. When the referent
// is deallocated the reference is cleared and the callback, if any, fires.
type WeakRef struct {
	Header
	Token    string
	referent Object
	Callback func(ref *WeakRef)
}

var WeakRefType = newStaticType("weakref")

func (w *WeakRef) Inspect() string {
	if w.referent == nil {
		return fmt.Sprintf("<weakref %s; dead>", w.Token)
	}
	return fmt.Sprintf("<weakref %s; to %s>", w.Token, w.referent.TypeOf().Name)
}

// Get returns a new owned reference to the referent, or nil when dead.
func (w *WeakRef) Get() Object {
	if w.referent == nil {
		return nil
	}
	return NewRef(w.referent)
}

// Alive reports whether the referent has not been deallocated.
func (w *WeakRef) Alive() bool { return w.referent != nil }

// WeakList is the per-object weak reference list slot.
type WeakList struct {
	refs []*WeakRef
}

// NewWeakList creates an empty weak list.
func NewWeakList() *WeakList { return &WeakList{} }

// NewRef creates a weak reference to referent and appends it to the list.
// callback may be nil. The returned reference is owned by the caller; the
// list itself does not keep references alive.
func (wl *WeakList) NewRef(referent Object, callback func(ref *WeakRef)) *WeakRef {
	w := &WeakRef{
		Header:   NewHeader(WeakRefType),
		Token:    uuid.NewString(),
		referent: referent,
		Callback: callback,
	}
	wl.refs = append(wl.refs, w)
	return w
}

// Len reports the number of live references registered.
func (wl *WeakList) Len() int {
	n := 0
	for _, w := range wl.refs {
		if w.referent != nil {
			n++
		}
	}
	return n
}

// ClearAll severs every reference and fires callbacks. Called by instance
// deallocation before any other teardown.
func (wl *WeakList) ClearAll() {
	refs := wl.refs
	wl.refs = nil
	for _, w := range refs {
		if w.referent == nil {
			continue
		}
		w.referent = nil
		if w.Callback != nil {
			w.Callback(w)
		}
	}
}
