package rt

import (
	"fmt"
	"math"
	"strings"
)

// List

// List is the ordered, growable sequence kind. Elements are owned by the
// list.
type List struct {
	Header
	items []Object
}

var ListType = newStaticType("list")

// NewList creates a list with capacity for n elements. Owned result.
func NewList(n int) *List {
	l := &List{Header: NewHeader(ListType), items: make([]Object, n)}
	return l
}

// Len reports the element count. Callers converting a sequence should read
// the size once and index against that snapshot.
func (l *List) Len() int { return len(l.items) }

// Get returns a borrowed handle to the element at i.
func (l *List) Get(i int) Object { return l.items[i] }

// SetItemSteal stores v at index i, stealing the caller's reference to v
// and releasing any previous element.
func (l *List) SetItemSteal(i int, v Object) {
	if old := l.items[i]; old != nil {
		Decref(old)
	}
	l.items[i] = v
}

// Append adds v to the end, taking its own reference (borrows v).
func (l *List) Append(v Object) {
	Incref(v)
	l.items = append(l.items, v)
}

func (l *List) Inspect() string {
	parts := make([]string, len(l.items))
	for i, it := range l.items {
		if it == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = it.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func deallocList(o Object) {
	l := o.(*List)
	for _, it := range l.items {
		XDecref(it)
	}
	l.items = nil
}

// Tuple

// Tuple is the fixed-length sequence kind. Elements are owned by the tuple.
type Tuple struct {
	Header
	items []Object
}

var TupleType = newStaticType("tuple")

// NewTuple creates a tuple of n nil slots; every slot must be filled with
// SetItemSteal before the tuple is exposed. Owned result.
func NewTuple(n int) *Tuple {
	return &Tuple{Header: NewHeader(TupleType), items: make([]Object, n)}
}

// NewTupleFrom creates a tuple borrowing each element (takes its own
// references). Owned result.
func NewTupleFrom(items ...Object) *Tuple {
	t := NewTuple(len(items))
	for i, it := range items {
		Incref(it)
		t.items[i] = it
	}
	return t
}

func (t *Tuple) Len() int { return len(t.items) }

// Get returns a borrowed handle to the element at i.
func (t *Tuple) Get(i int) Object { return t.items[i] }

// SetItemSteal stores v at index i, stealing the caller's reference.
func (t *Tuple) SetItemSteal(i int, v Object) {
	if old := t.items[i]; old != nil {
		Decref(old)
	}
	t.items[i] = v
}

func (t *Tuple) Inspect() string {
	parts := make([]string, len(t.items))
	for i, it := range t.items {
		if it == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = it.Inspect()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func deallocTuple(o Object) {
	t := o.(*Tuple)
	for _, it := range t.items {
		XDecref(it)
	}
	t.items = nil
}

// Dict

type dictEntry struct {
	hash  uint32
	key   Object
	value Object
}

// Dict is the mapping kind. Keys and values are owned by the dict.
// Iteration order is insertion order.
type Dict struct {
	Header
	entries []dictEntry
	index   map[uint32][]int
}

var DictType = newStaticType("dict")

// NewDict creates an empty dict. Owned result.
func NewDict() *Dict {
	return &Dict{Header: NewHeader(DictType), index: make(map[uint32][]int)}
}

func (d *Dict) Len() int { return len(d.entries) }

func (d *Dict) lookup(r *Runtime, key Object) (int, uint32, error) {
	h, err := HashObject(r, key)
	if err != nil {
		return -1, 0, err
	}
	for _, i := range d.index[h] {
		eq, err := EqualObjects(r, d.entries[i].key, key)
		if err != nil {
			return -1, 0, err
		}
		if eq {
			return i, h, nil
		}
	}
	return -1, h, nil
}

// SetItem stores value under key. Borrows both handles: the dict takes its
// own references, the caller keeps (and still must release) its own.
func (d *Dict) SetItem(r *Runtime, key, value Object) error {
	i, h, err := d.lookup(r, key)
	if err != nil {
		return err
	}
	if i >= 0 {
		Incref(value)
		Decref(d.entries[i].value)
		d.entries[i].value = value
		return nil
	}
	Incref(key)
	Incref(value)
	d.index[h] = append(d.index[h], len(d.entries))
	d.entries = append(d.entries, dictEntry{hash: h, key: key, value: value})
	return nil
}

// GetItem returns a borrowed handle to the value for key, or nil when the
// key is absent. Unhashable keys surface as an error.
func (d *Dict) GetItem(r *Runtime, key Object) (Object, error) {
	i, _, err := d.lookup(r, key)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return nil, nil
	}
	return d.entries[i].value, nil
}

// GetString returns a borrowed handle for a string key, or nil.
func (d *Dict) GetString(r *Runtime, key string) Object {
	k := NewStr(key)
	defer Decref(k)
	v, _ := d.GetItem(r, k)
	return v
}

// SetString stores value under a string key, borrowing value.
func (d *Dict) SetString(r *Runtime, key string, value Object) error {
	k := NewStr(key)
	defer Decref(k)
	return d.SetItem(r, k, value)
}

// Delete removes key, reporting whether it was present.
func (d *Dict) Delete(r *Runtime, key Object) (bool, error) {
	i, h, err := d.lookup(r, key)
	if err != nil || i < 0 {
		return false, err
	}
	Decref(d.entries[i].key)
	Decref(d.entries[i].value)
	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	// Rebuild the index: positions after i shifted down.
	d.index = make(map[uint32][]int, len(d.entries))
	for j, e := range d.entries {
		d.index[e.hash] = append(d.index[e.hash], j)
	}
	_ = h
	return true, nil
}

// Range calls fn for each entry in insertion order with borrowed handles.
func (d *Dict) Range(fn func(key, value Object) bool) {
	for _, e := range d.entries {
		if !fn(e.key, e.value) {
			return
		}
	}
}

func (d *Dict) Inspect() string {
	parts := make([]string, len(d.entries))
	for i, e := range d.entries {
		parts[i] = e.key.Inspect() + ": " + e.value.Inspect()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func deallocDict(o Object) {
	d := o.(*Dict)
	for _, e := range d.entries {
		Decref(e.key)
		Decref(e.value)
	}
	d.entries = nil
	d.index = nil
}

// Set

// Set is the unordered unique-element kind. A frozen set rejects mutation
// after construction.
type Set struct {
	Header
	entries []dictEntry // value field unused
	index   map[uint32][]int
	frozen  bool
}

var (
	SetType       = newStaticType("set")
	FrozenSetType = newStaticType("frozenset")
)

// NewSet creates an empty mutable set. Owned result.
func NewSet() *Set {
	return &Set{Header: NewHeader(SetType), index: make(map[uint32][]int)}
}

// NewFrozenSet creates an empty set that Freeze will seal. Owned result.
func NewFrozenSet() *Set {
	return &Set{Header: NewHeader(FrozenSetType), index: make(map[uint32][]int)}
}

// Freeze seals a frozenset after its elements are added.
func (s *Set) Freeze() { s.frozen = true }

// Frozen reports whether the set rejects mutation.
func (s *Set) Frozen() bool { return s.frozen }

func (s *Set) Len() int { return len(s.entries) }

// Add inserts key, borrowing the handle. Duplicate inserts are no-ops.
func (s *Set) Add(r *Runtime, key Object) error {
	if s.frozen {
		return r.Raise(TypeError, "frozenset is immutable")
	}
	h, err := HashObject(r, key)
	if err != nil {
		return err
	}
	for _, i := range s.index[h] {
		eq, err := EqualObjects(r, s.entries[i].key, key)
		if err != nil {
			return err
		}
		if eq {
			return nil
		}
	}
	Incref(key)
	s.index[h] = append(s.index[h], len(s.entries))
	s.entries = append(s.entries, dictEntry{hash: h, key: key})
	return nil
}

// Contains reports membership.
func (s *Set) Contains(r *Runtime, key Object) (bool, error) {
	h, err := HashObject(r, key)
	if err != nil {
		return false, err
	}
	for _, i := range s.index[h] {
		eq, err := EqualObjects(r, s.entries[i].key, key)
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
	return false, nil
}

// Range calls fn for each element with a borrowed handle.
func (s *Set) Range(fn func(key Object) bool) {
	for _, e := range s.entries {
		if !fn(e.key) {
			return
		}
	}
}

func (s *Set) Inspect() string {
	parts := make([]string, len(s.entries))
	for i, e := range s.entries {
		parts[i] = e.key.Inspect()
	}
	if s.frozen {
		return "frozenset({" + strings.Join(parts, ", ") + "})"
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func deallocSet(o Object) {
	s := o.(*Set)
	for _, e := range s.entries {
		Decref(e.key)
	}
	s.entries = nil
	s.index = nil
}

// Hashing and equality

var nextIdentity uint32

func identityHash(h *Header) uint32 {
	if h.identity == 0 {
		nextIdentity++
		h.identity = nextIdentity
	}
	return h.identity
}

// HashObject hashes an object for dict and set buckets. Mutable containers
// are unhashable.
func HashObject(r *Runtime, o Object) (uint32, error) {
	switch v := o.(type) {
	case *NoneObject:
		return 0x9e3779b9, nil
	case *Bool:
		if v.Value {
			return 1, nil
		}
		return 0, nil
	case *Int:
		return hashString(v.Text()), nil
	case *Float:
		// Integral floats hash like the matching int, so 1.0 and 1 collide
		// into the same bucket and compare equal.
		if v.Value == math.Trunc(v.Value) && !math.IsInf(v.Value, 0) {
			return hashString(fmt.Sprintf("%.0f", v.Value)), nil
		}
		bits := math.Float64bits(v.Value)
		return uint32(bits ^ (bits >> 32)), nil
	case *Str:
		return hashString(v.Value), nil
	case *Bytes:
		return hashBytes(v.Data), nil
	case *Tuple:
		h := uint32(0x345678)
		for _, it := range v.items {
			ih, err := HashObject(r, it)
			if err != nil {
				return 0, err
			}
			h = h*1000003 ^ ih
		}
		return h, nil
	case *List, *Dict:
		return 0, r.Raise(TypeError, "unhashable type: %s", o.TypeOf().Name)
	case *Set:
		if v.frozen {
			h := uint32(0x1d244)
			for _, e := range v.entries {
				h ^= e.hash
			}
			return h, nil
		}
		return 0, r.Raise(TypeError, "unhashable type: set")
	default:
		return identityHash(o.Hdr()), nil
	}
}

// EqualObjects compares two objects for dict/set key identity. Falls back
// to handle identity for kinds without structural equality.
func EqualObjects(r *Runtime, a, b Object) (bool, error) {
	if a == b {
		return true, nil
	}
	switch av := a.(type) {
	case *Bool:
		if bv, ok := b.(*Bool); ok {
			return av.Value == bv.Value, nil
		}
	case *Int:
		switch bv := b.(type) {
		case *Int:
			return av.Text() == bv.Text(), nil
		case *Float:
			return av.Float64() == bv.Value, nil
		}
	case *Float:
		switch bv := b.(type) {
		case *Float:
			return av.Value == bv.Value, nil
		case *Int:
			return av.Value == bv.Float64(), nil
		}
	case *Str:
		if bv, ok := b.(*Str); ok {
			return av.Value == bv.Value, nil
		}
	case *Bytes:
		if bv, ok := b.(*Bytes); ok {
			return string(av.Data) == string(bv.Data), nil
		}
	case *Tuple:
		bv, ok := b.(*Tuple)
		if !ok || len(av.items) != len(bv.items) {
			return false, nil
		}
		for i := range av.items {
			eq, err := EqualObjects(r, av.items[i], bv.items[i])
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	return false, nil
}

func init() {
	ListType.Dealloc = deallocList
	TupleType.Dealloc = deallocTuple
	DictType.Dealloc = deallocDict
	SetType.Dealloc = deallocSet
	FrozenSetType.Dealloc = deallocSet
}
