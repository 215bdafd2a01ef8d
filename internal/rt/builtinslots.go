package rt

// Protocol slot tables for the builtin container types. Heap types layered
// over a builtin substrate inherit these at registration.

func listLen(r *Runtime, self Object) (int, error) {
	return self.(*List).Len(), nil
}

func listGetItem(r *Runtime, self, key Object) (Object, error) {
	l := self.(*List)
	i, err := indexOf(r, key, l.Len())
	if err != nil {
		return nil, err
	}
	return NewRef(l.Get(i)), nil
}

func listSetItem(r *Runtime, self, key Object, value Object) error {
	l := self.(*List)
	i, err := indexOf(r, key, l.Len())
	if err != nil {
		return err
	}
	if value == nil {
		return r.Raise(TypeError, "list does not support item deletion here")
	}
	Incref(value)
	l.SetItemSteal(i, value)
	return nil
}

func indexOf(r *Runtime, key Object, n int) (int, error) {
	k, ok := key.(*Int)
	if !ok {
		return 0, r.Raise(TypeError, "indices must be integers, not %s", key.TypeOf().Name)
	}
	v, fits := k.Int64()
	if !fits {
		return 0, r.Raise(IndexError, "index out of range")
	}
	i := int(v)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, r.Raise(IndexError, "index out of range")
	}
	return i, nil
}

func dictLen(r *Runtime, self Object) (int, error) {
	return self.(*Dict).Len(), nil
}

func dictGetItem(r *Runtime, self, key Object) (Object, error) {
	d := self.(*Dict)
	v, err := d.GetItem(r, key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, r.Raise(KeyError, "%s", key.Inspect())
	}
	return NewRef(v), nil
}

func dictSetItem(r *Runtime, self, key Object, value Object) error {
	d := self.(*Dict)
	if value == nil {
		found, err := d.Delete(r, key)
		if err != nil {
			return err
		}
		if !found {
			return r.Raise(KeyError, "%s", key.Inspect())
		}
		return nil
	}
	return d.SetItem(r, key, value)
}

func tupleLen(r *Runtime, self Object) (int, error) {
	return self.(*Tuple).Len(), nil
}

func tupleGetItem(r *Runtime, self, key Object) (Object, error) {
	t := self.(*Tuple)
	i, err := indexOf(r, key, t.Len())
	if err != nil {
		return nil, err
	}
	return NewRef(t.Get(i)), nil
}

// seqIterator walks a list or tuple snapshot.
type seqIterator struct {
	Header
	seq Object
	i   int
}

var seqIteratorType = newStaticType("iterator")

func (it *seqIterator) Inspect() string { return "<iterator>" }

func newSeqIter(r *Runtime, self Object) (Object, error) {
	Incref(self)
	return &seqIterator{Header: NewHeader(seqIteratorType), seq: self}, nil
}

func seqIterNext(r *Runtime, self Object) (Object, error) {
	it := self.(*seqIterator)
	var n int
	var get func(int) Object
	switch s := it.seq.(type) {
	case *List:
		n, get = s.Len(), s.Get
	case *Tuple:
		n, get = s.Len(), s.Get
	default:
		return nil, r.Raise(TypeError, "corrupt iterator")
	}
	if it.i >= n {
		return nil, r.Raise(StopIteration, "")
	}
	v := get(it.i)
	it.i++
	return NewRef(v), nil
}

func bytesBuffer(r *Runtime, self Object, flags BufferFlags) (*BufferView, error) {
	b := self.(*Bytes)
	Incref(self)
	v := &BufferView{Obj: self, Data: b.Data, ItemSize: 1, NDim: 1, ReadOnly: true}
	if flags&BufFormat != 0 {
		v.Format = "B"
	}
	if flags&(BufND|BufStrides) != 0 {
		v.Shape = []int{len(b.Data)}
	}
	if flags&BufStrides != 0 {
		v.Strides = []int{1}
	}
	return v, nil
}

func init() {
	ListType.Mapping = &MappingSlots{Length: listLen, GetItem: listGetItem, SetItem: listSetItem}
	ListType.Iter = newSeqIter
	TupleType.Mapping = &MappingSlots{Length: tupleLen, GetItem: tupleGetItem}
	TupleType.Iter = newSeqIter
	DictType.Mapping = &MappingSlots{Length: dictLen, GetItem: dictGetItem, SetItem: dictSetItem}
	BytesType.Buffer = &BufferSlots{GetBuffer: bytesBuffer}
	seqIteratorType.IterNext = seqIterNext
	seqIteratorType.Iter = func(r *Runtime, self Object) (Object, error) { return NewRef(self), nil }
	seqIteratorType.Dealloc = func(o Object) {
		it := o.(*seqIterator)
		XDecref(it.seq)
		it.seq = nil
	}
}
