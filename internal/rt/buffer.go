package rt

// BufferFlags gate which optional view fields a consumer requests.
type BufferFlags uint32

const (
	// BufSimple requests the minimal contiguous view.
	BufSimple BufferFlags = 0
	// BufFormat requests the element format string.
	BufFormat BufferFlags = 1 << iota
	// BufND requests shape information.
	BufND
	// BufStrides requests stride information (implies shape).
	BufStrides
	// BufWritable requests a mutable view.
	BufWritable
)

// BufferView describes a contiguous memory region exported by an object.
// Obj holds the reference taken for the lifetime of the view; the runtime
// releases it when the view is torn down.
type BufferView struct {
	Obj      Object
	Data     []byte
	ItemSize int
	NDim     int
	Format   string
	Shape    []int
	Strides  []int
	ReadOnly bool
}

// Len reports the byte length of the exposed region.
func (v *BufferView) Len() int { return len(v.Data) }

// GetBuffer asks o to export a view per its buffer slot table. The view
// holds a reference to o until ReleaseBuffer.
func GetBuffer(r *Runtime, o Object, flags BufferFlags) (*BufferView, error) {
	t := o.TypeOf()
	if t == nil || t.Buffer == nil || t.Buffer.GetBuffer == nil {
		return nil, r.Raise(TypeError, "a bytes-like object is required, not %q", t.Name)
	}
	return t.Buffer.GetBuffer(r, o, flags)
}

// ReleaseBuffer tears down a view, invoking the type's release slot and
// dropping the reference the view holds.
func ReleaseBuffer(r *Runtime, v *BufferView) {
	if v == nil || v.Obj == nil {
		return
	}
	t := v.Obj.TypeOf()
	if t != nil && t.Buffer != nil && t.Buffer.ReleaseBuffer != nil {
		t.Buffer.ReleaseBuffer(r, v.Obj, v)
	}
	Decref(v.Obj)
	v.Obj = nil
}
