package rt

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// None

// NoneObject is the type of the None singleton.
type NoneObject struct{ Header }

func (n *NoneObject) Inspect() string { return "None" }

// NotImplementedObject is the type of the NotImplemented singleton returned
// by binary protocol slots that decline an operand pairing.
type NotImplementedObject struct{ Header }

func (n *NotImplementedObject) Inspect() string { return "NotImplemented" }

var (
	NoneType           = newStaticType("NoneType")
	NotImplementedType = newStaticType("NotImplementedType")

	// None is the absent-value singleton. Borrowed by default; callers
	// returning it across an owned boundary must Incref first.
	None = &NoneObject{Header: immortalHeader(NoneType)}

	// NotImplemented signals "slot declines this operand pairing".
	NotImplemented = &NotImplementedObject{Header: immortalHeader(NotImplementedType)}
)

// IsNone reports whether o is the None singleton.
func IsNone(o Object) bool { return o == Object(None) }

// Bool

// Bool is the boolean object kind. Only the True and False singletons exist.
type Bool struct {
	Header
	Value bool
}

func (b *Bool) Inspect() string {
	if b.Value {
		return "True"
	}
	return "False"
}

var (
	BoolType = newStaticType("bool")
	True     = &Bool{Header: immortalHeader(BoolType), Value: true}
	False    = &Bool{Header: immortalHeader(BoolType), Value: false}
)

// NewBool returns an owned reference to the canonical singleton for v.
func NewBool(v bool) *Bool {
	if v {
		Incref(True)
		return True
	}
	Incref(False)
	return False
}

// Int

// Int is the integer object kind. Values that fit in 64 bits live in the
// fast field; wider values carry the big form and Big is non-nil.
type Int struct {
	Header
	fast int64
	big  *big.Int
}

var IntType = newStaticType("int")

// NewInt creates an integer from a signed 64-bit value. Owned result.
func NewInt(v int64) *Int {
	return &Int{Header: NewHeader(IntType), fast: v}
}

// NewUint creates an integer from an unsigned 64-bit value. Owned result.
func NewUint(v uint64) *Int {
	if v <= math.MaxInt64 {
		return NewInt(int64(v))
	}
	return &Int{Header: NewHeader(IntType), big: new(big.Int).SetUint64(v)}
}

// NewIntFromString parses a decimal string into an integer. This is the
// widening path for native integers wider than 64 bits.
func NewIntFromString(s string) (*Int, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewInt(v), nil
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer literal %q", s)
	}
	return &Int{Header: NewHeader(IntType), big: b}, nil
}

// Int64 returns the value and whether it fits in 64 signed bits.
func (i *Int) Int64() (int64, bool) {
	if i.big == nil {
		return i.fast, true
	}
	if i.big.IsInt64() {
		return i.big.Int64(), true
	}
	return 0, false
}

// Uint64 returns the value and whether it fits in 64 unsigned bits.
func (i *Int) Uint64() (uint64, bool) {
	if i.big == nil {
		if i.fast < 0 {
			return 0, false
		}
		return uint64(i.fast), true
	}
	if i.big.IsUint64() {
		return i.big.Uint64(), true
	}
	return 0, false
}

// Text returns the canonical decimal form, for the wide-integer path.
func (i *Int) Text() string {
	if i.big != nil {
		return i.big.String()
	}
	return strconv.FormatInt(i.fast, 10)
}

// Float64 returns the value widened to a double.
func (i *Int) Float64() float64 {
	if i.big != nil {
		f, _ := new(big.Float).SetInt(i.big).Float64()
		return f
	}
	return float64(i.fast)
}

func (i *Int) Inspect() string { return i.Text() }

// Float

// Float is the double-precision float object kind.
type Float struct {
	Header
	Value float64
}

var FloatType = newStaticType("float")

// NewFloat creates a float object. Owned result.
func NewFloat(v float64) *Float {
	return &Float{Header: NewHeader(FloatType), Value: v}
}

func (f *Float) Inspect() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

// Complex

// Complex is the complex-number object kind, a real/imaginary double pair.
type Complex struct {
	Header
	Real float64
	Imag float64
}

var ComplexType = newStaticType("complex")

// NewComplex creates a complex object. Owned result.
func NewComplex(re, im float64) *Complex {
	return &Complex{Header: NewHeader(ComplexType), Real: re, Imag: im}
}

func (c *Complex) Inspect() string { return fmt.Sprintf("(%g+%gj)", c.Real, c.Imag) }

// Str

// Str is the text object kind.
type Str struct {
	Header
	Value string
}

var StrType = newStaticType("str")

// NewStr creates a string object. Owned result.
func NewStr(s string) *Str {
	return &Str{Header: NewHeader(StrType), Value: s}
}

func (s *Str) Inspect() string { return strconv.Quote(s.Value) }

// Bytes

// Bytes is the byte-buffer object kind. Data is owned by the object.
type Bytes struct {
	Header
	Data []byte
}

var BytesType = newStaticType("bytes")

// NewBytes creates a bytes object copying b. Owned result.
func NewBytes(b []byte) *Bytes {
	data := make([]byte, len(b))
	copy(data, b)
	return &Bytes{Header: NewHeader(BytesType), Data: data}
}

func (b *Bytes) Inspect() string { return fmt.Sprintf("b%q", b.Data) }
