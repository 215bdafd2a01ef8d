package rt

import "fmt"

// Capsule exports an opaque native API from one module to another. The
// datetime constructor table travels through one of these.
type Capsule struct {
	Header
	Name string
	API  interface{}
}

var CapsuleType = newStaticType("capsule")

// NewCapsule wraps api under name. Owned result.
func NewCapsule(name string, api interface{}) *Capsule {
	return &Capsule{Header: NewHeader(CapsuleType), Name: name, API: api}
}

func (c *Capsule) Inspect() string { return fmt.Sprintf("<capsule %q>", c.Name) }

// CapsuleImport imports module "mod" and returns the API carried by its
// capsule attribute attr. The result is valid for the process lifetime.
func CapsuleImport(r *Runtime, mod, attr string) (interface{}, error) {
	m, err := r.Import(mod)
	if err != nil {
		return nil, err
	}
	o := m.GetAttr(r, attr)
	if o == nil {
		return nil, r.Raise(ImportError, "module %q has no capsule %q", mod, attr)
	}
	c, ok := o.(*Capsule)
	if !ok {
		return nil, r.Raise(TypeError, "%s.%s is not a capsule", mod, attr)
	}
	return c.API, nil
}
