package httpmsg

// Field is a single header line.
type Field struct {
	Name  string
	Value string
}

// Header is an ordered multi-valued header mapping.
//
// Duplicate names are kept and insertion order is preserved. Name lookups are
// exact: "Connection" and "connection" are different keys.
type Header []Field

// Add appends a header line.
func (h *Header) Add(name, value string) {
	*h = append(*h, Field{Name: name, Value: value})
}

// Get returns the value of the first line named name.
func (h Header) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup returns the value of the first line named name and whether it exists.
func (h Header) Lookup(name string) (string, bool) {
	for _, f := range h {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns all values for name in insertion order.
func (h Header) Values(name string) []string {
	var vs []string
	for _, f := range h {
		if f.Name == name {
			vs = append(vs, f.Value)
		}
	}
	return vs
}

// Has reports whether at least one line named name exists.
func (h Header) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

// Del removes every line named name.
func (h *Header) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if f.Name != name {
			out = append(out, f)
		}
	}
	*h = out
}

// Len returns the number of header lines.
func (h Header) Len() int {
	return len(h)
}

// Clone returns a copy of the header.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	copy(out, h)
	return out
}
