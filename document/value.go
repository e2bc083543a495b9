package document

import (
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// Null is the zero kind. A nil *Value also reports Null.
	Null Kind = iota
	Bool
	Number
	String
	Object
	Array
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "null"
	}
}

// Value is one node of a document tree.
type Value struct {
	kind  Kind
	flag  bool
	num   string
	str   []byte
	keys  []string
	props map[string]*Value
	items []*Value
}

// NewNull returns a null value.
func NewNull() *Value { return &Value{} }

// NewBool returns a bool value.
func NewBool(b bool) *Value { return &Value{kind: Bool, flag: b} }

// NewNumber returns a number value from its JSON literal.
func NewNumber(literal string) *Value { return &Value{kind: Number, num: literal} }

// NewInt returns a number value holding n.
func NewInt(n int) *Value { return NewNumber(strconv.Itoa(n)) }

// NewString returns a string value.
func NewString(s string) *Value { return &Value{kind: String, str: []byte(s)} }

// NewObject returns an empty object.
func NewObject() *Value { return &Value{kind: Object, props: map[string]*Value{}} }

// NewArray returns an array holding items.
func NewArray(items ...*Value) *Value {
	v := &Value{kind: Array, items: make([]*Value, 0, len(items))}
	for _, it := range items {
		v.items = append(v.items, orNull(it))
	}
	return v
}

// Kind reports the variant held by v.
func (v *Value) Kind() Kind {
	if v == nil {
		return Null
	}
	return v.kind
}

// IsNull reports whether v is nil or null.
func (v *Value) IsNull() bool { return v.Kind() == Null }

// IsObject reports whether v is an object.
func (v *Value) IsObject() bool { return v.Kind() == Object }

// IsArray reports whether v is an array.
func (v *Value) IsArray() bool { return v.Kind() == Array }

// IsString reports whether v is a string.
func (v *Value) IsString() bool { return v.Kind() == String }

// AsBool returns the bool held by v.
func (v *Value) AsBool() (bool, bool) {
	if v.Kind() != Bool {
		return false, false
	}
	return v.flag, true
}

// AsString returns the string held by v.
func (v *Value) AsString() (string, bool) {
	if v.Kind() != String {
		return "", false
	}
	return string(v.str), true
}

// Text returns the string held by v, or "" for any other kind.
func (v *Value) Text() string {
	s, _ := v.AsString()
	return s
}

// AsInt returns the integer held by v. Fractional numbers are rejected.
func (v *Value) AsInt() (int, bool) {
	if v.Kind() != Number {
		return 0, false
	}
	n, err := strconv.Atoi(v.num)
	if err != nil {
		f, ferr := strconv.ParseFloat(v.num, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, false
		}
		return int(f), true
	}
	return n, true
}

// Int returns the integer held by v, or 0.
func (v *Value) Int() int {
	n, _ := v.AsInt()
	return n
}

// AsFloat returns the number held by v as a float64.
func (v *Value) AsFloat() (float64, bool) {
	if v.Kind() != Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.num, 64)
	return f, err == nil
}

// Literal returns the JSON literal of a number value.
func (v *Value) Literal() string {
	if v.Kind() != Number {
		return ""
	}
	return v.num
}

// AppendString extends a string value in place. A null value becomes a string.
// It reports false when v holds any other kind.
func (v *Value) AppendString(s string) bool {
	switch v.kind {
	case Null:
		v.kind = String
		v.str = append(v.str[:0], s...)
		return true
	case String:
		v.str = append(v.str, s...)
		return true
	default:
		return false
	}
}

// --- objects ---

// Get returns the member named key, or nil when v is not an object or lacks key.
func (v *Value) Get(key string) *Value {
	if v.Kind() != Object {
		return nil
	}
	return v.props[key]
}

// Has reports whether the object v has a member named key.
func (v *Value) Has(key string) bool {
	if v.Kind() != Object {
		return false
	}
	_, ok := v.props[key]
	return ok
}

// Set stores child under key and returns child. Existing keys keep their
// position. Set panics if v is not an object.
func (v *Value) Set(key string, child *Value) *Value {
	if v.Kind() != Object {
		panic("document: Set on " + v.Kind().String())
	}
	child = orNull(child)
	if _, ok := v.props[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.props[key] = child
	return child
}

// Delete removes key from the object v.
func (v *Value) Delete(key string) {
	if v.Kind() != Object {
		return
	}
	if _, ok := v.props[key]; !ok {
		return
	}
	delete(v.props, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the object's keys in insertion order.
func (v *Value) Keys() []string {
	if v.Kind() != Object {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// --- arrays ---

// Len returns the number of members of an object or items of an array.
func (v *Value) Len() int {
	switch v.Kind() {
	case Object:
		return len(v.keys)
	case Array:
		return len(v.items)
	default:
		return 0
	}
}

// Index returns the i-th item, or nil when out of range or v is not an array.
func (v *Value) Index(i int) *Value {
	if v.Kind() != Array || i < 0 || i >= len(v.items) {
		return nil
	}
	return v.items[i]
}

// Items returns the array items. The slice is a copy; the items are shared.
func (v *Value) Items() []*Value {
	if v.Kind() != Array {
		return nil
	}
	out := make([]*Value, len(v.items))
	copy(out, v.items)
	return out
}

// Push appends item to the array v and returns it. Push panics if v is not an array.
func (v *Value) Push(item *Value) *Value {
	if v.Kind() != Array {
		panic("document: Push on " + v.Kind().String())
	}
	item = orNull(item)
	v.items = append(v.items, item)
	return item
}

// Last returns the last item of the array v, or nil.
func (v *Value) Last() *Value {
	if v.Kind() != Array || len(v.items) == 0 {
		return nil
	}
	return v.items[len(v.items)-1]
}

// Grow extends the array so that index i is addressable, filling every new
// position with fill(position). Existing items are never moved.
func (v *Value) Grow(i int, fill func(int) *Value) {
	if v.Kind() != Array {
		panic("document: Grow on " + v.Kind().String())
	}
	for len(v.items) <= i {
		v.items = append(v.items, orNull(fill(len(v.items))))
	}
}

// SetIndex replaces the i-th item. The array must already hold index i.
func (v *Value) SetIndex(i int, item *Value) {
	if v.Kind() != Array || i < 0 || i >= len(v.items) {
		panic("document: SetIndex out of range")
	}
	v.items[i] = orNull(item)
}

// --- navigation ---

// Lookup walks path, where each element is a string (object key) or int
// (array index). It returns nil as soon as a step does not resolve.
func (v *Value) Lookup(path ...any) *Value {
	cur := v
	for _, step := range path {
		switch s := step.(type) {
		case string:
			cur = cur.Get(s)
		case int:
			cur = cur.Index(s)
		default:
			return nil
		}
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return NewNull()
	}
	out := &Value{kind: v.kind, flag: v.flag, num: v.num}
	switch v.kind {
	case String:
		out.str = append([]byte(nil), v.str...)
	case Object:
		out.keys = make([]string, len(v.keys))
		copy(out.keys, v.keys)
		out.props = make(map[string]*Value, len(v.props))
		for k, child := range v.props {
			out.props[k] = child.Clone()
		}
	case Array:
		out.items = make([]*Value, len(v.items))
		for i, it := range v.items {
			out.items[i] = it.Clone()
		}
	}
	return out
}

// Equal reports whether v and other hold the same tree. Object key order is
// ignored; numbers compare by value.
func (v *Value) Equal(other *Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	switch v.Kind() {
	case Null:
		return true
	case Bool:
		return v.flag == other.flag
	case Number:
		if v.num == other.num {
			return true
		}
		a, aok := v.AsFloat()
		b, bok := other.AsFloat()
		return aok && bok && a == b
	case String:
		return string(v.str) == string(other.str)
	case Object:
		if len(v.props) != len(other.props) {
			return false
		}
		for k, child := range v.props {
			oc, ok := other.props[k]
			if !ok || !child.Equal(oc) {
				return false
			}
		}
		return true
	case Array:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func orNull(v *Value) *Value {
	if v == nil {
		return NewNull()
	}
	return v
}
