package delta

import "github.com/kbukum/llmstream/document"

// Policy selects how an incoming field is folded into the stored one.
type Policy int

const (
	// Overwrite stores the incoming value, last write wins. When both the
	// stored and the incoming value are objects they are merged key by key.
	Overwrite Policy = iota
	// Concat appends an incoming string to the stored string.
	Concat
	// Nested merges an incoming object into the stored object with Rule.Fields.
	Nested
	// Indexed merges the elements of an incoming array into index-addressed
	// slots of the stored array.
	Indexed
	// Append adds the elements of an incoming array to the stored array,
	// optionally coalescing an element into the previous one.
	Append
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Concat:
		return "concat"
	case Nested:
		return "nested"
	case Indexed:
		return "indexed"
	case Append:
		return "append"
	default:
		return "overwrite"
	}
}

// Rule is the merge policy of one field.
type Rule struct {
	Policy Policy

	// Emit sends every appended fragment of a Concat field to the sink.
	Emit bool

	// Into stores the field under another key ("delta" merged into "message").
	Into string

	// Fields routes the members of a Nested object, or of the elements of an
	// Indexed or Append array.
	Fields Table

	// IndexKey names the element member holding the slot index. Elements
	// without a valid index use their position in the incoming array.
	IndexKey string

	// StripIndex keeps IndexKey out of the stored slot.
	StripIndex bool

	// Slot builds the default shape of slot i, used for new slots and gaps.
	// Nil means an empty object.
	Slot func(i int) *document.Value

	// Coalesce reports whether an incoming Append element continues the last
	// stored element and should be merged into it.
	Coalesce func(last, next *document.Value) bool

	// Mute reports whether an incoming Indexed or Append element is merged
	// without sending its Emit fields to the sink, as for reasoning parts.
	Mute func(elem *document.Value) bool
}

// Table maps field names to rules. Fields not in the table use Overwrite.
type Table map[string]Rule

// rule returns the rule for key and the destination key.
func (t Table) rule(key string) (Rule, string) {
	r, ok := t[key]
	if !ok {
		return Rule{}, key
	}
	if r.Into != "" {
		return r, r.Into
	}
	return r, key
}

func (r Rule) slot(i int) *document.Value {
	if r.Slot != nil {
		if v := r.Slot(i); v != nil {
			return v
		}
	}
	return document.NewObject()
}
