package delta

import (
	"errors"
	"fmt"
	"io"

	"github.com/kbukum/llmstream/document"
)

// MaxSlots bounds the index accepted by Indexed fields.
const MaxSlots = 4096

// Sentinel errors.
var (
	ErrNotObject     = errors.New("delta: delta is not an object")
	ErrIndexTooLarge = errors.New("delta: slot index too large")
)

// Engine is the contract shared by every vendor merge engine.
type Engine interface {
	// Merge folds one decoded delta into the cumulative document.
	Merge(delta *document.Value) error
	// Body returns the cumulative document. Callers must not modify it.
	Body() *document.Value
}

// Merger is the table-driven Engine.
type Merger struct {
	table   Table
	body    *document.Value
	sink    io.Writer
	merges  int
	emitted int
	muted   int
}

// Option configures a Merger.
type Option func(*Merger)

// WithSink sets the writer that receives emitted text. A nil sink disables
// incremental output.
func WithSink(w io.Writer) Option {
	return func(m *Merger) { m.sink = w }
}

// WithBody sets the initial document. It must be an object.
func WithBody(body *document.Value) Option {
	return func(m *Merger) {
		if body.IsObject() {
			m.body = body
		}
	}
}

// New returns a Merger applying table, starting from an empty object.
func New(table Table, opts ...Option) *Merger {
	m := &Merger{table: table, body: document.NewObject()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Merge folds delta into the document. Top-level keys are merged in the
// order they appear in delta.
func (m *Merger) Merge(delta *document.Value) error {
	if !delta.IsObject() {
		return fmt.Errorf("%w: got %s", ErrNotObject, delta.Kind())
	}
	m.merges++
	return m.mergeObject(m.body, delta, m.table, "")
}

// Body returns the live cumulative document.
func (m *Merger) Body() *document.Value { return m.body }

// Snapshot returns a deep copy of the cumulative document.
func (m *Merger) Snapshot() *document.Value { return m.body.Clone() }

// Merges returns the number of deltas merged so far.
func (m *Merger) Merges() int { return m.merges }

// Emitted returns the number of bytes written to the sink so far.
func (m *Merger) Emitted() int { return m.emitted }

// Emit writes text to the sink. Vendor engines use it for text they assemble
// outside a Concat rule.
func (m *Merger) Emit(text string) error {
	if text == "" || m.sink == nil {
		return nil
	}
	var err error
	if sw, ok := m.sink.(io.StringWriter); ok {
		_, err = sw.WriteString(text)
	} else {
		_, err = m.sink.Write([]byte(text))
	}
	if err != nil {
		return fmt.Errorf("delta: sink write: %w", err)
	}
	m.emitted += len(text)
	return nil
}

// MergeInto folds src into the object dst using table. Vendor engines use it
// to merge reshaped payloads below the document root.
func (m *Merger) MergeInto(dst, src *document.Value, table Table) error {
	if !dst.IsObject() || !src.IsObject() {
		return ErrNotObject
	}
	return m.mergeObject(dst, src, table, "")
}

func (m *Merger) mergeObject(dst, src *document.Value, table Table, skip string) error {
	for _, key := range src.Keys() {
		if skip != "" && key == skip {
			continue
		}
		if err := m.mergeField(dst, key, src.Get(key), table); err != nil {
			return err
		}
	}
	return nil
}

func (m *Merger) mergeField(dst *document.Value, key string, in *document.Value, table Table) error {
	r, dest := table.rule(key)
	switch r.Policy {
	case Concat:
		return m.concat(dst, dest, in, r.Emit)
	case Nested:
		if in.IsNull() {
			return nil
		}
		if !in.IsObject() {
			overwrite(dst, dest, in)
			return nil
		}
		target := dst.Get(dest)
		if !target.IsObject() {
			target = dst.Set(dest, document.NewObject())
		}
		return m.mergeObject(target, in, r.Fields, "")
	case Indexed:
		return m.mergeIndexed(dst, dest, in, r)
	case Append:
		return m.mergeAppend(dst, dest, in, r)
	default:
		overwrite(dst, dest, in)
		return nil
	}
}

func (m *Merger) concat(dst *document.Value, key string, in *document.Value, emit bool) error {
	text, ok := in.AsString()
	if !ok {
		if !in.IsNull() {
			overwrite(dst, key, in)
		}
		return nil
	}
	cur := dst.Get(key)
	if cur == nil || !cur.AppendString(text) {
		dst.Set(key, document.NewString(text))
	}
	if emit && m.muted == 0 {
		return m.Emit(text)
	}
	return nil
}

// mergeElement merges one array element into target, muting the sink when
// the rule says so.
func (m *Merger) mergeElement(target, elem *document.Value, r Rule, skip string) error {
	if r.Mute != nil && r.Mute(elem) {
		m.muted++
		defer func() { m.muted-- }()
	}
	return m.mergeObject(target, elem, r.Fields, skip)
}

func (m *Merger) mergeIndexed(dst *document.Value, key string, in *document.Value, r Rule) error {
	if in.IsNull() {
		return nil
	}
	if !in.IsArray() {
		overwrite(dst, key, in)
		return nil
	}
	slots := dst.Get(key)
	if !slots.IsArray() {
		slots = dst.Set(key, document.NewArray())
	}
	skip := ""
	if r.StripIndex {
		skip = r.IndexKey
	}
	for pos, elem := range in.Items() {
		i := pos
		if r.IndexKey != "" {
			if n, ok := elem.Get(r.IndexKey).AsInt(); ok && n >= 0 {
				i = n
			}
		}
		if i >= MaxSlots {
			return fmt.Errorf("%w: %d", ErrIndexTooLarge, i)
		}
		slots.Grow(i, r.slot)
		if !elem.IsObject() {
			slots.SetIndex(i, elem.Clone())
			continue
		}
		slot := slots.Index(i)
		if !slot.IsObject() {
			slot = document.NewObject()
			slots.SetIndex(i, slot)
		}
		if err := m.mergeElement(slot, elem, r, skip); err != nil {
			return err
		}
	}
	return nil
}

func (m *Merger) mergeAppend(dst *document.Value, key string, in *document.Value, r Rule) error {
	if in.IsNull() {
		return nil
	}
	if !in.IsArray() {
		overwrite(dst, key, in)
		return nil
	}
	items := dst.Get(key)
	if !items.IsArray() {
		items = dst.Set(key, document.NewArray())
	}
	for _, elem := range in.Items() {
		if !elem.IsObject() {
			items.Push(elem.Clone())
			continue
		}
		target := items.Last()
		if r.Coalesce == nil || !target.IsObject() || !r.Coalesce(target, elem) {
			target = items.Push(document.NewObject())
		}
		if err := m.mergeElement(target, elem, r, ""); err != nil {
			return err
		}
	}
	return nil
}

// overwrite stores in under key. Two objects are merged key by key instead.
func overwrite(dst *document.Value, key string, in *document.Value) {
	cur := dst.Get(key)
	if cur.IsObject() && in.IsObject() {
		union(cur, in)
		return
	}
	dst.Set(key, in.Clone())
}

func union(dst, src *document.Value) {
	for _, k := range src.Keys() {
		overwrite(dst, k, src.Get(k))
	}
}
