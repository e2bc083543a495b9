package anthropic

import (
	"fmt"
	"io"

	"github.com/kbukum/llmstream/delta"
	"github.com/kbukum/llmstream/document"
	apperrors "github.com/kbukum/llmstream/errors"
)

// Table routes the fields of the message document. Content blocks are
// addressed by the event's index; fragments of text, tool input, thinking
// and signatures accumulate in their block.
var Table = delta.Table{
	"content": {
		Policy:     delta.Indexed,
		IndexKey:   "index",
		StripIndex: true,
		Fields: delta.Table{
			"text":         {Policy: delta.Concat, Emit: true},
			"partial_json": {Policy: delta.Concat},
			"thinking":     {Policy: delta.Concat},
			"signature":    {Policy: delta.Concat},
		},
	},
}

// Engine folds Messages API stream events into the message document a
// non-streaming call returns. Events name their own type; each is reshaped
// into a delta of the message and merged with Table.
type Engine struct {
	m *delta.Merger
}

var _ delta.Engine = (*Engine)(nil)

// NewEngine returns an Engine writing text deltas to sink.
func NewEngine(sink io.Writer) *Engine {
	return &Engine{m: delta.New(Table, delta.WithSink(sink))}
}

// Merge applies one stream event. Unknown event types are ignored.
func (e *Engine) Merge(ev *document.Value) error {
	if !ev.IsObject() {
		return fmt.Errorf("%w: got %s", delta.ErrNotObject, ev.Kind())
	}
	body := e.m.Body()
	switch ev.Get("type").Text() {
	case "message_start":
		msg := ev.Get("message")
		if !msg.IsObject() {
			return nil
		}
		return e.m.MergeInto(body, msg, Table)

	case "content_block_start":
		blk := ev.Get("content_block").Clone()
		if !blk.IsObject() {
			return nil
		}
		blk.Set("index", orZero(ev.Get("index")))
		return e.m.MergeInto(body, contentDelta(blk), Table)

	case "content_block_delta":
		d := ev.Get("delta")
		if !d.IsObject() {
			return nil
		}
		frag := document.NewObject()
		for _, k := range d.Keys() {
			if k != "type" {
				frag.Set(k, d.Get(k).Clone())
			}
		}
		frag.Set("index", orZero(ev.Get("index")))
		return e.m.MergeInto(body, contentDelta(frag), Table)

	case "content_block_stop":
		i, _ := ev.Get("index").AsInt()
		return finishBlock(body.Get("content").Index(i))

	case "message_delta":
		d := document.NewObject()
		for _, k := range ev.Get("delta").Keys() {
			d.Set(k, ev.Get("delta").Get(k).Clone())
		}
		if u := ev.Get("usage"); u.IsObject() {
			d.Set("usage", u.Clone())
		}
		return e.m.MergeInto(body, d, Table)

	case "error":
		msg := ev.Lookup("error", "message").Text()
		if msg == "" {
			msg = ev.Get("error").String()
		}
		return apperrors.ProviderError(DialectName, msg)
	}
	return nil
}

// Body returns the cumulative message document.
func (e *Engine) Body() *document.Value { return e.m.Body() }

// Emitted returns the number of text bytes written to the sink.
func (e *Engine) Emitted() int { return e.m.Emitted() }

func contentDelta(elem *document.Value) *document.Value {
	d := document.NewObject()
	d.Set("content", document.NewArray(elem))
	return d
}

func orZero(v *document.Value) *document.Value {
	if _, ok := v.AsInt(); ok {
		return v.Clone()
	}
	return document.NewInt(0)
}

// finishBlock replaces the accumulated partial_json of a tool_use block with
// the decoded input.
func finishBlock(blk *document.Value) error {
	if !blk.IsObject() || !blk.Has("partial_json") {
		return nil
	}
	raw := blk.Get("partial_json").Text()
	blk.Delete("partial_json")
	if raw == "" {
		return nil
	}
	input, err := document.Parse([]byte(raw))
	if err != nil {
		return apperrors.StreamDecode(err)
	}
	blk.Set("input", input)
	return nil
}
