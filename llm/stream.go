package llm

import (
	"github.com/kbukum/llmstream/delta"
	"github.com/kbukum/llmstream/document"
	apperrors "github.com/kbukum/llmstream/errors"
	"github.com/kbukum/llmstream/eventstream"
)

// streamState decodes frame payloads and feeds them to the merge engine.
// It lives for one streamed response.
type streamState struct {
	provider string
	engine   delta.Engine
	deltas   int
	done     bool
}

func newStreamState(provider string, engine delta.Engine) *streamState {
	return &streamState{provider: provider, engine: engine}
}

// parser returns a tokenizer wired for format.
func (s *streamState) parser(format StreamFormat) *eventstream.Parser {
	p := eventstream.NewParser()
	if format == StreamNDJSON {
		p.Register(lineVisitor{s})
	} else {
		p.Register(dataVisitor{s})
	}
	return p
}

// merge decodes one JSON payload and merges it. Payloads after the end of
// the stream are ignored.
func (s *streamState) merge(payload string) error {
	if s.done {
		return nil
	}
	doc, err := document.Parse([]byte(payload))
	if err != nil {
		return apperrors.StreamDecode(err)
	}
	if err := providerError(s.provider, doc); err != nil {
		return err
	}
	if err := s.engine.Merge(doc); err != nil {
		return err
	}
	s.deltas++
	if done, _ := doc.Get("done").AsBool(); done {
		s.done = true
	}
	return nil
}

// dataVisitor consumes SSE "data:" fields. Event names, IDs, comments and
// frame separators carry nothing the engines need; payloads name their own
// type.
type dataVisitor struct{ s *streamState }

func (v dataVisitor) Routes() eventstream.Routes {
	return eventstream.Routes{eventstream.FieldData: v.onData}
}

func (v dataVisitor) onData(ev eventstream.Event) error {
	if ev.IsEnd() {
		v.s.done = true
		return nil
	}
	if ev.IsBlank() || ev.Value == "" {
		return nil
	}
	return v.s.merge(ev.Value)
}

// lineVisitor consumes NDJSON: every non-blank line is one payload, which
// the tokenizer reports with an empty field.
type lineVisitor struct{ s *streamState }

func (v lineVisitor) Routes() eventstream.Routes { return nil }

func (v lineVisitor) OnChunk(ev eventstream.Event) error {
	if ev.Field != "" || ev.IsBlank() {
		return nil
	}
	return v.s.merge(ev.Chunk)
}
