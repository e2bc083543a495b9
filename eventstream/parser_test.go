package eventstream

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/kbukum/llmstream/testutil"
)

// recorder is a visitor that records every event it sees.
type recorder struct {
	routes Routes
	events []Event
	chunks []Event
}

func newRecorder(fields ...string) *recorder {
	r := &recorder{routes: Routes{}}
	for _, f := range fields {
		r.routes[f] = func(ev Event) error {
			r.events = append(r.events, ev)
			return nil
		}
	}
	return r
}

func (r *recorder) Routes() Routes { return r.routes }

// chunkRecorder adds the fallback capability to recorder.
type chunkRecorder struct{ *recorder }

func (c chunkRecorder) OnChunk(ev Event) error {
	c.chunks = append(c.chunks, ev)
	return nil
}

const sampleStream = "event: delta\ndata: {\"content\":\"Hi\"}\n\n" +
	"event: delta\ndata: {\"content\":\" there\"}\n\n" +
	": keepalive\n" +
	"data: [DONE]\n\n"

func collect(t *testing.T, chunks [][]byte) []Event {
	t.Helper()
	p := NewParser()
	var got []Event
	p.Register(&funcVisitor{fn: func(ev Event) error {
		got = append(got, ev)
		return nil
	}})
	for _, c := range chunks {
		if _, err := p.Write(c); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	return got
}

// funcVisitor sends every event to fn through the fallback.
type funcVisitor struct{ fn Handler }

func (f *funcVisitor) Routes() Routes         { return nil }
func (f *funcVisitor) OnChunk(ev Event) error { return f.fn(ev) }

func TestParser_ChunkBoundaryInvariance(t *testing.T) {
	data := []byte(sampleStream)
	want := collect(t, [][]byte{data})
	if len(want) != 9 {
		t.Fatalf("single write produced %d events, want 9", len(want))
	}

	for size := 1; size <= len(data); size++ {
		got := collect(t, testutil.SplitEvery(data, size))
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("chunk size %d: events differ\n got: %+v\nwant: %+v", size, got, want)
		}
	}
	for seed := int64(0); seed < 50; seed++ {
		got := collect(t, testutil.SplitRandom(data, seed))
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("seed %d: events differ", seed)
		}
	}
}

func TestParser_NoLossNoDuplication(t *testing.T) {
	lines := []string{"data: one", "data: two", "data: three", "data: four"}
	stream := []byte(strings.Join(lines, "\n") + "\n")

	for seed := int64(0); seed < 20; seed++ {
		var payloads []string
		p := NewParser()
		p.On(FieldData, func(ev Event) error {
			payloads = append(payloads, ev.Value)
			return nil
		})
		for _, c := range testutil.SplitRandom(stream, seed) {
			_, _ = p.Write(c)
		}
		_ = p.Flush()
		if got := strings.Join(payloads, ","); got != "one,two,three,four" {
			t.Errorf("seed %d: payloads = %q", seed, got)
		}
	}
}

func TestParser_PartialLineStaysBuffered(t *testing.T) {
	p := NewParser()
	var got []string
	p.On(FieldData, func(ev Event) error {
		got = append(got, ev.Value)
		return nil
	})

	_, _ = p.Write([]byte("data: hel"))
	if len(got) != 0 {
		t.Fatalf("partial line dispatched early: %v", got)
	}
	if string(p.Body()) != "data: hel" {
		t.Errorf("Body() = %q", p.Body())
	}

	_, _ = p.Write([]byte("lo\ndata: x"))
	if !reflect.DeepEqual(got, []string{"hello"}) {
		t.Fatalf("got %v, want [hello]", got)
	}
	if string(p.Body()) != "data: x" {
		t.Errorf("Body() after compaction = %q", p.Body())
	}
}

func TestParser_FlushDispatchesTrailingRemainder(t *testing.T) {
	p := NewParser()
	var got []string
	p.On(FieldData, func(ev Event) error {
		got = append(got, ev.Value)
		return nil
	})
	_, _ = p.Write([]byte("data: a\ndata: b"))
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("got %v", got)
	}
	if len(p.Body()) != 0 {
		t.Errorf("Body() = %q, want empty", p.Body())
	}
	if err := p.Flush(); err != nil || len(got) != 2 {
		t.Errorf("second Flush dispatched again: %v", got)
	}
}

func TestParser_FanOutOrder(t *testing.T) {
	p := NewParser()
	var order []string
	p.On(FieldData, func(Event) error {
		order = append(order, "sub1")
		return nil
	})
	p.Register(&funcVisitor{fn: func(Event) error {
		order = append(order, "visitor1")
		return nil
	}})
	p.On(FieldData, func(Event) error {
		order = append(order, "sub2")
		return nil
	})
	p.Register(&funcVisitor{fn: func(Event) error {
		order = append(order, "visitor2")
		return nil
	}})

	_, _ = p.Write([]byte("data: x\n"))
	want := []string{"visitor1", "visitor2", "sub1", "sub2"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestParser_RoutesAndFallback(t *testing.T) {
	routed := newRecorder(FieldData)
	withFallback := chunkRecorder{newRecorder(FieldEvent)}
	dropOnly := newRecorder()

	p := NewParser()
	p.Register(routed)
	p.Register(withFallback)
	p.Register(dropOnly)

	_, _ = p.Write([]byte("event: ping\ndata: 1\n{\"model\":\"x\"}\n"))

	if len(routed.events) != 1 || routed.events[0].Value != "1" {
		t.Errorf("routed visitor events = %+v", routed.events)
	}
	if len(withFallback.events) != 1 || withFallback.events[0].Value != "ping" {
		t.Errorf("routed event = %+v", withFallback.events)
	}
	if len(withFallback.chunks) != 2 {
		t.Fatalf("fallback got %d events, want 2", len(withFallback.chunks))
	}
	if ev := withFallback.chunks[1]; ev.Field != "" || ev.Chunk != `{"model":"x"}` {
		t.Errorf("NDJSON line = %+v", ev)
	}
	if len(dropOnly.events) != 0 {
		t.Errorf("visitor without routes received events")
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Event
	}{
		{"data: hello\n", Event{Field: "data", Value: "hello", Chunk: "data: hello"}},
		{"data:hello\r\n", Event{Field: "data", Value: "hello", Chunk: "data:hello"}},
		{"data:  two spaces", Event{Field: "data", Value: " two spaces", Chunk: "data:  two spaces"}},
		{"event:", Event{Field: "event", Value: "", Chunk: "event:"}},
		{": comment\n", Event{Chunk: ": comment"}},
		{"\n", Event{Chunk: ""}},
		{"no colon here\n", Event{Chunk: "no colon here"}},
		{`{"a":1}`, Event{Chunk: `{"a":1}`}},
		{"data: {\"a\":\"b:c\"}", Event{Field: "data", Value: `{"a":"b:c"}`, Chunk: `data: {"a":"b:c"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := parseLine([]byte(tt.line)); got != tt.want {
				t.Errorf("parseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestEvent_Predicates(t *testing.T) {
	if !parseLine([]byte("data: [DONE]\n")).IsEnd() {
		t.Error("IsEnd() = false for [DONE]")
	}
	if parseLine([]byte("id: [DONE]\n")).IsEnd() {
		t.Error("IsEnd() = true for id field")
	}
	if !parseLine([]byte("\r\n")).IsBlank() {
		t.Error("IsBlank() = false for CRLF")
	}
	if !parseLine([]byte("id: 7")).IsID() || !parseLine([]byte("event: x")).IsEvent() {
		t.Error("field predicates mismatch")
	}
}

func TestParser_HandlerErrorStopsPass(t *testing.T) {
	boom := errors.New("boom")
	p := NewParser()
	var seen []string
	p.On(FieldData, func(ev Event) error {
		seen = append(seen, ev.Value)
		if ev.Value == "bad" {
			return boom
		}
		return nil
	})

	_, err := p.Write([]byte("data: ok\ndata: bad\ndata: later\n"))
	if !errors.Is(err, boom) {
		t.Fatalf("Write() error = %v, want boom", err)
	}
	if !reflect.DeepEqual(seen, []string{"ok", "bad"}) {
		t.Errorf("seen = %v", seen)
	}
	if string(p.Body()) != "data: later\n" {
		t.Errorf("Body() = %q", p.Body())
	}
}

func TestParser_Free(t *testing.T) {
	p := NewParser()
	_, _ = p.Write([]byte("data: partial"))
	p.Free()
	if len(p.Body()) != 0 {
		t.Errorf("Body() after Free = %q", p.Body())
	}
	var got []string
	p.On(FieldData, func(ev Event) error {
		got = append(got, ev.Value)
		return nil
	})
	_, _ = p.Write([]byte("data: next\n"))
	if !reflect.DeepEqual(got, []string{"next"}) {
		t.Errorf("got %v", got)
	}
}

// failingReader returns its data, then err.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestParser_ReadFrom(t *testing.T) {
	p := NewParser()
	var got []string
	p.On(FieldData, func(ev Event) error {
		got = append(got, ev.Value)
		return nil
	})
	n, err := p.ReadFrom(strings.NewReader("data: a\n\ndata: b"))
	if err != nil {
		t.Fatalf("ReadFrom() error: %v", err)
	}
	if n != 16 {
		t.Errorf("ReadFrom() n = %d, want 16", n)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("got %v", got)
	}
	if p.Events() != 3 {
		t.Errorf("Events() = %d, want 3", p.Events())
	}
}

func TestParser_ReadFromPropagatesTransportError(t *testing.T) {
	reset := errors.New("connection reset")
	p := NewParser()
	var got []string
	p.On(FieldData, func(ev Event) error {
		got = append(got, ev.Value)
		return nil
	})
	_, err := p.ReadFrom(&failingReader{data: []byte("data: a\ndata: partial"), err: reset})
	if !errors.Is(err, reset) {
		t.Fatalf("ReadFrom() error = %v, want %v", err, reset)
	}
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("got %v; partial line must not be flushed on failure", got)
	}
	if err == io.EOF {
		t.Error("transport error masked as EOF")
	}
}
