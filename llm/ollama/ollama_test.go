package ollama

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/kbukum/llmstream/document"
	"github.com/kbukum/llmstream/llm"
	"github.com/kbukum/llmstream/testutil"
)

const streamBody = `{"model":"llama3","created_at":"t1","message":{"role":"assistant","content":"The"},"done":false}
{"model":"llama3","created_at":"t2","message":{"role":"assistant","content":" sky"},"done":false}
{"model":"llama3","created_at":"t3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":2}
`

const bufferedBody = `{"model":"llama3","created_at":"t3","message":{"role":"assistant","content":"The sky"},"done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":2}`

func newAdapter(t *testing.T, url string) *llm.Adapter {
	t.Helper()
	a, err := llm.NewWithDialect(Dialect{}, llm.Config{BaseURL: url, Model: "llama3"})
	if err != nil {
		t.Fatalf("NewWithDialect() error: %v", err)
	}
	return a
}

var ask = llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "Why is the sky blue?"}}}

func TestDialect_Registered(t *testing.T) {
	d, err := llm.GetDialect(DialectName)
	if err != nil {
		t.Fatalf("GetDialect() error: %v", err)
	}
	if d.Name() != "ollama" || d.StreamFormat() != llm.StreamNDJSON {
		t.Errorf("dialect = %s/%s", d.Name(), d.StreamFormat())
	}
}

func TestDialect_BuildRequest(t *testing.T) {
	body, err := Dialect{}.BuildRequest(llm.CompletionRequest{
		SystemPrompt: "be brief",
		Messages: []llm.Message{
			{Role: "user", Content: "weather?"},
			{Role: "assistant", ToolCalls: []llm.ToolCall{{Name: "get_weather", Arguments: `{"city":"Oslo"}`}}},
			{Role: "tool", Content: "sunny"},
		},
		Temperature: 0.2,
		MaxTokens:   64,
		Tools:       []llm.Tool{{Name: "get_weather", Parameters: map[string]any{"type": "object"}}},
		Stream:      true,
	})
	if err != nil {
		t.Fatalf("BuildRequest() error: %v", err)
	}
	data, _ := json.Marshal(body)
	got := string(data)

	for _, want := range []string{
		`"model":"llama3"`,
		`{"role":"system","content":"be brief"}`,
		`"tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Oslo"}}}]`,
		`"stream":true`,
		`"tools":[{"type":"function","function":{"name":"get_weather","parameters":{"type":"object"}}}]`,
		`"options":{"temperature":0.2,"num_predict":64}`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("body %s missing %s", got, want)
		}
	}
}

func TestDialect_BuildRequest_Extra(t *testing.T) {
	body, err := Dialect{}.BuildRequest(llm.CompletionRequest{
		Model:    "qwen2.5:1.5b",
		Messages: []llm.Message{{Role: "user", Content: "x"}},
		Extra:    map[string]any{"format": "json", "keep_alive": "5m"},
	})
	if err != nil {
		t.Fatalf("BuildRequest() error: %v", err)
	}
	doc, ok := body.(*document.Value)
	if !ok {
		t.Fatalf("got %T, want *document.Value", body)
	}
	if doc.Get("format").Text() != "json" || doc.Get("keep_alive").Text() != "5m" {
		t.Errorf("extra fields missing: %s", doc)
	}
	if stream, _ := doc.Get("stream").AsBool(); stream || !doc.Has("stream") {
		t.Errorf("stream must be sent as false: %s", doc)
	}
}

func TestDialect_ParseResponse_ToolCalls(t *testing.T) {
	resp, err := Dialect{}.ParseResponse(document.MustParse(`{
		"model":"llama3",
		"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Oslo"}}}]},
		"done":true,"done_reason":"stop","prompt_eval_count":3,"eval_count":4}`))
	if err != nil {
		t.Fatalf("ParseResponse() error: %v", err)
	}
	want := []llm.ToolCall{{Name: "get_weather", Arguments: `{"city":"Oslo"}`}}
	if !reflect.DeepEqual(resp.ToolCalls, want) {
		t.Errorf("got %+v, want %+v", resp.ToolCalls, want)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("TotalTokens = %d, want 7", resp.Usage.TotalTokens)
	}
}

func TestMerger_ChunkBoundaries(t *testing.T) {
	for _, size := range []int{1, 2, 3, 7, 13, 64, len(streamBody)} {
		frames := testutil.SplitEvery([]byte(streamBody), size)
		lines := make([]string, len(frames))
		for i, f := range frames {
			lines[i] = string(f)
		}
		srv := testutil.NDJSONServer(t, lines...)
		sink := &testutil.RecordingSink{}

		resp, err := newAdapter(t, srv.URL).StreamTo(context.Background(), ask, sink)
		if err != nil {
			t.Fatalf("size %d: StreamTo() error: %v", size, err)
		}
		if got, want := sink.Writes(), []string{"The", " sky"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("size %d: sink writes = %q, want %q", size, got, want)
		}
		if resp.Content != "The sky" {
			t.Fatalf("size %d: content = %q", size, resp.Content)
		}
	}
}

func TestStreamedEqualsBuffered(t *testing.T) {
	var streamFlag bool
	streamSrv := testutil.StreamServer(t, "application/x-ndjson", []string{streamBody}, func(r *http.Request, body []byte) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		streamFlag = strings.Contains(string(body), `"stream":true`)
	})
	bufferedSrv := testutil.JSONServer(t, http.StatusOK, bufferedBody)

	streamed, err := newAdapter(t, streamSrv.URL).StreamTo(context.Background(), ask, nil)
	if err != nil {
		t.Fatalf("StreamTo() error: %v", err)
	}
	buffered, err := newAdapter(t, bufferedSrv.URL).Execute(context.Background(), ask)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !streamFlag {
		t.Error("streaming request did not set stream:true")
	}

	streamed.Raw, buffered.Raw = nil, nil
	if !reflect.DeepEqual(*streamed, buffered) {
		t.Errorf("streamed = %+v\nbuffered = %+v", *streamed, buffered)
	}
	if streamed.FinishReason != "stop" || streamed.Usage.TotalTokens != 14 {
		t.Errorf("streamed = %+v", streamed)
	}
}

func TestMerger_ToolCallsAppend(t *testing.T) {
	m := Dialect{}.NewMerger(nil)
	for _, line := range []string{
		`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"a","arguments":{}}}]}}`,
		`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"b","arguments":{}}}]}}`,
	} {
		if err := m.Merge(document.MustParse(line)); err != nil {
			t.Fatalf("Merge() error: %v", err)
		}
	}
	calls := m.Body().Lookup("message", "tool_calls")
	if calls.Len() != 2 || calls.Index(1).Lookup("function", "name").Text() != "b" {
		t.Errorf("tool_calls = %s", calls)
	}
}
