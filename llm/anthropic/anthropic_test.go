package anthropic

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/kbukum/llmstream/document"
	apperrors "github.com/kbukum/llmstream/errors"
	"github.com/kbukum/llmstream/llm"
	"github.com/kbukum/llmstream/testutil"
)

func frame(event, data string) string {
	return "event: " + event + "\ndata: " + data + "\n\n"
}

var textFrames = []string{
	frame("message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-3-5-sonnet-latest","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":25,"output_tokens":1}}}`),
	frame("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
	frame("ping", `{"type":"ping"}`),
	frame("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`),
	frame("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}`),
	frame("content_block_stop", `{"type":"content_block_stop","index":0}`),
	frame("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":15}}`),
	frame("message_stop", `{"type":"message_stop"}`),
}

const textBuffered = `{"id":"msg_1","type":"message","role":"assistant",
	"content":[{"type":"text","text":"Hello world"}],
	"model":"claude-3-5-sonnet-latest","stop_reason":"end_turn","stop_sequence":null,
	"usage":{"input_tokens":25,"output_tokens":15}}`

var toolFrames = []string{
	frame("message_start", `{"type":"message_start","message":{"id":"msg_2","type":"message","role":"assistant","content":[],"model":"claude-3-5-sonnet-latest","usage":{"input_tokens":40,"output_tokens":1}}}`),
	frame("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`),
	frame("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Need weather."}}`),
	frame("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"sig"}}`),
	frame("content_block_stop", `{"type":"content_block_stop","index":0}`),
	frame("content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{}}}`),
	frame("content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"city\": "}}`),
	frame("content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"Oslo\"}"}}`),
	frame("content_block_stop", `{"type":"content_block_stop","index":1}`),
	frame("message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":30}}`),
	frame("message_stop", `{"type":"message_stop"}`),
}

func newAdapter(t *testing.T, url string) *llm.Adapter {
	t.Helper()
	a, err := llm.NewWithDialect(Dialect{}, llm.Config{BaseURL: url, APIKey: "ak-test"})
	if err != nil {
		t.Fatalf("NewWithDialect() error: %v", err)
	}
	return a
}

var ask = llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "Hi"}}}

func TestDialect_BuildRequest(t *testing.T) {
	body, err := Dialect{}.BuildRequest(llm.CompletionRequest{
		SystemPrompt: "be brief",
		Messages: []llm.Message{
			{Role: "system", Content: "use metric units"},
			{Role: "user", Content: "weather?"},
			{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "toolu_1", Name: "get_weather", Arguments: `{"city":"Oslo"}`}}},
			{Role: "tool", Content: "sunny", ToolCallID: "toolu_1"},
			{Role: "user", Content: "thanks"},
		},
		Tools: []llm.Tool{{Name: "get_weather"}},
	})
	if err != nil {
		t.Fatalf("BuildRequest() error: %v", err)
	}
	data, _ := json.Marshal(body)
	got := string(data)
	for _, want := range []string{
		`"model":"` + DefaultModel + `"`,
		`"max_tokens":1024`,
		`"system":"be brief\n\nuse metric units"`,
		`{"role":"assistant","content":[{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"Oslo"}}]}`,
		`{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"sunny"},{"type":"text","text":"thanks"}]}`,
		`"tools":[{"name":"get_weather","input_schema":{"type":"object"}}]`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("body %s\nmissing %s", got, want)
		}
	}
	if strings.Contains(got, `"stream"`) {
		t.Errorf("buffered body %s must not mention stream", got)
	}
}

func TestStreamTo_Text(t *testing.T) {
	var header http.Header
	srv := testutil.StreamServer(t, "text/event-stream", textFrames, func(r *http.Request, _ []byte) {
		header = r.Header.Clone()
	})
	sink := &testutil.RecordingSink{}

	resp, err := newAdapter(t, srv.URL).StreamTo(context.Background(), ask, sink)
	if err != nil {
		t.Fatalf("StreamTo() error: %v", err)
	}
	if got, want := sink.Writes(), []string{"Hello", " world"}; !reflect.DeepEqual(got, want) {
		t.Errorf("sink writes = %q, want %q", got, want)
	}
	if resp.Content != "Hello world" || resp.FinishReason != "end_turn" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Usage.PromptTokens != 25 || resp.Usage.CompletionTokens != 15 || resp.Usage.TotalTokens != 40 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if header.Get("x-api-key") != "ak-test" || header.Get("anthropic-version") != APIVersion {
		t.Errorf("headers = %v", header)
	}
}

func TestStreamedDocumentEqualsBuffered(t *testing.T) {
	all := strings.Join(textFrames, "")
	for _, size := range []int{1, 9, 64, len(all)} {
		var frames []string
		for _, f := range testutil.SplitEvery([]byte(all), size) {
			frames = append(frames, string(f))
		}
		srv := testutil.SSEServer(t, frames...)
		streamed, err := newAdapter(t, srv.URL).StreamTo(context.Background(), ask, nil)
		if err != nil {
			t.Fatalf("size %d: StreamTo() error: %v", size, err)
		}
		buffered := document.MustParse(textBuffered)
		if !streamed.Raw.Equal(buffered) {
			t.Errorf("size %d: streamed %s\nwant %s", size, streamed.Raw, buffered)
		}
	}
}

func TestStreamTo_ToolUse(t *testing.T) {
	srv := testutil.SSEServer(t, toolFrames...)
	sink := &testutil.RecordingSink{}

	resp, err := newAdapter(t, srv.URL).StreamTo(context.Background(), ask, sink)
	if err != nil {
		t.Fatalf("StreamTo() error: %v", err)
	}
	if len(sink.Writes()) != 0 {
		t.Errorf("unexpected text %q", sink.Writes())
	}
	want := []llm.ToolCall{{ID: "toolu_1", Name: "get_weather", Arguments: `{"city":"Oslo"}`}}
	if !reflect.DeepEqual(resp.ToolCalls, want) {
		t.Errorf("got %+v, want %+v", resp.ToolCalls, want)
	}
	if resp.Choices[0].Reasoning != "Need weather." || resp.FinishReason != "tool_use" {
		t.Errorf("response = %+v", resp)
	}
	blk := resp.Raw.Lookup("content", 1)
	if blk.Has("partial_json") || blk.Has("index") {
		t.Errorf("tool block = %s", blk)
	}
	if got := resp.Raw.Lookup("content", 0, "signature").Text(); got != "sig" {
		t.Errorf("got %q, want %q", got, "sig")
	}
}

func TestEngine_Errors(t *testing.T) {
	tests := []struct {
		name   string
		events []string
		code   apperrors.ErrorCode
	}{
		{
			name: "bad tool input",
			events: []string{
				`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"t","name":"f","input":{}}}`,
				`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"a\":"}}`,
				`{"type":"content_block_stop","index":0}`,
			},
			code: apperrors.ErrCodeStreamDecode,
		},
		{
			name:   "error event",
			events: []string{`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`},
			code:   apperrors.ErrCodeProvider,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(nil)
			var err error
			for _, ev := range tt.events {
				if err = e.Merge(document.MustParse(ev)); err != nil {
					break
				}
			}
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) || appErr.Code != tt.code {
				t.Errorf("got %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestEngine_IgnoresUnknownEvents(t *testing.T) {
	e := NewEngine(nil)
	for _, ev := range []string{`{"type":"ping"}`, `{"type":"message_stop"}`, `{"type":"future_event","x":1}`} {
		if err := e.Merge(document.MustParse(ev)); err != nil {
			t.Fatalf("Merge(%s) error: %v", ev, err)
		}
	}
	if e.Body().Len() != 0 {
		t.Errorf("body = %s, want {}", e.Body())
	}
	if err := e.Merge(document.MustParse(`[1]`)); err == nil {
		t.Error("expected error for non-object event")
	}
}

func TestExecute(t *testing.T) {
	srv := testutil.JSONServer(t, http.StatusOK, textBuffered)
	resp, err := newAdapter(t, srv.URL).Execute(context.Background(), ask)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if resp.Content != "Hello world" || resp.Model != "claude-3-5-sonnet-latest" || resp.Usage.TotalTokens != 40 {
		t.Errorf("response = %+v", resp)
	}
}
