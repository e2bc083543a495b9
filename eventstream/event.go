package eventstream

import "strings"

// Well-known SSE field names.
const (
	FieldData  = "data"
	FieldEvent = "event"
	FieldID    = "id"
	FieldRetry = "retry"
)

// DoneSentinel is the data value OpenAI-compatible servers send as the last frame.
const DoneSentinel = "[DONE]"

// Event is one decoded line of the stream.
type Event struct {
	// Field is the name before the first colon. Empty for lines that do not
	// match the field:value grammar (NDJSON payloads, comments, blank lines).
	Field string
	// Value is the text after the colon with one leading space removed.
	Value string
	// Chunk is the raw line without its line terminator.
	Chunk string
}

// IsData reports whether the event carries a data field.
func (e Event) IsData() bool { return e.Field == FieldData }

// IsEvent reports whether the event names the type of the following data.
func (e Event) IsEvent() bool { return e.Field == FieldEvent }

// IsID reports whether the event carries an event ID.
func (e Event) IsID() bool { return e.Field == FieldID }

// IsEnd reports whether the event is the [DONE] terminator.
func (e Event) IsEnd() bool {
	return e.IsData() && strings.TrimSpace(e.Value) == DoneSentinel
}

// IsBlank reports whether the raw line is empty, i.e. an SSE frame separator.
func (e Event) IsBlank() bool { return strings.TrimSpace(e.Chunk) == "" }

// parseLine turns one raw line (terminator included or not) into an Event.
func parseLine(line []byte) Event {
	raw := strings.TrimRight(string(line), "\r\n")
	ev := Event{Chunk: raw}

	idx := strings.IndexByte(raw, ':')
	if idx <= 0 || !isFieldName(raw[:idx]) {
		return ev
	}
	ev.Field = raw[:idx]
	ev.Value = strings.TrimPrefix(raw[idx+1:], " ")
	return ev
}

// isFieldName accepts [A-Za-z0-9_-]+, which rejects JSON objects and other
// payloads that happen to contain a colon.
func isFieldName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return s != ""
}
