package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	apperrors "github.com/kbukum/llmstream/errors"
	"github.com/kbukum/llmstream/llm"
	"github.com/kbukum/llmstream/logger"
	"github.com/kbukum/llmstream/observability"
	"github.com/kbukum/llmstream/version"
)

// Routes served by the relay.
const (
	StreamPath = "/v1/stream"
	HealthPath = "/healthz"
)

// SSE event names written by Handler.
const (
	EventDelta = "delta"
	EventDone  = "done"
	EventError = "error"
)

// Streamer is the part of llm.Adapter the relay needs.
type Streamer interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	StreamTo(ctx context.Context, req llm.CompletionRequest, sink io.Writer) (*llm.CompletionResponse, error)
}

// Delta is the data of an "event: delta" frame.
type Delta struct {
	Content string `json:"content"`
}

// NewRouter returns a gin engine serving POST /v1/stream and GET /healthz.
func NewRouter(s Streamer, log *logger.Logger) *gin.Engine {
	return newRouter(s, log)
}

func newRouter(s Streamer, log *logger.Logger, extra ...gin.HandlerFunc) *gin.Engine {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("relay")

	r := gin.New()
	r.Use(Recovery(log), RequestID(), RequestLogger(log))
	r.Use(extra...)
	r.POST(StreamPath, Handler(s, log))
	r.GET(HealthPath, Health(s))
	return r
}

// Handler binds a CompletionRequest and relays the streamed completion as
// server-sent events: one "delta" frame per text fragment, then a "done"
// frame with the final response or an "error" frame.
func Handler(s Streamer, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		var req llm.CompletionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			appErr := apperrors.InvalidInput("body", err.Error())
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}

		w := c.Writer
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			log.Debug("could not clear write deadline", logger.Fields(logger.FieldError, err.Error()))
		}
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		w.Flush()

		ctx := c.Request.Context()
		l := log.WithContext(ctx).WithFields(logger.Fields(logger.FieldDialect, s.Name(), logger.FieldModel, req.Model))
		l.Debug("relay stream opened")

		sink := &eventSink{w: w}
		resp, err := s.StreamTo(ctx, req, sink)
		if err != nil {
			if ctx.Err() != nil {
				l.Debug("client disconnected", logger.Fields("reason", ctx.Err().Error()))
				return
			}
			l.WithError(err).Warn("relay stream failed", logger.Fields(logger.FieldEvents, sink.frames))
			_ = writeEvent(w, EventError, apperrors.From(err).ToResponse())
			return
		}
		if err := writeEvent(w, EventDone, resp); err != nil {
			l.WithError(err).Debug("write done frame")
			return
		}
		l.Debug("relay stream closed", logger.Fields(logger.FieldEvents, sink.frames))
	}
}

// Health reports the service up when the upstream provider answers.
func Health(s Streamer) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := observability.NewServiceHealth("llmstream", version.Get().Version)
		h.AddComponent(observability.ProbeResult(s.Name(), s.IsAvailable(c.Request.Context())))
		c.JSON(h.HTTPStatus(), h)
	}
}

// eventSink turns each text fragment into a flushed "delta" frame.
type eventSink struct {
	w      gin.ResponseWriter
	frames int
}

func (s *eventSink) Write(p []byte) (int, error) {
	return s.WriteString(string(p))
}

func (s *eventSink) WriteString(text string) (int, error) {
	if err := writeEvent(s.w, EventDelta, Delta{Content: text}); err != nil {
		return 0, err
	}
	s.frames++
	return len(text), nil
}

// writeEvent writes one SSE frame with v as JSON data and flushes it.
func writeEvent(w gin.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("relay: encode %s: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("relay: write %s: %w", event, err)
	}
	w.Flush()
	return nil
}
