package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/llmstream/logger"
	"github.com/kbukum/llmstream/resilience"
)

// Server serves the relay router over HTTP/1.1 and cleartext HTTP/2.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	listener   net.Listener
	log        *logger.Logger
}

// NewServer builds a Server for s. Defaults are applied to cfg.
func NewServer(cfg Config, s Streamer, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.Nop()
	}
	cfg.ApplyDefaults()

	engine := newRouter(s, log,
		BodyLimit(cfg.MaxBodyBytes),
		Auth(cfg.Auth),
		StreamLimit(resilience.NewBulkhead(cfg.Streams)),
	)

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          time.Duration(cfg.IdleTimeout) * time.Second,
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           h2c.NewHandler(engine, h2s),
			ReadHeaderTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
			IdleTimeout:       time.Duration(cfg.IdleTimeout) * time.Second,
		},
		engine: engine,
		log:    log.WithComponent("relay"),
	}
}

// Engine returns the gin engine for additional routes.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Start binds the port and serves in a goroutine. It returns once the
// listener is bound.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("relay: bind %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("relay server stopped")
		}
	}()
	s.log.Info("relay listening", logger.Fields("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Stop shuts the server down, waiting up to 5 seconds for open streams.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("relay: shutdown: %w", err)
	}
	s.log.Info("relay stopped")
	return nil
}
