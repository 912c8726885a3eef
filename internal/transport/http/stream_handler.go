package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	gorillaws "github.com/gorilla/websocket"

	"barrace/internal/websocket"
)

// StreamHandler upgrades requests to WebSocket sessions that stream frames
// batch by batch
type StreamHandler struct {
	source    websocket.FrameSource
	validator websocket.RequestValidator
	upgrader  *gorillaws.Upgrader
	metrics   *websocket.Metrics
	readLimit int64
	logger    *slog.Logger

	// sessions outlive their request, so shutdown cancels them here
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(source websocket.FrameSource, validator websocket.RequestValidator, upgrader *gorillaws.Upgrader, metrics *websocket.Metrics, readLimit int64, logger *slog.Logger) *StreamHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &StreamHandler{
		source:    source,
		validator: validator,
		upgrader:  upgrader,
		metrics:   metrics,
		readLimit: readLimit,
		logger:    logger.With(slog.String("handler", "stream")),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ServeHTTP handles GET /api/v1/stream
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.wg.Add(1)
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request.
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()))
		return
	}

	session := websocket.NewSession(conn, h.source,
		websocket.WithValidator(h.validator),
		websocket.WithMetrics(h.metrics),
		websocket.WithLogger(h.logger),
		websocket.WithTraceID(reqID),
		websocket.WithReadLimit(h.readLimit),
	)

	if err := session.Run(h.ctx); err != nil {
		h.logger.WarnContext(r.Context(), "WebSocket session failed",
			slog.String("session_id", session.ID()),
			slog.String("error", err.Error()))
	}
}

// Shutdown ends all sessions and waits for them to return.
func (h *StreamHandler) Shutdown(ctx context.Context) error {
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
