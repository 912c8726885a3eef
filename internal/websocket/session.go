package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apperrors "barrace/internal/errors"
	"barrace/internal/frames"
	"barrace/internal/infrastructure"
	"barrace/internal/services"
	"barrace/pkg/contracts/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Default maximum message size allowed from peer; requests carry CSV
	defaultMaxMessageSize = 32 << 20
)

// FrameSource produces the frames of a request in batches.
type FrameSource interface {
	Stream(ctx context.Context, req services.FramesRequest, batchSize int, onBatch frames.BatchFunc) (*domain.ProcessedSeries, error)
}

// RequestValidator checks a decoded request before it is served.
type RequestValidator interface {
	ValidateStruct(v interface{}) error
}

// Session serves generate requests on one connection until the peer leaves.
type Session struct {
	conn      *websocket.Conn
	source    FrameSource
	validator RequestValidator
	metrics   *Metrics
	logger    *slog.Logger

	id          string
	traceID     string
	connectedAt time.Time
	readLimit   int64

	writeMu          sync.Mutex
	messagesSent     int64
	messagesReceived int64
	bytesSent        int64
}

// SessionOption customizes a Session
type SessionOption func(*Session)

// WithValidator validates every generate request.
func WithValidator(v RequestValidator) SessionOption {
	return func(s *Session) { s.validator = v }
}

// WithMetrics records connection and message metrics.
func WithMetrics(m *Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTraceID correlates the session with the upgrade request.
func WithTraceID(traceID string) SessionOption {
	return func(s *Session) { s.traceID = traceID }
}

// WithReadLimit caps the size of client messages.
func WithReadLimit(n int64) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.readLimit = n
		}
	}
}

// NewSession wraps an upgraded connection.
func NewSession(conn *websocket.Conn, source FrameSource, opts ...SessionOption) *Session {
	s := &Session{
		conn:        conn,
		source:      source,
		logger:      infrastructure.GetLogger(),
		id:          uuid.New().String(),
		connectedAt: time.Now(),
		readLimit:   defaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	attrs := []any{
		slog.String("component", "websocket.session"),
		slog.String("session_id", s.id),
	}
	if s.traceID != "" {
		attrs = append(attrs, slog.String("trace_id", s.traceID))
	}
	s.logger = s.logger.With(attrs...)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run reads client messages until the connection closes or ctx is done.
// It returns nil when the peer closed normally.
func (s *Session) Run(ctx context.Context) error {
	if s.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, s.traceID)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.metrics.connected(ctx)
	s.logger.InfoContext(ctx, "WebSocket session started",
		slog.String("remote_addr", s.conn.RemoteAddr().String()))
	defer func() {
		s.conn.Close()
		s.metrics.disconnected(context.WithoutCancel(ctx), time.Since(s.connectedAt))
		s.logger.InfoContext(ctx, "WebSocket session ended",
			slog.Duration("connection_duration", time.Since(s.connectedAt)),
			slog.Int64("messages_received", s.messagesReceived),
			slog.Int64("messages_sent", s.messagesSent),
			slog.Int64("bytes_sent", s.bytesSent))
	}()

	s.conn.SetReadLimit(s.readLimit)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.pingLoop(ctx)
	go func() {
		<-ctx.Done()
		// Unblocks ReadMessage when the server shuts down.
		s.conn.SetReadDeadline(time.Now())
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.ErrorContext(ctx, "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
				s.metrics.messageError(ctx, "read")
				return err
			}
			return nil
		}
		s.messagesReceived++
		s.metrics.message(ctx, "in", "client", len(data))

		if err := s.handle(ctx, data); err != nil {
			s.metrics.messageError(ctx, "write")
			return err
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// handle serves one client message. Only write failures are returned;
// request failures are reported to the client.
func (s *Session) handle(ctx context.Context, data []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return s.writeError(ctx, "INVALID_JSON", "message is not valid JSON")
	}

	switch msg.Type {
	case TypeHeartbeat:
		s.logger.DebugContext(ctx, "Heartbeat received")
		return nil
	case TypeGenerate:
		return s.generate(ctx, msg)
	default:
		return s.writeError(ctx, "UNKNOWN_TYPE", fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (s *Session) generate(ctx context.Context, msg ClientMessage) error {
	if msg.Request == nil {
		return s.writeError(ctx, "INVALID_REQUEST", "generate message needs a request")
	}
	if s.validator != nil {
		if err := s.validator.ValidateStruct(msg.Request); err != nil {
			return s.writeFailure(ctx, err)
		}
	}

	start := time.Now()
	batch := 0
	var writeErr error
	out, err := s.source.Stream(ctx, *msg.Request, msg.BatchSize, func(snapshots []domain.FrameSnapshot) error {
		writeErr = s.writeJSON(ctx, TypeFrames, FramesMessage{Type: TypeFrames, Batch: batch, Frames: snapshots})
		batch++
		return writeErr
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		return s.writeFailure(ctx, err)
	}

	s.logger.InfoContext(ctx, "frames streamed",
		slog.Int("frames", out.TotalFrames),
		slog.Int("batches", batch),
		slog.Duration("elapsed", time.Since(start)))
	return s.writeJSON(ctx, TypeComplete, completeMessage(out, time.Since(start)))
}

// writeFailure reports err with the code the HTTP API would use.
func (s *Session) writeFailure(ctx context.Context, err error) error {
	if code, ok := apperrors.CodeOf(err); ok {
		return s.writeError(ctx, string(code), err.Error())
	}
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if details, ok := apiErr.Details.([]apperrors.ValidationError); ok {
			parts := make([]string, len(details))
			for i, d := range details {
				parts[i] = d.Message
			}
			msg += ": " + strings.Join(parts, "; ")
		}
		return s.writeError(ctx, apiErr.ErrorCode, msg)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return s.writeError(ctx, "CANCELLED", "request cancelled")
	}

	s.logger.ErrorContext(ctx, "frame stream failed", slog.String("error", err.Error()))
	return s.writeError(ctx, "INTERNAL", "an unexpected error occurred")
}

func (s *Session) writeError(ctx context.Context, code, message string) error {
	return s.writeJSON(ctx, TypeError, ErrorMessage{Type: TypeError, Code: code, Message: message})
}

func (s *Session) writeJSON(ctx context.Context, msgType string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msgType, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.ErrorContext(ctx, "Error writing message to WebSocket",
			slog.String("type", msgType),
			slog.String("error", err.Error()))
		return err
	}
	s.messagesSent++
	s.bytesSent += int64(len(data))
	s.metrics.message(ctx, "out", msgType, len(data))
	return nil
}

func (s *Session) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.DebugContext(ctx, "Failed to send ping message",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}
