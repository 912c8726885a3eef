package http

import (
	"context"
	"net/http"

	"barrace/internal/frames"
	"barrace/internal/services"
	"barrace/pkg/contracts/domain"
)

// FrameServiceInterface defines the frame operations served over HTTP
type FrameServiceInterface interface {
	Analyze(ctx context.Context, content string) (*domain.CSVMetadata, error)
	Generate(ctx context.Context, req services.FramesRequest) (*domain.ProcessedSeries, error)
	Stream(ctx context.Context, req services.FramesRequest, batchSize int, onBatch frames.BatchFunc) (*domain.ProcessedSeries, error)
	Diagnostics(ctx context.Context) services.DiagnosticsReport
	ClearCaches(ctx context.Context) int
}

// RequestValidator decodes and validates JSON request bodies. ValidateRequest
// is route middleware that rejects malformed JSON before decoding.
type RequestValidator interface {
	ValidateRequest(next http.Handler) http.Handler
	DecodeAndValidate(r *http.Request, dst interface{}) error
	ValidateStruct(v interface{}) error
}
