package http

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"barrace/internal/config"
	"barrace/internal/dataprocessing"
	apperrors "barrace/internal/errors"
	"barrace/internal/exporter"
	customMiddleware "barrace/internal/middleware"
	"barrace/internal/services"
	"barrace/pkg/contracts/domain"
)

// Spreadsheet uploads are converted to CSV before analysis
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FrameHandler serves CSV analysis and frame generation
type FrameHandler struct {
	service      FrameServiceInterface
	validator    RequestValidator
	query        QueryValidator
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
	maxBodySize  int64
}

// QueryValidator validates query parameters, answering the request itself
// when a value is rejected
type QueryValidator interface {
	ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max int, defaultValue int) (int, bool)
	ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool)
}

// NewFrameHandler creates a new frame handler
func NewFrameHandler(service FrameServiceInterface, validator RequestValidator, query QueryValidator, logger *slog.Logger, errorHandler *apperrors.ErrorHandler, maxBodySize int64) *FrameHandler {
	if maxBodySize <= 0 {
		maxBodySize = 32 << 20
	}
	return &FrameHandler{
		service:      service,
		validator:    validator,
		query:        query,
		logger:       logger.With(slog.String("component", "frame_handler")),
		errorHandler: errorHandler,
		maxBodySize:  maxBodySize,
	}
}

// Routes returns the frame routes
func (h *FrameHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/analyze", h.Analyze)
	r.With(
		customMiddleware.ContentTypeValidator("application/json"),
		h.validator.ValidateRequest,
	).Post("/frames", h.Generate)
	r.Get("/diagnostics", h.Diagnostics)
	r.Delete("/cache", h.ClearCaches)

	return r
}

// Analyze handles POST /api/v1/analyze. The body is the raw CSV document,
// or an .xlsx workbook when sent with the spreadsheet content type.
func (h *FrameHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	content, err := h.readDocument(w, r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "analyzing document",
		slog.String("request_id", reqID),
		slog.Int("bytes", len(content)),
	)

	meta, err := h.service.Analyze(r.Context(), content)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, meta)
}

// Generate handles POST /api/v1/frames. ?format=csv returns the frames as
// CSV rows instead of the JSON series. ?frame=N answers with the single
// snapshot at N, clamped to the last frame.
func (h *FrameHandler) Generate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	format, ok := h.query.ValidateEnum(w, r, "format", []string{string(exporter.FormatJSON), string(exporter.FormatCSV)}, string(exporter.FormatJSON))
	if !ok {
		return
	}
	frameIndex, ok := h.query.ValidateInt(w, r, "frame", 0, config.MaxFrames-1, -1)
	if !ok {
		return
	}

	var req services.FramesRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := h.validator.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	start := time.Now()
	series, err := h.service.Generate(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "frames generated",
		slog.String("request_id", reqID),
		slog.Int("frames", series.TotalFrames),
		slog.String("format", format),
		slog.Duration("elapsed", time.Since(start)),
	)

	var snapshot *domain.FrameSnapshot
	if frameIndex >= 0 {
		snapshot = series.Frame(frameIndex)
	}
	if snapshot != nil {
		single := *series
		single.Frames = []domain.FrameSnapshot{*snapshot}
		series = &single
	}

	if exporter.Format(format) == exporter.FormatCSV {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="frames.csv"`)
		if err := exporter.EncodeFrames(w, series, exporter.DefaultWriteOptions()); err != nil {
			// Headers are gone by now; the client sees a truncated body.
			h.logger.ErrorContext(r.Context(), "failed to write CSV frames",
				slog.String("request_id", reqID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if snapshot != nil {
		render.JSON(w, r, snapshot)
		return
	}
	render.JSON(w, r, series)
}

// Diagnostics handles GET /api/v1/diagnostics
func (h *FrameHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Diagnostics(r.Context()))
}

// ClearCaches handles DELETE /api/v1/cache
func (h *FrameHandler) ClearCaches(w http.ResponseWriter, r *http.Request) {
	cleared := h.service.ClearCaches(r.Context())

	h.logger.InfoContext(r.Context(), "caches cleared",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Int("processors", cleared),
	)

	render.JSON(w, r, map[string]interface{}{
		"status":  "success",
		"cleared": cleared,
	})
}

func (h *FrameHandler) readDocument(w http.ResponseWriter, r *http.Request) (string, error) {
	body := http.MaxBytesReader(w, r.Body, h.maxBodySize)
	defer body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == xlsxContentType {
		content, err := dataprocessing.WorkbookReaderToCSV(body, r.URL.Query().Get("sheet"))
		if err != nil {
			return "", bodyError(err)
		}
		return content, nil
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", bodyError(err)
	}
	return string(data), nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.ErrPayloadTooLarge
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.InvalidRequestWithError(err)
}
