package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "barrace/internal/errors"
	"barrace/internal/frames"
	"barrace/internal/infrastructure"
	"barrace/internal/middleware"
	"barrace/internal/services"
	"barrace/pkg/contracts/domain"
)

// MockFrameService is a mock implementation of FrameServiceInterface
type MockFrameService struct {
	mock.Mock
}

func (m *MockFrameService) Analyze(ctx context.Context, content string) (*domain.CSVMetadata, error) {
	args := m.Called(content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CSVMetadata), args.Error(1)
}

func (m *MockFrameService) Generate(ctx context.Context, req services.FramesRequest) (*domain.ProcessedSeries, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProcessedSeries), args.Error(1)
}

func (m *MockFrameService) Stream(ctx context.Context, req services.FramesRequest, batchSize int, onBatch frames.BatchFunc) (*domain.ProcessedSeries, error) {
	args := m.Called(req, batchSize, onBatch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProcessedSeries), args.Error(1)
}

func (m *MockFrameService) Diagnostics(ctx context.Context) services.DiagnosticsReport {
	return m.Called().Get(0).(services.DiagnosticsReport)
}

func (m *MockFrameService) ClearCaches(ctx context.Context) int {
	return m.Called().Int(0)
}

const handlerCSV = "Date,A,B\n2024-01-01,10,20\n2024-01-02,30,5\n"

func testSeries() *domain.ProcessedSeries {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.ProcessedSeries{
		Frames: []domain.FrameSnapshot{
			{FrameIndex: 0, Timestamp: day, Items: []domain.RankedItem{
				{Category: "B", Value: 20, Rank: 1},
				{Category: "A", Value: 10, Rank: 2},
			}},
			{FrameIndex: 1, Timestamp: day.AddDate(0, 0, 1), Items: []domain.RankedItem{
				{Category: "A", Value: 30, Rank: 1},
				{Category: "B", Value: 5, Rank: 2},
			}},
		},
		TotalFrames:     2,
		DateRange:       domain.DateRange{Start: day, End: day.AddDate(0, 0, 1)},
		GlobalMaxValue:  30,
		Categories:      []string{"A", "B"},
		FPS:             1,
		DurationSeconds: 2,
		Interpolation:   "linear",
		TopN:            10,
	}
}

func newTestFrameHandler(svc FrameServiceInterface) chi.Router {
	logger := infrastructure.NewDiscardLogger()
	errorHandler := apperrors.NewErrorHandler(logger, false)
	validator := middleware.NewValidationMiddleware(logger, errorHandler, 1<<20)
	query := middleware.NewQueryParamValidator(logger, errorHandler)
	return NewFrameHandler(svc, validator, query, logger, errorHandler, 1<<20).Routes()
}

func framesBody(t *testing.T, mutate func(map[string]interface{})) string {
	t.Helper()
	body := map[string]interface{}{
		"csv": handlerCSV,
		"config": map[string]interface{}{
			"date_column":   "Date",
			"value_columns": []string{"A", "B"},
			"fps":           1,
		},
		"duration_seconds": 2,
	}
	if mutate != nil {
		mutate(body)
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return string(data)
}

func decodeProblem(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &problem))
	return problem
}

func TestFrameHandler_Analyze(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockFrameService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "successful analysis",
			setupMock: func(m *MockFrameService) {
				m.On("Analyze", handlerCSV).Return(&domain.CSVMetadata{
					Columns:      []string{"Date", "A", "B"},
					DateColumn:   "Date",
					ValueColumns: []string{"A", "B"},
					RowCount:     2,
					HasHeader:    true,
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "empty document",
			setupMock: func(m *MockFrameService) {
				m.On("Analyze", handlerCSV).Return(nil, apperrors.NewEmptyInputError())
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   string(apperrors.CodeEmptyInput),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockFrameService)
			tt.setupMock(svc)
			router := newTestFrameHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(handlerCSV))
			req.Header.Set("Content-Type", "text/csv")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeProblem(t, w.Body.Bytes())["error_code"])
			} else {
				var meta domain.CSVMetadata
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
				assert.Equal(t, "Date", meta.DateColumn)
				assert.Equal(t, 2, meta.RowCount)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestFrameHandler_AnalyzeWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Date", "A", "B"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"2024-01-01", "10", "20"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"2024-01-02", "30", "5"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	svc := new(MockFrameService)
	svc.On("Analyze", handlerCSV).Return(&domain.CSVMetadata{DateColumn: "Date"}, nil)
	router := newTestFrameHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(buf.Bytes()))
	req.Header.Set("Content-Type", xlsxContentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestFrameHandler_AnalyzeRejectsBrokenWorkbook(t *testing.T) {
	svc := new(MockFrameService)
	router := newTestFrameHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("not a zip"))
	req.Header.Set("Content-Type", xlsxContentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Analyze", mock.Anything)
}

func TestFrameHandler_Generate(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		contentType    string
		body           func(t *testing.T) string
		setupMock      func(*MockFrameService)
		expectedStatus int
		expectedCode   string
		check          func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name: "json series",
			body: func(t *testing.T) string { return framesBody(t, nil) },
			setupMock: func(m *MockFrameService) {
				m.On("Generate", mock.MatchedBy(func(req services.FramesRequest) bool {
					return req.CSV == handlerCSV && req.Config.FPS == 1 && req.DurationSeconds == 2
				})).Return(testSeries(), nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var series domain.ProcessedSeries
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
				assert.Equal(t, 2, series.TotalFrames)
				assert.Len(t, series.Frames, 2)
				assert.Equal(t, []string{"A", "B"}, series.Categories)
			},
		},
		{
			name:  "csv export",
			query: "?format=csv",
			body:  func(t *testing.T) string { return framesBody(t, nil) },
			setupMock: func(m *MockFrameService) {
				m.On("Generate", mock.Anything).Return(testSeries(), nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
				lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
				require.Len(t, lines, 5)
				assert.Equal(t, "frame,timestamp,rank,category,value", lines[0])
				assert.Equal(t, "0,2024-01-01,1,B,20", lines[1])
			},
		},
		{
			name:           "unknown format",
			query:          "?format=xml",
			body:           func(t *testing.T) string { return framesBody(t, nil) },
			setupMock:      func(m *MockFrameService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name: "missing csv",
			body: func(t *testing.T) string {
				return framesBody(t, func(b map[string]interface{}) { delete(b, "csv") })
			},
			setupMock:      func(m *MockFrameService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name: "fps out of range",
			body: func(t *testing.T) string {
				return framesBody(t, func(b map[string]interface{}) {
					b["config"].(map[string]interface{})["fps"] = 500
				})
			},
			setupMock:      func(m *MockFrameService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name: "unknown field",
			body: func(t *testing.T) string {
				return framesBody(t, func(b map[string]interface{}) { b["speed"] = 3 })
			},
			setupMock:      func(m *MockFrameService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name:           "invalid json",
			body:           func(t *testing.T) string { return `{"csv": "Date,A` },
			setupMock:      func(m *MockFrameService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_JSON",
		},
		{
			name:           "unsupported content type",
			contentType:    "text/csv",
			body:           func(t *testing.T) string { return framesBody(t, nil) },
			setupMock:      func(m *MockFrameService) {},
			expectedStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:  "single frame",
			query: "?frame=1",
			body:  func(t *testing.T) string { return framesBody(t, nil) },
			setupMock: func(m *MockFrameService) {
				m.On("Generate", mock.Anything).Return(testSeries(), nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var frame domain.FrameSnapshot
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &frame))
				assert.Equal(t, 1, frame.FrameIndex)
				require.Len(t, frame.Items, 2)
				assert.Equal(t, "A", frame.Items[0].Category)
			},
		},
		{
			name:  "frame past the end is clamped",
			query: "?frame=40",
			body:  func(t *testing.T) string { return framesBody(t, nil) },
			setupMock: func(m *MockFrameService) {
				m.On("Generate", mock.Anything).Return(testSeries(), nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var frame domain.FrameSnapshot
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &frame))
				assert.Equal(t, 1, frame.FrameIndex)
			},
		},
		{
			name:  "single frame as csv",
			query: "?format=csv&frame=0",
			body:  func(t *testing.T) string { return framesBody(t, nil) },
			setupMock: func(m *MockFrameService) {
				m.On("Generate", mock.Anything).Return(testSeries(), nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
				require.Len(t, lines, 3)
				assert.Equal(t, "0,2024-01-01,1,B,20", lines[1])
				assert.Equal(t, "0,2024-01-01,2,A,10", lines[2])
			},
		},
		{
			name:           "frame not an integer",
			query:          "?frame=last",
			body:           func(t *testing.T) string { return framesBody(t, nil) },
			setupMock:      func(m *MockFrameService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name:           "negative frame",
			query:          "?frame=-1",
			body:           func(t *testing.T) string { return framesBody(t, nil) },
			setupMock:      func(m *MockFrameService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name: "missing column",
			body: func(t *testing.T) string { return framesBody(t, nil) },
			setupMock: func(m *MockFrameService) {
				m.On("Generate", mock.Anything).Return(nil, apperrors.NewMissingColumnError("B", []string{"Date", "A"}))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   string(apperrors.CodeMissingColumn),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockFrameService)
			tt.setupMock(svc)
			router := newTestFrameHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/frames"+tt.query, strings.NewReader(tt.body(t)))
			contentType := tt.contentType
			if contentType == "" {
				contentType = "application/json"
			}
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeProblem(t, w.Body.Bytes())["error_code"])
			}
			if tt.check != nil {
				tt.check(t, w)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestFrameHandler_DiagnosticsAndCache(t *testing.T) {
	svc := new(MockFrameService)
	svc.On("Diagnostics").Return(services.DiagnosticsReport{CacheEnabled: true, HeapBytes: 1024})
	svc.On("ClearCaches").Return(3)
	router := newTestFrameHandler(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var report services.DiagnosticsReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.CacheEnabled)
	assert.Equal(t, uint64(1024), report.HeapBytes)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/cache", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","cleared":3}`, w.Body.String())

	svc.AssertExpectations(t)
}
