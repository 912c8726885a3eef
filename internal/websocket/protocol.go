package websocket

import (
	"time"

	"barrace/internal/services"
	"barrace/pkg/contracts/domain"
)

// Message types
const (
	TypeGenerate  = "generate"
	TypeHeartbeat = "heartbeat"
	TypeFrames    = "frames"
	TypeComplete  = "complete"
	TypeError     = "error"
)

// ClientMessage is anything a client sends.
type ClientMessage struct {
	Type      string                  `json:"type"`
	BatchSize int                     `json:"batch_size,omitempty"`
	Request   *services.FramesRequest `json:"request,omitempty"`
}

// FramesMessage carries one batch of frames.
type FramesMessage struct {
	Type   string                 `json:"type"`
	Batch  int                    `json:"batch"`
	Frames []domain.FrameSnapshot `json:"frames"`
}

// SeriesInfo is a ProcessedSeries without its frames.
type SeriesInfo struct {
	TotalFrames     int              `json:"total_frames"`
	DateRange       domain.DateRange `json:"date_range"`
	GlobalMaxValue  float64          `json:"global_max_value"`
	Categories      []string         `json:"categories"`
	FPS             int              `json:"fps"`
	DurationSeconds float64          `json:"duration_seconds"`
	Interpolation   string           `json:"interpolation"`
	TopN            int              `json:"top_n"`
}

// CompleteMessage ends a successful stream.
type CompleteMessage struct {
	Type    string     `json:"type"`
	Series  SeriesInfo `json:"series"`
	Elapsed string     `json:"elapsed"`
}

// ErrorMessage reports a failed request.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func seriesInfo(s *domain.ProcessedSeries) SeriesInfo {
	return SeriesInfo{
		TotalFrames:     s.TotalFrames,
		DateRange:       s.DateRange,
		GlobalMaxValue:  s.GlobalMaxValue,
		Categories:      s.Categories,
		FPS:             s.FPS,
		DurationSeconds: s.DurationSeconds,
		Interpolation:   s.Interpolation,
		TopN:            s.TopN,
	}
}

func completeMessage(s *domain.ProcessedSeries, elapsed time.Duration) CompleteMessage {
	return CompleteMessage{
		Type:    TypeComplete,
		Series:  seriesInfo(s),
		Elapsed: elapsed.String(),
	}
}
