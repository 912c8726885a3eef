package domain

import "time"

// RankedItem is one category's position inside a frame.
type RankedItem struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
	Rank     int     `json:"rank"`
}

// FrameSnapshot is the ranked state of the race at one output instant.
type FrameSnapshot struct {
	FrameIndex int          `json:"frame_index"`
	Timestamp  time.Time    `json:"timestamp"`
	Items      []RankedItem `json:"items"`
}

// DateRange is the inclusive span covered by a series.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ProcessedSeries is everything the rendering layer needs for one request.
// Frames are addressed by index; no further interpolation happens downstream.
type ProcessedSeries struct {
	Frames          []FrameSnapshot `json:"frames"`
	TotalFrames     int             `json:"total_frames"`
	DateRange       DateRange       `json:"date_range"`
	GlobalMaxValue  float64         `json:"global_max_value"`
	Categories      []string        `json:"categories"`
	FPS             int             `json:"fps"`
	DurationSeconds float64         `json:"duration_seconds"`
	Interpolation   string          `json:"interpolation"`
	TopN            int             `json:"top_n"`
}

// Frame returns the snapshot at index, clamped to the valid range.
func (p *ProcessedSeries) Frame(index int) *FrameSnapshot {
	if p == nil || len(p.Frames) == 0 {
		return nil
	}
	if index < 0 {
		index = 0
	}
	if index >= len(p.Frames) {
		index = len(p.Frames) - 1
	}
	return &p.Frames[index]
}
