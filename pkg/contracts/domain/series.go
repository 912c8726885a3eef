package domain

import "time"

// DataPoint is one (category, date) observation after transformation.
type DataPoint struct {
	Category string    `json:"category"`
	Value    float64   `json:"value"`
	Date     time.Time `json:"date"`
}

// CategorySeries holds the observations of one category ordered by date.
type CategorySeries struct {
	Category string      `json:"category"`
	Points   []DataPoint `json:"points"`
}

// Len returns the number of observations.
func (s *CategorySeries) Len() int {
	return len(s.Points)
}

// First returns the earliest observation. The series must not be empty.
func (s *CategorySeries) First() DataPoint {
	return s.Points[0]
}

// Last returns the latest observation. The series must not be empty.
func (s *CategorySeries) Last() DataPoint {
	return s.Points[len(s.Points)-1]
}

// SeriesSet is the transformer output: every category series plus the
// global date range and the largest observed value.
type SeriesSet struct {
	Categories []string                   `json:"categories"`
	Series     map[string]*CategorySeries `json:"series"`
	Start      time.Time                  `json:"start"`
	End        time.Time                  `json:"end"`
	MaxValue   float64                    `json:"max_value"`
}

// Get returns the series for a category, or nil.
func (s *SeriesSet) Get(category string) *CategorySeries {
	if s == nil {
		return nil
	}
	return s.Series[category]
}
