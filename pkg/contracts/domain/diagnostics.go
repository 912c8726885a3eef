package domain

// MaxErrorSamples bounds how many skip reasons are kept per stage.
const MaxErrorSamples = 10

// ParseStats reports what the CSV parser kept and dropped.
type ParseStats struct {
	TotalRows   int      `json:"total_rows"`
	ValidRows   int      `json:"valid_rows"`
	SkippedRows int      `json:"skipped_rows"`
	Errors      []string `json:"errors,omitempty"`
}

// TransformStats reports what the transformer kept and dropped.
type TransformStats struct {
	TotalRows      int      `json:"total_rows"`
	ValidRows      int      `json:"valid_rows"`
	SkippedRows    int      `json:"skipped_rows"`
	DuplicateDates int      `json:"duplicate_dates"`
	CoercedValues  int      `json:"coerced_values"`
	Errors         []string `json:"errors,omitempty"`
}

// Diagnostics bundles the per-stage statistics of one request.
type Diagnostics struct {
	Parse     ParseStats     `json:"parse"`
	Transform TransformStats `json:"transform"`
}

// AddSample appends msg to samples unless the bound is reached.
func AddSample(samples []string, msg string) []string {
	if len(samples) >= MaxErrorSamples {
		return samples
	}
	return append(samples, msg)
}
