package verify

import (
	"time"
)

// StageResult records the outcome of one executed stage.
type StageResult struct {
	Stage    Stage
	Duration time.Duration
	Detail   string
	Err      error
}

// Report collects the results of a verification run. The pipeline is
// single-threaded, so no locking is needed.
type Report struct {
	Results []StageResult
	Done    bool
}

// NewReport creates an empty run report.
func NewReport() *Report {
	return &Report{}
}

// observe records a stage outcome and its metrics.
func (r *Report) observe(stage Stage, start time.Time, detail string, err error) {
	d := time.Since(start)
	r.Results = append(r.Results, StageResult{
		Stage:    stage,
		Duration: d,
		Detail:   detail,
		Err:      err,
	})

	result := "success"
	if err != nil {
		result = "failure"
	}
	RecordStage(stage, result, d.Seconds())
}

// Failed returns the failed stage result, or nil when every executed stage
// succeeded.
func (r *Report) Failed() *StageResult {
	for i := range r.Results {
		if r.Results[i].Err != nil {
			return &r.Results[i]
		}
	}
	return nil
}
