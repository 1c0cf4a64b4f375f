package verify

import (
	"errors"
	"fmt"
)

// Stage identifies a step of the verification pipeline.
type Stage string

const (
	// StageCountPods counts the pods matching the selector.
	StageCountPods Stage = "count-pods"

	// StageWaitReady waits for all matching pods to report ready.
	StageWaitReady Stage = "wait-ready"

	// StageProbe issues the HTTP health probe against the service.
	StageProbe Stage = "probe-http"

	// StageProbePods probes each pod's own endpoint.
	StageProbePods Stage = "probe-pods"

	// StageAssertStatus compares the server status with the expected value.
	StageAssertStatus Stage = "assert-status"
)

// Terminal failure classes of a verification run. Every run failure wraps
// exactly one of these.
var (
	ErrNoPodsFound        = errors.New("no pods found")
	ErrReadinessTimeout   = errors.New("readiness timeout")
	ErrServiceUnreachable = errors.New("service unreachable")
	ErrUnexpectedStatus   = errors.New("unexpected status")
)

// StageError reports which stage of the run failed and why.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// failure wraps a cause in the stage's failure class.
func failure(stage Stage, class error, cause error) *StageError {
	if cause == nil {
		return &StageError{Stage: stage, Err: class}
	}
	return &StageError{Stage: stage, Err: fmt.Errorf("%w: %v", class, cause)}
}
