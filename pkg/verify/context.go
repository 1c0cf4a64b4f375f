package verify

import (
	"github.com/authzed/controller-idioms/queue"
	"github.com/authzed/controller-idioms/typedctx"
	corev1 "k8s.io/api/core/v1"

	"github.com/chazu/dremio-smoketest/pkg/probe"
)

// Context keys for the verification pipeline
//
// These typed context keys provide type-safe access to values passed between
// stage handlers. Using typedctx eliminates runtime errors from
// context.Value() type assertions.
var (
	// CtxQueue controls pipeline termination: Done marks the run complete,
	// RequeueErr carries the stage failure out to the driver.
	CtxQueue = queue.NewQueueOperationsCtx()

	// CtxPods is the list of coordinator pods observed by the count stage
	// and refreshed by the wait stage.
	CtxPods = typedctx.NewKey[[]corev1.Pod]()

	// CtxProbeResponse is the health endpoint response, carried from the
	// probe stage to the status assertion.
	CtxProbeResponse = typedctx.NewKey[*probe.Response]()

	// CtxReport accumulates per-stage results for the final summary.
	CtxReport = typedctx.NewKey[*Report]()
)
