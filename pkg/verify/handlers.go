package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/authzed/controller-idioms/handler"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/dremio-smoketest/pkg/config"
	"github.com/chazu/dremio-smoketest/pkg/probe"
	"github.com/chazu/dremio-smoketest/pkg/readiness"
)

// Handler IDs for the verification pipeline
const (
	CountPodsID    handler.Key = "count-pods"
	WaitReadyID    handler.Key = "wait-ready"
	ProbeID        handler.Key = "probe-http"
	ProbePodsID    handler.Key = "probe-pods"
	AssertStatusID handler.Key = "assert-status"
	CompleteID     handler.Key = "complete"
)

// VerifyHandlers contains all handlers for the verification pipeline.
type VerifyHandlers struct {
	checker *readiness.Checker
	prober  *probe.Client
	cfg     *config.Config
}

// NewVerifyHandlers creates a new handler collection.
func NewVerifyHandlers(c client.Client, prober *probe.Client, cfg *config.Config) *VerifyHandlers {
	return &VerifyHandlers{
		checker: readiness.NewChecker(c),
		prober:  prober,
		cfg:     cfg,
	}
}

// fail records the stage failure and terminates the pipeline.
func fail(ctx context.Context, start time.Time, stageErr *StageError) {
	log.FromContext(ctx).Error(stageErr.Err, "verification stage failed", "stage", stageErr.Stage)
	CtxReport.MustValue(ctx).observe(stageErr.Stage, start, "", stageErr.Err)
	CtxQueue.RequeueErr(ctx, stageErr)
}

// CountPodsHandler lists the coordinator pods and fails when none match.
type CountPodsHandler struct {
	checker *readiness.Checker
	cfg     *config.Config
	next    handler.Handler
}

func (h *CountPodsHandler) Handle(ctx context.Context) {
	logger := log.FromContext(ctx)
	start := time.Now()

	selector := h.cfg.EffectiveSelector()
	pods, err := h.checker.ListMatching(ctx, h.cfg.Namespace, selector)
	if err != nil {
		fail(ctx, start, failure(StageCountPods, ErrNoPodsFound, err))
		return
	}
	if len(pods) == 0 {
		fail(ctx, start, failure(StageCountPods, ErrNoPodsFound,
			fmt.Errorf("selector %v matched no pods in namespace %s", selector, h.cfg.Namespace)))
		return
	}

	logger.Info("coordinator pods found", "count", len(pods), "selector", selector)
	CtxReport.MustValue(ctx).observe(StageCountPods, start, fmt.Sprintf("%d pods", len(pods)), nil)

	ctx = CtxPods.WithValue(ctx, pods)
	h.next.Handle(ctx)
}

// CountPods returns a handler builder for the pod count stage.
func (h *VerifyHandlers) CountPods() handler.Builder {
	return func(next ...handler.Handler) handler.Handler {
		return handler.NewHandler(
			&CountPodsHandler{
				checker: h.checker,
				cfg:     h.cfg,
				next:    handler.Handlers(next).MustOne(),
			},
			CountPodsID,
		)
	}
}

// WaitReadyHandler blocks until every matching pod reports ready, bounded by
// the configured timeout.
type WaitReadyHandler struct {
	checker *readiness.Checker
	cfg     *config.Config
	next    handler.Handler
}

func (h *WaitReadyHandler) Handle(ctx context.Context) {
	logger := log.FromContext(ctx)
	start := time.Now()

	pods, notReady, err := h.checker.WaitAllReady(ctx,
		h.cfg.Namespace, h.cfg.EffectiveSelector(),
		h.cfg.PollInterval, h.cfg.Timeout)
	if err != nil {
		fail(ctx, start, failure(StageWaitReady, ErrReadinessTimeout,
			fmt.Errorf("pods not ready: %v: %v", notReady, err)))
		return
	}

	logger.Info("all coordinator pods ready", "count", len(pods), "waited", time.Since(start).String())
	CtxReport.MustValue(ctx).observe(StageWaitReady, start, fmt.Sprintf("%d pods ready", len(pods)), nil)

	// Refresh the pod list so later stages see assigned IPs.
	ctx = CtxPods.WithValue(ctx, pods)
	h.next.Handle(ctx)
}

// WaitReady returns a handler builder for the readiness wait stage.
func (h *VerifyHandlers) WaitReady() handler.Builder {
	return func(next ...handler.Handler) handler.Handler {
		return handler.NewHandler(
			&WaitReadyHandler{
				checker: h.checker,
				cfg:     h.cfg,
				next:    handler.Handlers(next).MustOne(),
			},
			WaitReadyID,
		)
	}
}

// ProbeHandler issues the HTTP health probe against the coordinator service.
type ProbeHandler struct {
	prober *probe.Client
	cfg    *config.Config
	next   handler.Handler
}

func (h *ProbeHandler) Handle(ctx context.Context) {
	logger := log.FromContext(ctx)
	start := time.Now()

	url := h.cfg.HealthURL()
	resp, err := h.prober.Fetch(ctx, url)
	if err != nil {
		fail(ctx, start, failure(StageProbe, ErrServiceUnreachable, err))
		return
	}

	logger.Info("health endpoint reachable", "url", url, "httpStatus", resp.StatusCode)
	CtxReport.MustValue(ctx).observe(StageProbe, start, url, nil)

	ctx = CtxProbeResponse.WithValue(ctx, resp)
	h.next.Handle(ctx)
}

// Probe returns a handler builder for the service probe stage.
func (h *VerifyHandlers) Probe() handler.Builder {
	return func(next ...handler.Handler) handler.Handler {
		return handler.NewHandler(
			&ProbeHandler{
				prober: h.prober,
				cfg:    h.cfg,
				next:   handler.Handlers(next).MustOne(),
			},
			ProbeID,
		)
	}
}

// ProbePodsHandler probes each coordinator pod's own endpoint, bypassing the
// service.
type ProbePodsHandler struct {
	prober *probe.Client
	cfg    *config.Config
	next   handler.Handler
}

func (h *ProbePodsHandler) Handle(ctx context.Context) {
	logger := log.FromContext(ctx)
	start := time.Now()

	pods := CtxPods.MustValue(ctx)
	if err := h.prober.FetchEach(ctx, pods, h.cfg.ServicePort, config.HealthPath); err != nil {
		fail(ctx, start, failure(StageProbePods, ErrServiceUnreachable, err))
		return
	}

	logger.Info("all pod endpoints reachable", "count", len(pods))
	CtxReport.MustValue(ctx).observe(StageProbePods, start, fmt.Sprintf("%d pods probed", len(pods)), nil)

	h.next.Handle(ctx)
}

// ProbePods returns a handler builder for the per-pod probe stage.
func (h *VerifyHandlers) ProbePods() handler.Builder {
	return func(next ...handler.Handler) handler.Handler {
		return handler.NewHandler(
			&ProbePodsHandler{
				prober: h.prober,
				cfg:    h.cfg,
				next:   handler.Handlers(next).MustOne(),
			},
			ProbePodsID,
		)
	}
}

// AssertStatusHandler compares the server status from the probe response
// with the expected value.
type AssertStatusHandler struct {
	cfg  *config.Config
	next handler.Handler
}

func (h *AssertStatusHandler) Handle(ctx context.Context) {
	logger := log.FromContext(ctx)
	start := time.Now()

	resp := CtxProbeResponse.MustValue(ctx)
	status, err := resp.ServerStatus()
	if err != nil {
		fail(ctx, start, failure(StageAssertStatus, ErrUnexpectedStatus, err))
		return
	}
	if status != h.cfg.ExpectedStatus {
		fail(ctx, start, failure(StageAssertStatus, ErrUnexpectedStatus,
			fmt.Errorf("server status is %q, expected %q", status, h.cfg.ExpectedStatus)))
		return
	}

	logger.Info("server status matches", "status", status)
	CtxReport.MustValue(ctx).observe(StageAssertStatus, start, status, nil)

	h.next.Handle(ctx)
}

// AssertStatus returns a handler builder for the status assertion stage.
func (h *VerifyHandlers) AssertStatus() handler.Builder {
	return func(next ...handler.Handler) handler.Handler {
		return handler.NewHandler(
			&AssertStatusHandler{
				cfg:  h.cfg,
				next: handler.Handlers(next).MustOne(),
			},
			AssertStatusID,
		)
	}
}

// CompleteHandler marks the run as successfully finished.
type CompleteHandler struct {
	next handler.Handler
}

func (h *CompleteHandler) Handle(ctx context.Context) {
	report := CtxReport.MustValue(ctx)
	report.Done = true
	log.FromContext(ctx).Info("verification succeeded", "stages", len(report.Results))

	CtxQueue.Done(ctx)
	h.next.Handle(ctx)
}

// Complete returns the terminal handler builder.
func (h *VerifyHandlers) Complete() handler.Builder {
	return func(next ...handler.Handler) handler.Handler {
		return handler.NewHandler(
			&CompleteHandler{
				next: handler.Handlers(next).MustOne(),
			},
			CompleteID,
		)
	}
}

// builderFor maps a plan stage to its handler builder.
func (h *VerifyHandlers) builderFor(stage Stage) (handler.Builder, error) {
	switch stage {
	case StageCountPods:
		return h.CountPods(), nil
	case StageWaitReady:
		return h.WaitReady(), nil
	case StageProbe:
		return h.Probe(), nil
	case StageProbePods:
		return h.ProbePods(), nil
	case StageAssertStatus:
		return h.AssertStatus(), nil
	default:
		return nil, fmt.Errorf("no handler for stage %s", stage)
	}
}
