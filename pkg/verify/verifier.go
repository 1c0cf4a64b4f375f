package verify

import (
	"context"
	"time"

	"github.com/authzed/controller-idioms/handler"
	"github.com/authzed/controller-idioms/queue"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/dremio-smoketest/pkg/config"
	"github.com/chazu/dremio-smoketest/pkg/probe"
)

// Verifier executes the verification pipeline against a cluster.
type Verifier struct {
	handlers *VerifyHandlers
	pipeline handler.Handler
	plan     *Plan
}

// NewVerifier builds the stage plan from the config and assembles the
// handler pipeline in plan order.
func NewVerifier(c client.Client, prober *probe.Client, cfg *config.Config) (*Verifier, error) {
	plan, err := DefaultPlan(cfg.CoordinatorEnabled, cfg.ProbePods)
	if err != nil {
		return nil, err
	}

	handlers := NewVerifyHandlers(c, prober, cfg)

	builders := make([]handler.Builder, 0, plan.Size()+1)
	for _, stage := range plan.Order() {
		b, err := handlers.builderFor(stage)
		if err != nil {
			return nil, err
		}
		builders = append(builders, b)
	}
	builders = append(builders, handlers.Complete())

	pipeline := handler.Chain(builders...).Handler("smoke-verify")

	return &Verifier{
		handlers: handlers,
		pipeline: pipeline,
		plan:     plan,
	}, nil
}

// Plan returns the stage plan for this run.
func (v *Verifier) Plan() *Plan {
	return v.plan
}

// Run executes the pipeline once. It returns the run report and, on
// failure, a StageError wrapping one of the terminal failure classes.
func (v *Verifier) Run(ctx context.Context) (*Report, error) {
	logger := log.FromContext(ctx)
	logger.Info("starting verification", "stages", len(v.plan.Order()))

	report := NewReport()

	queueOps := queue.NewOperations(
		func() {},
		func(d time.Duration) {},
		func() {}, // cancel not needed for a single-shot run, but the queue invokes it unconditionally
	)

	ctx = CtxQueue.WithValue(ctx, queueOps)
	ctx = CtxReport.WithValue(ctx, report)

	start := time.Now()
	v.pipeline.Handle(ctx)

	if err := queueOps.Error(); err != nil {
		RecordRun("failure", time.Since(start).Seconds())
		return report, err
	}

	RecordRun("success", time.Since(start).Seconds())
	return report, nil
}
