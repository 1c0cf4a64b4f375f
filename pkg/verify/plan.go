package verify

import (
	"fmt"

	"github.com/dominikbraun/graph"
)

// StageSpec declares a stage and the stages that must complete before it.
type StageSpec struct {
	ID        Stage
	DependsOn []Stage
}

// Plan is the executable stage sequence, computed from stage dependencies.
type Plan struct {
	graph graph.Graph[string, string]
	specs map[Stage]StageSpec
	order []Stage
}

// BuildPlan validates the stage specs, detects cycles and computes the
// execution order.
func BuildPlan(stages []StageSpec) (*Plan, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("plan has no stages")
	}

	dg := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	specs := make(map[Stage]StageSpec, len(stages))
	for _, spec := range stages {
		if _, dup := specs[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate stage %s", spec.ID)
		}
		specs[spec.ID] = spec
		if err := dg.AddVertex(string(spec.ID)); err != nil {
			return nil, fmt.Errorf("failed to add stage %s: %w", spec.ID, err)
		}
	}

	// An edge dep -> id means dep must complete before id starts.
	for _, spec := range stages {
		for _, dep := range spec.DependsOn {
			if _, ok := specs[dep]; !ok {
				return nil, fmt.Errorf("stage %s depends on unknown stage %s", spec.ID, dep)
			}
			if err := dg.AddEdge(string(dep), string(spec.ID)); err != nil {
				return nil, fmt.Errorf("failed to add edge %s -> %s: %w", dep, spec.ID, err)
			}
		}
	}

	sorted, err := graph.TopologicalSort(dg)
	if err != nil {
		return nil, fmt.Errorf("failed to order stages (possible cycle): %w", err)
	}

	order := make([]Stage, 0, len(sorted))
	for _, id := range sorted {
		order = append(order, Stage(id))
	}

	return &Plan{
		graph: dg,
		specs: specs,
		order: order,
	}, nil
}

// Order returns the stages in execution order.
func (p *Plan) Order() []Stage {
	return p.order
}

// Contains reports whether the plan includes the stage.
func (p *Plan) Contains(id Stage) bool {
	_, ok := p.specs[id]
	return ok
}

// Size returns the number of stages in the plan.
func (p *Plan) Size() int {
	return len(p.specs)
}

// DefaultPlan builds the plan for a verification run. The per-pod probe and
// the status assertion are inserted only when enabled; each optional stage
// chains onto the latest stage already in the plan so the run stays strictly
// sequential.
func DefaultPlan(coordinatorEnabled, probePods bool) (*Plan, error) {
	stages := []StageSpec{
		{ID: StageCountPods},
		{ID: StageWaitReady, DependsOn: []Stage{StageCountPods}},
		{ID: StageProbe, DependsOn: []Stage{StageWaitReady}},
	}
	last := StageProbe

	if probePods {
		stages = append(stages, StageSpec{ID: StageProbePods, DependsOn: []Stage{last}})
		last = StageProbePods
	}
	if coordinatorEnabled {
		stages = append(stages, StageSpec{ID: StageAssertStatus, DependsOn: []Stage{last}})
	}

	return BuildPlan(stages)
}
