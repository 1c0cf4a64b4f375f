package readiness

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
)

// Predicate is the interface for evaluating a readiness condition on a pod.
type Predicate interface {
	// Name identifies the predicate in diagnostics.
	Name() string

	// Matches reports whether the pod satisfies the predicate.
	Matches(pod *corev1.Pod) bool
}

// PodReadyPredicate checks the PodReady condition.
type PodReadyPredicate struct{}

// Name returns the predicate name.
func (p *PodReadyPredicate) Name() string { return "PodReady" }

// Matches reports whether the pod's Ready condition is True.
func (p *PodReadyPredicate) Matches(pod *corev1.Pod) bool {
	return hasCondition(pod, corev1.PodReady, corev1.ConditionTrue)
}

// ContainersReadyPredicate checks the ContainersReady condition.
type ContainersReadyPredicate struct{}

// Name returns the predicate name.
func (p *ContainersReadyPredicate) Name() string { return "ContainersReady" }

// Matches reports whether all of the pod's containers are ready.
func (p *ContainersReadyPredicate) Matches(pod *corev1.Pod) bool {
	return hasCondition(pod, corev1.ContainersReady, corev1.ConditionTrue)
}

// PodRunningPredicate checks the pod phase.
type PodRunningPredicate struct{}

// Name returns the predicate name.
func (p *PodRunningPredicate) Name() string { return "PodRunning" }

// Matches reports whether the pod phase is Running.
func (p *PodRunningPredicate) Matches(pod *corev1.Pod) bool {
	return pod.Status.Phase == corev1.PodRunning
}

// NewPredicate creates a Predicate from its name.
func NewPredicate(name string) (Predicate, error) {
	switch name {
	case "PodReady":
		return &PodReadyPredicate{}, nil
	case "ContainersReady":
		return &ContainersReadyPredicate{}, nil
	case "PodRunning":
		return &PodRunningPredicate{}, nil
	default:
		return nil, fmt.Errorf("unknown predicate: %s", name)
	}
}

func hasCondition(pod *corev1.Pod, condType corev1.PodConditionType, status corev1.ConditionStatus) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == condType {
			return cond.Status == status
		}
	}
	return false
}
