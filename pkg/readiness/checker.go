package readiness

import (
	"context"
	"fmt"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Checker lists pods by label selector and evaluates readiness predicates
// against them.
type Checker struct {
	client    client.Client
	predicate Predicate
}

// NewChecker creates a checker that requires the PodReady condition.
func NewChecker(c client.Client) *Checker {
	return &Checker{
		client:    c,
		predicate: &PodReadyPredicate{},
	}
}

// NewCheckerWithPredicate creates a checker with a custom predicate.
func NewCheckerWithPredicate(c client.Client, p Predicate) *Checker {
	return &Checker{
		client:    c,
		predicate: p,
	}
}

// ListMatching returns the pods in the namespace matching the selector.
func (c *Checker) ListMatching(ctx context.Context, namespace string, selector map[string]string) ([]corev1.Pod, error) {
	podList := &corev1.PodList{}
	err := c.client.List(ctx, podList,
		client.InNamespace(namespace),
		client.MatchingLabels(selector),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	return podList.Items, nil
}

// NotMatching returns the names of pods that fail the predicate.
func (c *Checker) NotMatching(pods []corev1.Pod) []string {
	var names []string
	for i := range pods {
		if !c.predicate.Matches(&pods[i]) {
			names = append(names, pods[i].Name)
		}
	}
	sort.Strings(names)
	return names
}

// WaitAllReady polls until every pod matching the selector satisfies the
// predicate, re-listing on each tick so pods replaced during the wait are
// picked up. On timeout it returns the last observed pods together with the
// names of the pods that never became ready.
func (c *Checker) WaitAllReady(
	ctx context.Context,
	namespace string,
	selector map[string]string,
	interval, timeout time.Duration,
) ([]corev1.Pod, []string, error) {
	var (
		lastPods     []corev1.Pod
		lastNotReady []string
	)

	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true,
		func(ctx context.Context) (bool, error) {
			pods, err := c.ListMatching(ctx, namespace, selector)
			if err != nil {
				// Transient API errors should not abort the wait.
				return false, nil
			}
			lastPods = pods
			lastNotReady = c.NotMatching(pods)
			if len(pods) == 0 {
				return false, nil
			}
			return len(lastNotReady) == 0, nil
		})
	if err != nil {
		if wait.Interrupted(err) {
			return lastPods, lastNotReady, fmt.Errorf("timed out after %s waiting for pods %v: %w",
				timeout, lastNotReady, err)
		}
		return lastPods, lastNotReady, err
	}

	return lastPods, nil, nil
}
