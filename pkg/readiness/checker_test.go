package readiness

import (
	"context"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func coordinatorPod(name string, ready bool) *corev1.Pod {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "dremio",
			Labels: map[string]string{
				"app":  "dremio",
				"role": "dremio-coordinator",
			},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: status},
			},
		},
	}
}

var coordinatorSelector = map[string]string{"role": "dremio-coordinator"}

func newTestChecker(objs ...client.Object) *Checker {
	c := fake.NewClientBuilder().WithObjects(objs...).Build()
	return NewChecker(c)
}

func TestListMatching(t *testing.T) {
	checker := newTestChecker(
		coordinatorPod("coordinator-0", true),
		coordinatorPod("coordinator-1", false),
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{
			Name:      "executor-0",
			Namespace: "dremio",
			Labels:    map[string]string{"role": "dremio-executor"},
		}},
	)

	pods, err := checker.ListMatching(context.Background(), "dremio", coordinatorSelector)
	if err != nil {
		t.Fatalf("ListMatching() error = %v", err)
	}
	if len(pods) != 2 {
		t.Errorf("matched %d pods, want 2", len(pods))
	}
}

func TestListMatchingOtherNamespace(t *testing.T) {
	checker := newTestChecker(coordinatorPod("coordinator-0", true))

	pods, err := checker.ListMatching(context.Background(), "other", coordinatorSelector)
	if err != nil {
		t.Fatalf("ListMatching() error = %v", err)
	}
	if len(pods) != 0 {
		t.Errorf("matched %d pods in wrong namespace, want 0", len(pods))
	}
}

func TestNotMatching(t *testing.T) {
	checker := newTestChecker()

	pods := []corev1.Pod{
		*coordinatorPod("coordinator-1", false),
		*coordinatorPod("coordinator-0", true),
		*coordinatorPod("coordinator-2", false),
	}

	notReady := checker.NotMatching(pods)
	if len(notReady) != 2 {
		t.Fatalf("NotMatching() = %v, want 2 names", notReady)
	}
	// Names come back sorted for stable diagnostics.
	if notReady[0] != "coordinator-1" || notReady[1] != "coordinator-2" {
		t.Errorf("NotMatching() = %v", notReady)
	}
}

func TestWaitAllReadyImmediate(t *testing.T) {
	checker := newTestChecker(
		coordinatorPod("coordinator-0", true),
		coordinatorPod("coordinator-1", true),
	)

	pods, notReady, err := checker.WaitAllReady(context.Background(),
		"dremio", coordinatorSelector, 10*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("WaitAllReady() error = %v", err)
	}
	if len(pods) != 2 {
		t.Errorf("got %d pods, want 2", len(pods))
	}
	if len(notReady) != 0 {
		t.Errorf("notReady = %v, want none", notReady)
	}
}

func TestWaitAllReadyTimesOut(t *testing.T) {
	checker := newTestChecker(
		coordinatorPod("coordinator-0", true),
		coordinatorPod("coordinator-1", false),
	)

	start := time.Now()
	_, notReady, err := checker.WaitAllReady(context.Background(),
		"dremio", coordinatorSelector, 10*time.Millisecond, 100*time.Millisecond)
	if err == nil {
		t.Fatal("WaitAllReady() succeeded, want timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("wait took %s, bound was 100ms", elapsed)
	}
	if len(notReady) != 1 || notReady[0] != "coordinator-1" {
		t.Errorf("notReady = %v, want [coordinator-1]", notReady)
	}
}

func TestWaitAllReadyNoPods(t *testing.T) {
	checker := newTestChecker()

	_, _, err := checker.WaitAllReady(context.Background(),
		"dremio", coordinatorSelector, 10*time.Millisecond, 100*time.Millisecond)
	if err == nil {
		t.Fatal("WaitAllReady() succeeded with no pods, want timeout")
	}
}
