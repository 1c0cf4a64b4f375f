package probe

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	corev1 "k8s.io/api/core/v1"
)

// maxProbeConcurrency bounds the per-pod probe fan-out. Coordinator pod
// counts are small; this only guards against misconfigured selectors.
const maxProbeConcurrency = 8

// FetchEach probes every pod's own endpoint concurrently, bypassing the
// service. This catches the case where the service answers but an individual
// coordinator behind it does not. Pods without an assigned IP are reported
// as failures.
func (c *Client) FetchEach(ctx context.Context, pods []corev1.Pod, port int, path string) error {
	p := pool.New().WithMaxGoroutines(maxProbeConcurrency).WithErrors()

	for i := range pods {
		pod := &pods[i]
		p.Go(func() error {
			if pod.Status.PodIP == "" {
				return fmt.Errorf("pod %s has no assigned IP", pod.Name)
			}
			url := fmt.Sprintf("http://%s:%d%s", pod.Status.PodIP, port, path)
			if _, err := c.Fetch(ctx, url); err != nil {
				return fmt.Errorf("pod %s: %w", pod.Name, err)
			}
			return nil
		})
	}

	return p.Wait()
}
