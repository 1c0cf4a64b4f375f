package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/chazu/dremio-smoketest/pkg/config"
	"github.com/chazu/dremio-smoketest/pkg/probe"
)

const testNamespace = "dremio"

func readyPod(name string) *corev1.Pod {
	return testPod(name, true)
}

func testPod(name string, ready bool) *corev1.Pod {
	readyStatus := corev1.ConditionFalse
	if ready {
		readyStatus = corev1.ConditionTrue
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNamespace,
			Labels: map[string]string{
				"app":     "dremio",
				"release": "dremio",
				"role":    "dremio-coordinator",
			},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			PodIP: "127.0.0.1",
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: readyStatus},
			},
		},
	}
}

var _ = ginkgo.Describe("Verifier", func() {
	var (
		probeHits   atomic.Int64
		statusBody  atomic.Value // string
		server      *httptest.Server
		cfg         *config.Config
		fakeObjects []client.Object
	)

	ginkgo.BeforeEach(func() {
		probeHits.Store(0)
		statusBody.Store(`{"status": "RUNNING"}`)
		fakeObjects = nil

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			probeHits.Add(1)
			_, _ = w.Write([]byte(statusBody.Load().(string)))
		}))
		ginkgo.DeferCleanup(server.Close)

		u, err := url.Parse(server.URL)
		Expect(err).NotTo(HaveOccurred())
		port, err := strconv.Atoi(u.Port())
		Expect(err).NotTo(HaveOccurred())

		cfg = config.Default()
		cfg.Namespace = testNamespace
		cfg.ChartName = "dremio"
		cfg.ReleaseName = "dremio"
		cfg.ServiceName = "127.0.0.1"
		cfg.ServicePort = port
		cfg.Timeout = 500 * time.Millisecond
		cfg.PollInterval = 20 * time.Millisecond
	})

	run := func() (*Report, error) {
		c := fake.NewClientBuilder().WithObjects(fakeObjects...).Build()
		v, err := NewVerifier(c, probe.NewClient(5*time.Second), cfg)
		Expect(err).NotTo(HaveOccurred())
		return v.Run(context.Background())
	}

	ginkgo.Context("when no pods match the selector", func() {
		ginkgo.It("fails with the no-pods class without probing", func() {
			report, err := run()

			Expect(err).To(MatchError(ErrNoPodsFound))
			Expect(probeHits.Load()).To(BeZero())

			failed := report.Failed()
			Expect(failed).NotTo(BeNil())
			Expect(failed.Stage).To(Equal(StageCountPods))
		})
	})

	ginkgo.Context("when all coordinator pods are ready", func() {
		ginkgo.BeforeEach(func() {
			fakeObjects = []client.Object{readyPod("coordinator-0"), readyPod("coordinator-1")}
		})

		ginkgo.It("succeeds and probes the service exactly once", func() {
			report, err := run()

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Done).To(BeTrue())
			Expect(report.Failed()).To(BeNil())
			Expect(probeHits.Load()).To(Equal(int64(1)))
		})

		ginkgo.It("records the stages in execution order", func() {
			report, err := run()

			Expect(err).NotTo(HaveOccurred())
			stages := make([]Stage, 0, len(report.Results))
			for _, r := range report.Results {
				stages = append(stages, r.Stage)
			}
			Expect(stages).To(Equal([]Stage{StageCountPods, StageWaitReady, StageProbe}))
		})
	})

	ginkgo.Context("when a pod never becomes ready", func() {
		ginkgo.BeforeEach(func() {
			fakeObjects = []client.Object{readyPod("coordinator-0"), testPod("coordinator-1", false)}
		})

		ginkgo.It("times out without probing the service", func() {
			report, err := run()

			Expect(err).To(MatchError(ErrReadinessTimeout))
			Expect(err.Error()).To(ContainSubstring("coordinator-1"))
			Expect(probeHits.Load()).To(BeZero())

			failed := report.Failed()
			Expect(failed).NotTo(BeNil())
			Expect(failed.Stage).To(Equal(StageWaitReady))
		})
	})

	ginkgo.Context("when the service does not answer", func() {
		ginkgo.BeforeEach(func() {
			fakeObjects = []client.Object{readyPod("coordinator-0")}
		})

		ginkgo.It("fails with the unreachable class", func() {
			server.Close()

			report, err := run()

			Expect(err).To(MatchError(ErrServiceUnreachable))
			failed := report.Failed()
			Expect(failed).NotTo(BeNil())
			Expect(failed.Stage).To(Equal(StageProbe))
		})
	})

	ginkgo.Context("with the coordinator status assertion enabled", func() {
		ginkgo.BeforeEach(func() {
			cfg.CoordinatorEnabled = true
			fakeObjects = []client.Object{readyPod("coordinator-0")}
		})

		ginkgo.It("succeeds when the server reports RUNNING", func() {
			report, err := run()

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Done).To(BeTrue())
		})

		ginkgo.It("reuses the probe response instead of fetching again", func() {
			_, err := run()

			Expect(err).NotTo(HaveOccurred())
			Expect(probeHits.Load()).To(Equal(int64(1)))
		})

		ginkgo.It("fails when the server reports a different status", func() {
			statusBody.Store(`{"status": "STARTING"}`)

			report, err := run()

			Expect(err).To(MatchError(ErrUnexpectedStatus))
			Expect(err.Error()).To(ContainSubstring("STARTING"))

			failed := report.Failed()
			Expect(failed).NotTo(BeNil())
			Expect(failed.Stage).To(Equal(StageAssertStatus))
		})

		ginkgo.It("fails when the response is not valid JSON", func() {
			statusBody.Store("<html>login</html>")

			_, err := run()
			Expect(err).To(MatchError(ErrUnexpectedStatus))
		})
	})

	ginkgo.Context("with the coordinator status assertion disabled", func() {
		ginkgo.BeforeEach(func() {
			cfg.CoordinatorEnabled = false
			fakeObjects = []client.Object{readyPod("coordinator-0")}
		})

		ginkgo.It("ignores the reported status", func() {
			statusBody.Store(`{"status": "STARTING"}`)

			report, err := run()

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Done).To(BeTrue())
		})
	})

	ginkgo.Context("with per-pod probes enabled", func() {
		ginkgo.BeforeEach(func() {
			cfg.ProbePods = true
			fakeObjects = []client.Object{readyPod("coordinator-0"), readyPod("coordinator-1")}
		})

		ginkgo.It("probes the service once and every pod once", func() {
			report, err := run()

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Done).To(BeTrue())
			Expect(probeHits.Load()).To(Equal(int64(3)))
		})
	})
})
