package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the verification context. These mirror the values the chart
// templates inject when the operator of the release overrides nothing.
const (
	DefaultServicePort    = 9047
	DefaultTimeout        = 300 * time.Second
	DefaultPollInterval   = 5 * time.Second
	DefaultExpectedStatus = "RUNNING"
	DefaultServiceName    = "dremio-client"

	// HealthPath is the coordinator health endpoint probed after the pods
	// report ready.
	HealthPath = "/api/v3/server_status"
)

// serviceAccountNamespaceFile holds the namespace of the pod when running
// in-cluster as a hook job.
const serviceAccountNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

// Config is the verification context for a single run. It is assembled once
// from flags, environment and an optional config file, then discarded when
// the process exits.
type Config struct {
	// Namespace the coordinator pods live in.
	Namespace string `yaml:"namespace"`

	// ReleaseName and ChartName are used to derive the default label
	// selector when none is given explicitly.
	ReleaseName string `yaml:"releaseName"`
	ChartName   string `yaml:"chartName"`

	// Selector matches the coordinator pods.
	Selector map[string]string `yaml:"selector"`

	// ServiceName and ServicePort locate the coordinator service for the
	// HTTP health probe.
	ServiceName string `yaml:"serviceName"`
	ServicePort int    `yaml:"servicePort"`

	// Timeout bounds the readiness wait. PollInterval is the wait's
	// re-check cadence.
	Timeout      time.Duration `yaml:"-"`
	PollInterval time.Duration `yaml:"-"`

	// ExpectedStatus is compared against the server_status JSON field when
	// CoordinatorEnabled is set.
	ExpectedStatus     string `yaml:"expectedStatus"`
	CoordinatorEnabled bool   `yaml:"coordinatorEnabled"`

	// ProbePods additionally probes each ready pod's own endpoint.
	ProbePods bool `yaml:"probePods"`

	// TimeoutSeconds and PollIntervalSeconds are the file/env facing forms
	// of Timeout and PollInterval.
	TimeoutSeconds      int `yaml:"timeoutSeconds"`
	PollIntervalSeconds int `yaml:"pollIntervalSeconds"`
}

// Default returns a Config populated with the chart defaults.
func Default() *Config {
	return &Config{
		ServiceName:    DefaultServiceName,
		ServicePort:    DefaultServicePort,
		Timeout:        DefaultTimeout,
		PollInterval:   DefaultPollInterval,
		ExpectedStatus: DefaultExpectedStatus,
	}
}

// EffectiveSelector returns the configured selector, or one derived from the
// chart and release names when none was set.
func (c *Config) EffectiveSelector() map[string]string {
	if len(c.Selector) > 0 {
		return c.Selector
	}

	selector := map[string]string{
		"role": "dremio-coordinator",
	}
	if c.ChartName != "" {
		selector["app"] = c.ChartName
	}
	if c.ReleaseName != "" {
		selector["release"] = c.ReleaseName
	}
	return selector
}

// HealthURL builds the coordinator health endpoint URL.
func (c *Config) HealthURL() string {
	return fmt.Sprintf("http://%s:%d%s", c.ServiceName, c.ServicePort, HealthPath)
}

// ApplyEnv fills unset fields from the hook pod's environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NAMESPACE"); v != "" && c.Namespace == "" {
		c.Namespace = v
	}
	if v := os.Getenv("RELEASE_NAME"); v != "" && c.ReleaseName == "" {
		c.ReleaseName = v
	}
	if v := os.Getenv("CHART_NAME"); v != "" && c.ChartName == "" {
		c.ChartName = v
	}
	if v := os.Getenv("DREMIO_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("DREMIO_SERVICE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.ServicePort = port
		}
	}
	if v := os.Getenv("EXPECTED_STATUS"); v != "" {
		c.ExpectedStatus = v
	}
	if v := os.Getenv("COORDINATOR_ENABLED"); v != "" {
		c.CoordinatorEnabled = parseBool(v)
	}
}

// ResolveNamespace falls back to the in-cluster service account namespace
// when the namespace was not configured. Hook jobs always run in the release
// namespace, so the mounted token's namespace is the right default.
func (c *Config) ResolveNamespace() error {
	if c.Namespace != "" {
		return nil
	}

	data, err := os.ReadFile(serviceAccountNamespaceFile)
	if err != nil {
		return fmt.Errorf("namespace not configured and not running in-cluster: %w", err)
	}
	c.Namespace = strings.TrimSpace(string(data))
	if c.Namespace == "" {
		return fmt.Errorf("service account namespace file is empty")
	}
	return nil
}

// Normalize converts the file/env facing second counts into durations.
func (c *Config) Normalize() {
	if c.TimeoutSeconds > 0 {
		c.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	if c.PollIntervalSeconds > 0 {
		c.PollInterval = time.Duration(c.PollIntervalSeconds) * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ServicePort == 0 {
		c.ServicePort = DefaultServicePort
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.ExpectedStatus == "" {
		c.ExpectedStatus = DefaultExpectedStatus
	}
}

// Validate checks the assembled context before any cluster call is made.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if len(c.EffectiveSelector()) == 0 {
		return fmt.Errorf("label selector is empty; set selector or chart/release names")
	}
	if err := ValidateHostname(c.ServiceName); err != nil {
		return fmt.Errorf("invalid service name %q: %w", c.ServiceName, err)
	}
	if c.ServicePort < 1 || c.ServicePort > 65535 {
		return fmt.Errorf("service port must be between 1 and 65535, got %d", c.ServicePort)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.PollInterval <= 0 || c.PollInterval > c.Timeout {
		return fmt.Errorf("poll interval must be positive and no longer than the timeout")
	}
	if c.ExpectedStatus == "" {
		return fmt.Errorf("expected status is empty")
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
