/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that the hook job can authenticate on managed clusters.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/chazu/dremio-smoketest/pkg/config"
	"github.com/chazu/dremio-smoketest/pkg/kustomize"
	"github.com/chazu/dremio-smoketest/pkg/probe"
	"github.com/chazu/dremio-smoketest/pkg/verify"
)

// Exit codes: 0 success, 1 verification failure, 2 usage or configuration
// error. Helm hook semantics only distinguish zero from non-zero, but the
// split keeps misconfiguration distinguishable in job logs.
const (
	exitVerifyFailed = 1
	exitUsage        = 2
)

// probeTimeout bounds each individual HTTP probe request.
const probeTimeout = 30 * time.Second

var (
	scheme  = runtime.NewScheme()
	mainLog = ctrl.Log.WithName("smoketest")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	args := os.Args[1:]

	cmd := "verify"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "verify":
		os.Exit(runVerify(args))
	case "patch-ports":
		os.Exit(runPatchPorts(args))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected verify or patch-ports)\n", cmd)
		os.Exit(exitUsage)
	}
}

// verifyFlags holds the flag values for the verify command so that explicit
// flags can override file and environment settings.
type verifyFlags struct {
	configFile     string
	namespace      string
	release        string
	chart          string
	selector       string
	service        string
	port           int
	timeout        time.Duration
	interval       time.Duration
	expectedStatus string
	coordinator    bool
	probePods      bool
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)

	vf := verifyFlags{}
	fs.StringVar(&vf.configFile, "config", "", "Path to an optional YAML config file.")
	fs.StringVar(&vf.namespace, "namespace", "", "Namespace the coordinator pods live in. "+
		"Defaults to the in-cluster service account namespace.")
	fs.StringVar(&vf.release, "release", "", "Helm release name, used to derive the default selector.")
	fs.StringVar(&vf.chart, "chart", "", "Chart name, used to derive the default selector.")
	fs.StringVar(&vf.selector, "selector", "", "Explicit label selector as comma-separated key=value pairs.")
	fs.StringVar(&vf.service, "service", config.DefaultServiceName, "Coordinator service name to probe.")
	fs.IntVar(&vf.port, "port", config.DefaultServicePort, "Coordinator service port.")
	fs.DurationVar(&vf.timeout, "timeout", config.DefaultTimeout, "Bound on the readiness wait.")
	fs.DurationVar(&vf.interval, "interval", config.DefaultPollInterval, "Readiness poll interval.")
	fs.StringVar(&vf.expectedStatus, "expected-status", config.DefaultExpectedStatus,
		"Expected server_status value when the coordinator check is enabled.")
	fs.BoolVar(&vf.coordinator, "coordinator-enabled", false,
		"Assert the server_status field against the expected value.")
	fs.BoolVar(&vf.probePods, "probe-pods", false,
		"Additionally probe each coordinator pod's own endpoint.")

	opts := zap.Options{Development: false}
	opts.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	cfg, err := buildConfig(fs, vf)
	if err != nil {
		mainLog.Error(err, "invalid configuration")
		return exitUsage
	}

	restCfg, err := ctrl.GetConfig()
	if err != nil {
		mainLog.Error(err, "unable to load kubeconfig")
		return exitUsage
	}
	k8sClient, err := client.New(restCfg, client.Options{Scheme: scheme})
	if err != nil {
		mainLog.Error(err, "unable to create cluster client")
		return exitUsage
	}

	verifier, err := verify.NewVerifier(k8sClient, probe.NewClient(probeTimeout), cfg)
	if err != nil {
		mainLog.Error(err, "unable to build verification plan")
		return exitUsage
	}

	ctx := ctrl.SetupSignalHandler()
	report, err := verifier.Run(ctx)

	for _, res := range report.Results {
		if res.Err != nil {
			continue
		}
		mainLog.Info("stage passed", "stage", res.Stage, "detail", res.Detail,
			"duration", res.Duration.String())
	}

	if err != nil {
		mainLog.Error(err, "smoke test failed")
		return exitVerifyFailed
	}

	mainLog.Info("smoke test passed", "namespace", cfg.Namespace, "service", cfg.ServiceName)
	return 0
}

// buildConfig assembles the verification context with precedence: defaults,
// then config file, then environment, then explicit flags.
func buildConfig(fs *flag.FlagSet, vf verifyFlags) (*config.Config, error) {
	cfg := config.Default()

	if vf.configFile != "" {
		loaded, err := config.LoadFile(vf.configFile, cfg)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.ApplyEnv()

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["namespace"] {
		cfg.Namespace = vf.namespace
	}
	if set["release"] {
		cfg.ReleaseName = vf.release
	}
	if set["chart"] {
		cfg.ChartName = vf.chart
	}
	if set["selector"] {
		selector, err := parseSelector(vf.selector)
		if err != nil {
			return nil, err
		}
		cfg.Selector = selector
	}
	if set["service"] {
		cfg.ServiceName = vf.service
	}
	if set["port"] {
		cfg.ServicePort = vf.port
	}
	if set["timeout"] {
		cfg.Timeout = vf.timeout
		cfg.TimeoutSeconds = 0
	}
	if set["interval"] {
		cfg.PollInterval = vf.interval
		cfg.PollIntervalSeconds = 0
	}
	if set["expected-status"] {
		cfg.ExpectedStatus = vf.expectedStatus
	}
	if set["coordinator-enabled"] {
		cfg.CoordinatorEnabled = vf.coordinator
	}
	if set["probe-pods"] {
		cfg.ProbePods = vf.probePods
	}

	cfg.Normalize()
	if err := cfg.ResolveNamespace(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseSelector turns "k1=v1,k2=v2" into a label map.
func parseSelector(s string) (map[string]string, error) {
	selector := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" || value == "" {
			return nil, fmt.Errorf("invalid selector pair %q", pair)
		}
		selector[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if len(selector) == 0 {
		return nil, fmt.Errorf("selector %q contains no pairs", s)
	}
	return selector, nil
}

func runPatchPorts(args []string) int {
	fs := flag.NewFlagSet("patch-ports", flag.ExitOnError)

	var (
		file       string
		dryRun     bool
		secondKey  int
		secondPort int
	)
	fs.StringVar(&file, "file", "kustomization.yaml", "Path to the kustomization.yaml to update.")
	fs.BoolVar(&dryRun, "dry-run", false, "Print the updated document instead of writing it.")
	fs.IntVar(&secondKey, "second-key", 0, "Optional second mapping key.")
	fs.IntVar(&secondPort, "second-port", 0, "Optional second mapping container port.")

	opts := zap.Options{Development: false}
	opts.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	updates, kind, err := parsePatchArgs(fs.Args(), secondKey, secondPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "patch-ports: %v\n", err)
		fmt.Fprintf(os.Stderr, "usage: patch-ports [flags] tcp MAIN_KEY NAMESPACE SERVICE CONTAINER_PORT\n")
		fmt.Fprintf(os.Stderr, "       patch-ports [flags] nodeport MAIN_KEY CONTAINER_PORT\n")
		return exitUsage
	}

	result, err := kustomize.NewUpdater(file).Update(kind, updates, dryRun)
	if err != nil {
		mainLog.Error(err, "failed to update port patch", "file", file)
		return exitVerifyFailed
	}

	if dryRun {
		fmt.Print(string(result.Rendered))
		return 0
	}

	switch {
	case result.Created:
		mainLog.Info("created port patch", "file", file, "kind", string(kind))
	case result.Changed:
		mainLog.Info("updated port patch", "file", file, "kind", string(kind))
	default:
		mainLog.Info("port patch already up to date", "file", file, "kind", string(kind))
	}
	return 0
}

// parsePatchArgs interprets the positional arguments of patch-ports.
func parsePatchArgs(args []string, secondKey, secondPort int) (map[int]string, kustomize.Kind, error) {
	if len(args) < 2 {
		return nil, "", fmt.Errorf("expected a patch kind and a main key")
	}

	kind := kustomize.Kind(args[0])
	mainKey, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, "", fmt.Errorf("main key must be a port number, got %q", args[1])
	}
	rest := args[2:]

	updates := map[int]string{}
	switch kind {
	case kustomize.KindTCP:
		if len(rest) != 3 {
			return nil, "", fmt.Errorf("tcp expects NAMESPACE SERVICE CONTAINER_PORT, got %d arguments", len(rest))
		}
		containerPort, err := strconv.Atoi(rest[2])
		if err != nil {
			return nil, "", fmt.Errorf("container port must be a number, got %q", rest[2])
		}
		updates[mainKey] = kustomize.TCPValue(rest[0], rest[1], containerPort)
		if secondKey > 0 {
			updates[secondKey] = kustomize.TCPValue(rest[0], rest[1], secondPort)
		}
	case kustomize.KindNodePort:
		if len(rest) != 1 {
			return nil, "", fmt.Errorf("nodeport expects CONTAINER_PORT, got %d arguments", len(rest))
		}
		containerPort, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, "", fmt.Errorf("container port must be a number, got %q", rest[0])
		}
		updates[mainKey] = kustomize.NodePortValue(containerPort)
		if secondKey > 0 {
			updates[secondKey] = kustomize.NodePortValue(secondPort)
		}
	default:
		return nil, "", fmt.Errorf("unknown patch kind %q", args[0])
	}

	return updates, kind, nil
}
