package kustomize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const baseKustomization = `apiVersion: kustomize.config.k8s.io/v1beta1
kind: Kustomization
resources:
- ingress-nginx.yaml
`

func writeKustomization(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kustomization.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestUpdateCreatesPatch(t *testing.T) {
	path := writeKustomization(t, baseKustomization)

	result, err := NewUpdater(path).Update(KindTCP, map[int]string{
		31010: TCPValue("dremio", "dremio-client", 31010),
	}, false)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !result.Created {
		t.Error("Created = false, want true")
	}
	if !result.Changed {
		t.Error("Changed = false, want true")
	}

	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	content := string(written)
	if !strings.Contains(content, "path: /spec/values/tcp") {
		t.Errorf("written file lacks the patch path:\n%s", content)
	}
	if !strings.Contains(content, "31010: dremio/dremio-client:31010") {
		t.Errorf("written file lacks the mapping:\n%s", content)
	}
	// The original resources must survive the round trip.
	if !strings.Contains(content, "ingress-nginx.yaml") {
		t.Errorf("written file lost existing content:\n%s", content)
	}
}

func TestUpdateMergesExistingPatch(t *testing.T) {
	existing := baseKustomization + `patches:
- patch: |-
    - op: add
      path: /spec/values/tcp
      value: |
        9047: dremio/dremio-client:9047
`
	path := writeKustomization(t, existing)

	result, err := NewUpdater(path).Update(KindTCP, map[int]string{
		31010: TCPValue("dremio", "dremio-client", 31010),
	}, false)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if result.Created {
		t.Error("Created = true, want false for an existing patch")
	}

	mappings := ParseMappings(string(result.Rendered))
	if mappings[9047] != "dremio/dremio-client:9047" {
		t.Errorf("existing mapping lost: %v", mappings)
	}
	if mappings[31010] != "dremio/dremio-client:31010" {
		t.Errorf("new mapping missing: %v", mappings)
	}
}

func TestUpdateOverridesConflictingKey(t *testing.T) {
	existing := baseKustomization + `patches:
- patch: |-
    - op: add
      path: /spec/values/tcp
      value: |
        9047: dremio/dremio-client:9047
`
	path := writeKustomization(t, existing)

	result, err := NewUpdater(path).Update(KindTCP, map[int]string{
		9047: TCPValue("other", "other-svc", 9047),
	}, false)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	mappings := ParseMappings(string(result.Rendered))
	if mappings[9047] != "other/other-svc:9047" {
		t.Errorf("mapping not overridden: %v", mappings)
	}
}

func TestUpdateNoOpLeavesFileAlone(t *testing.T) {
	path := writeKustomization(t, baseKustomization)

	updates := map[int]string{31010: TCPValue("dremio", "dremio-client", 31010)}
	if _, err := NewUpdater(path).Update(KindTCP, updates, false); err != nil {
		t.Fatalf("first Update() error = %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}

	result, err := NewUpdater(path).Update(KindTCP, updates, false)
	if err != nil {
		t.Fatalf("second Update() error = %v", err)
	}
	if result.Changed {
		t.Error("Changed = true for an identical update, want false")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(before) != string(after) {
		t.Error("file content changed on a no-op update")
	}
}

func TestUpdateDryRun(t *testing.T) {
	path := writeKustomization(t, baseKustomization)

	result, err := NewUpdater(path).Update(KindNodePort, map[int]string{
		31010: NodePortValue(31010),
	}, true)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !result.Changed {
		t.Error("Changed = false, want true in dry run")
	}
	if !strings.Contains(string(result.Rendered), "path: /spec/values/controller/service/nodePorts/tcp") {
		t.Errorf("rendered output lacks the nodeport patch:\n%s", result.Rendered)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(after) != baseKustomization {
		t.Error("dry run modified the file")
	}
}

func TestUpdateKindsAreIndependent(t *testing.T) {
	path := writeKustomization(t, baseKustomization)
	updater := NewUpdater(path)

	if _, err := updater.Update(KindTCP, map[int]string{
		31010: TCPValue("dremio", "dremio-client", 31010),
	}, false); err != nil {
		t.Fatalf("tcp Update() error = %v", err)
	}
	result, err := updater.Update(KindNodePort, map[int]string{
		31010: NodePortValue(31010),
	}, false)
	if err != nil {
		t.Fatalf("nodeport Update() error = %v", err)
	}

	content := string(result.Rendered)
	if !strings.Contains(content, "path: /spec/values/tcp") {
		t.Errorf("tcp patch missing after nodeport update:\n%s", content)
	}
	if !strings.Contains(content, "path: /spec/values/controller/service/nodePorts/tcp") {
		t.Errorf("nodeport patch missing:\n%s", content)
	}
}

func TestUpdateMissingFile(t *testing.T) {
	updater := NewUpdater(filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := updater.Update(KindTCP, nil, false); err == nil {
		t.Fatal("Update() succeeded on missing file, want error")
	}
}

func TestUpdateInvalidYAML(t *testing.T) {
	path := writeKustomization(t, "patches: [\n")
	if _, err := NewUpdater(path).Update(KindTCP, nil, false); err == nil {
		t.Fatal("Update() succeeded on invalid YAML, want error")
	}
}
