// Package kustomize updates TCP and NodePort port-mapping patches inside a
// kustomization.yaml. The mappings live in JSON6902 add-op patches whose
// value is a literal YAML block; updates merge into the existing block
// rather than replacing it.
package kustomize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind selects which patch block is updated.
type Kind string

const (
	// KindTCP maps host ports to namespace/service:containerPort targets.
	KindTCP Kind = "tcp"

	// KindNodePort maps node ports to container ports.
	KindNodePort Kind = "nodeport"
)

// Patch paths per kind.
const (
	tcpPatchPath      = "/spec/values/tcp"
	nodePortPatchPath = "/spec/values/controller/service/nodePorts/tcp"
)

// TargetPath returns the JSON6902 path the kind's patch adds.
func (k Kind) TargetPath() (string, error) {
	switch k {
	case KindTCP:
		return tcpPatchPath, nil
	case KindNodePort:
		return nodePortPatchPath, nil
	default:
		return "", fmt.Errorf("unknown patch kind %q", k)
	}
}

// TCPValue formats the right-hand side of a tcp mapping.
func TCPValue(namespace, service string, containerPort int) string {
	return fmt.Sprintf("%s/%s:%d", namespace, service, containerPort)
}

// NodePortValue formats the right-hand side of a nodeport mapping.
func NodePortValue(containerPort int) string {
	return strconv.Itoa(containerPort)
}

// ParseMappings extracts the numeric-key mappings from an existing patch
// block. Lines before the literal "value: |" marker are ignored, as is
// anything that does not look like a port key.
func ParseMappings(patchText string) map[int]string {
	current := make(map[int]string)
	inValueBlock := false

	for _, line := range strings.Split(patchText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "value: |" {
			inValueBlock = true
			continue
		}
		if !inValueBlock {
			continue
		}

		key, value, found := strings.Cut(trimmed, ":")
		if !found {
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			continue
		}
		current[port] = strings.TrimSpace(value)
	}
	return current
}

// BuildPatchText renders a JSON6902 add-op patch block with the mappings
// sorted numerically. An empty mapping set renders an empty object so the
// patch stays valid.
func BuildPatchText(path string, mappings map[int]string) string {
	lines := []string{
		"- op: add",
		fmt.Sprintf("  path: %s", path),
		"  value: |",
	}

	keys := make([]int, 0, len(mappings))
	for k := range mappings {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("    %d: %s", k, mappings[k]))
	}
	if len(mappings) == 0 {
		lines = append(lines, "    {}")
	}

	return strings.Join(lines, "\n")
}

// MergeMappings overlays updates onto current; updated keys win.
func MergeMappings(current, updates map[int]string) map[int]string {
	merged := make(map[int]string, len(current)+len(updates))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}
