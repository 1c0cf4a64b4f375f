package kustomize

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// Result reports what an update did to the file.
type Result struct {
	// Created is true when no matching patch existed and one was appended.
	Created bool

	// Changed is false when the merged document is byte-identical to the
	// file's current content, in which case nothing was written.
	Changed bool

	// Rendered is the document after the update.
	Rendered []byte
}

// Updater merges port mappings into a kustomization.yaml.
type Updater struct {
	path string
}

// NewUpdater creates an updater for the given kustomization.yaml path.
func NewUpdater(path string) *Updater {
	return &Updater{path: path}
}

// Update merges the mappings into the kind's patch block and writes the file
// back, unless the result is unchanged or dryRun is set.
func (u *Updater) Update(kind Kind, updates map[int]string, dryRun bool) (*Result, error) {
	targetPath, err := kind.TargetPath()
	if err != nil {
		return nil, err
	}

	original, err := os.ReadFile(u.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", u.path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(original, &doc); err != nil {
		return nil, fmt.Errorf("%s is not valid YAML: %w", u.path, err)
	}
	root := documentRoot(&doc)

	patches := findOrCreateSequence(root, "patches")
	entry := findPatchEntry(patches, targetPath)

	current := make(map[int]string)
	created := entry == nil
	if entry != nil {
		current = ParseMappings(entry.Value)
	}

	merged := MergeMappings(current, updates)
	patchText := BuildPatchText(targetPath, merged)

	if entry != nil {
		setLiteral(entry, patchText)
	} else {
		appendPatchEntry(patches, patchText)
	}

	rendered, err := render(&doc)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Created:  created,
		Changed:  xxhash.Sum64(rendered) != xxhash.Sum64(original),
		Rendered: rendered,
	}

	if dryRun || !result.Changed {
		return result, nil
	}

	if err := os.WriteFile(u.path, rendered, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", u.path, err)
	}
	return result, nil
}

// documentRoot returns the mapping node of the document, creating one for an
// empty file.
func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}

	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	doc.Kind = yaml.DocumentNode
	doc.Content = []*yaml.Node{root}
	return root
}

// findOrCreateSequence returns the sequence under the given key of a mapping
// node, appending an empty one when the key is missing.
func findOrCreateSequence(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	seqNode := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	mapping.Content = append(mapping.Content, keyNode, seqNode)
	return seqNode
}

// findPatchEntry locates the scalar patch node of an existing add-op patch
// for the target path.
func findPatchEntry(patches *yaml.Node, targetPath string) *yaml.Node {
	for _, item := range patches.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		for i := 0; i+1 < len(item.Content); i += 2 {
			if item.Content[i].Value != "patch" {
				continue
			}
			value := item.Content[i+1]
			if strings.Contains(value.Value, "path: "+targetPath) &&
				strings.Contains(value.Value, "- op: add") {
				return value
			}
		}
	}
	return nil
}

// appendPatchEntry adds a new {patch: |literal} entry to the sequence.
func appendPatchEntry(patches *yaml.Node, patchText string) {
	entry := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "patch"},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: patchText, Style: yaml.LiteralStyle},
		},
	}
	patches.Content = append(patches.Content, entry)
}

// setLiteral replaces a scalar's content, keeping literal block style.
func setLiteral(node *yaml.Node, text string) {
	node.Value = text
	node.Style = yaml.LiteralStyle
	node.Tag = "!!str"
}

// render marshals the document with two-space indentation.
func render(doc *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}
	return buf.Bytes(), nil
}
