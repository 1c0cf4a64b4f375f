// Package cue provides the embedded CUE schema for the smoke-test config file.
package cue

import "embed"

// SchemaFS contains the embedded verification schema.
//
//go:embed verification/*.cue
var SchemaFS embed.FS

// SchemaFile is the path of the config schema within the embedded filesystem.
const SchemaFile = "verification/schema.cue"
