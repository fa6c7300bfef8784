// Package schemas embeds the JSON Schemas gridscan validates against.
package schemas

import _ "embed"

// ResultSchemaJSON describes an analysis result payload.
//
//go:embed result.schema.json
var ResultSchemaJSON string

// ConfigSchemaJSON describes the .gridscan.yaml project configuration.
//
//go:embed config.schema.json
var ConfigSchemaJSON string
