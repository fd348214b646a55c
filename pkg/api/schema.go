package api

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request bodies are validated against compiled JSON Schemas before any
// domain code runs, so handlers only ever see well-formed input.
// completion is optional on mint: omission means the work ran to
// completion, it is not a zero-value mint.

const mintSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["work_id", "principal", "hours", "quality", "witnesses"],
  "additionalProperties": false,
  "properties": {
    "work_id":    {"type": "string", "minLength": 1, "maxLength": 256},
    "principal":  {"type": "string", "minLength": 1, "maxLength": 256},
    "sector":     {"type": "string", "maxLength": 256},
    "hours":      {"type": "number", "exclusiveMinimum": 0},
    "quality":    {"type": "number", "minimum": 0, "maximum": 1},
    "completion": {"type": "number", "minimum": 0, "maximum": 1},
    "witnesses":  {"type": "integer", "minimum": 0}
  }
}`

const revertSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["receipt_id", "quality"],
  "additionalProperties": false,
  "properties": {
    "receipt_id": {"type": "string", "minLength": 1, "maxLength": 256},
    "quality":    {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

const projectSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["principals", "days"],
  "additionalProperties": false,
  "properties": {
    "principals": {"type": "integer", "minimum": 1, "maximum": 100000},
    "days":       {"type": "integer", "minimum": 1, "maximum": 3650},
    "daily_low":  {"type": "number", "minimum": 0},
    "daily_high": {"type": "number", "minimum": 0}
  }
}`

type schemaSet struct {
	mint    *jsonschema.Schema
	revert  *jsonschema.Schema
	project *jsonschema.Schema
}

func compileSchemas() (*schemaSet, error) {
	compile := func(name, raw string) (*jsonschema.Schema, error) {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://osovm.org/schemas/%s.schema.json", name)
		if err := c.AddResource(url, strings.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("schema %s load failed: %w", name, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
		}
		return s, nil
	}

	var (
		set schemaSet
		err error
	)
	if set.mint, err = compile("mint", mintSchema); err != nil {
		return nil, err
	}
	if set.revert, err = compile("revert", revertSchema); err != nil {
		return nil, err
	}
	if set.project, err = compile("project", projectSchema); err != nil {
		return nil, err
	}
	return &set, nil
}
