package catalog

import (
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const packageSchemaURL = "https://flowgraph.dev/schemas/package.json"

// packageSchemaJSON validates package documents before they are decoded.
const packageSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowgraph.dev/schemas/package.json",
  "type": "object",
  "required": ["org", "name", "version"],
  "properties": {
    "org": { "type": "string", "minLength": 1 },
    "name": { "type": "string", "minLength": 1 },
    "version": { "type": "string", "pattern": "^[0-9]+\\.[0-9]+\\.[0-9]+" },
    "doc": { "type": "string" },
    "classes": { "type": "array", "items": { "$ref": "#/$defs/class" } },
    "functions": { "type": "array", "items": { "$ref": "#/$defs/function" } },
    "records": { "type": "array", "items": { "$ref": "#/$defs/record" } }
  },
  "additionalProperties": false,
  "$defs": {
    "class": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "doc": { "type": "string" },
        "client": { "type": "boolean" },
        "markers": { "type": "array", "items": { "type": "string", "pattern": "^[^:]+/[^:]+:[A-Za-z_][A-Za-z0-9_]*$" } },
        "init": { "$ref": "#/$defs/function" },
        "methods": { "type": "array", "items": { "$ref": "#/$defs/function" } },
        "fields": { "type": "array", "items": { "$ref": "#/$defs/field" } }
      },
      "additionalProperties": false
    },
    "function": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "doc": { "type": "string" },
        "kind": { "type": "string", "enum": ["function", "method", "remote", "resource"] },
        "accessor": { "type": "string" },
        "path": { "type": "array", "items": { "type": "string" } },
        "params": { "type": "array", "items": { "$ref": "#/$defs/param" } },
        "returns": { "type": "string" }
      },
      "additionalProperties": false
    },
    "param": {
      "type": "object",
      "required": ["name", "kind", "type"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "kind": { "type": "string", "enum": ["REQUIRED", "DEFAULTABLE", "REST", "INCLUDED_RECORD", "INFERRED"] },
        "type": { "type": "string", "minLength": 1 },
        "default": { "type": "string" },
        "doc": { "type": "string" }
      },
      "additionalProperties": false
    },
    "record": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "doc": { "type": "string" },
        "fields": { "type": "array", "items": { "$ref": "#/$defs/field" } },
        "rest": { "type": "string" }
      },
      "additionalProperties": false
    },
    "field": {
      "type": "object",
      "required": ["name", "type"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "minLength": 1 },
        "default": { "type": "string" },
        "optional": { "type": "boolean" },
        "doc": { "type": "string" }
      },
      "additionalProperties": false
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func packageSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.AssertFormat()
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(packageSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("unmarshal package schema: %w", err)
			return
		}
		if err := c.AddResource(packageSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add package schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(packageSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidationError lists the schema violations of a package document.
type ValidationError struct {
	Source     string
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("catalog: invalid package document %s: %s", e.Source, e.Violations[0])
	}
	return fmt.Sprintf("catalog: invalid package document %s: %d violations", e.Source, len(e.Violations))
}

// Validate checks a raw package document against the package schema.
// source names the document in error messages.
func Validate(source string, data []byte) error {
	s, err := packageSchema()
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return fmt.Errorf("catalog: decode %s: %w", source, err)
	}
	if err := s.Validate(doc); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return &ValidationError{Source: source, Violations: []string{err.Error()}}
		}
		return &ValidationError{Source: source, Violations: collectViolations(verr)}
	}
	return nil
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var out []string
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
