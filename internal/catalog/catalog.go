// Package catalog holds the parameter schemas of library packages that
// flow sources import. Documents are JSON, keyed by module and version.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by sources that have no document for a module.
var ErrNotFound = errors.New("catalog: package not found")

// FunctionKind distinguishes module functions from object members.
type FunctionKind string

const (
	KindFunction FunctionKind = "function"
	KindMethod   FunctionKind = "method"
	KindRemote   FunctionKind = "remote"
	KindResource FunctionKind = "resource"
)

// ParamKind is how a parameter accepts its argument.
type ParamKind string

const (
	ParamRequired       ParamKind = "REQUIRED"
	ParamDefaultable    ParamKind = "DEFAULTABLE"
	ParamRest           ParamKind = "REST"
	ParamIncludedRecord ParamKind = "INCLUDED_RECORD"
	ParamInferred       ParamKind = "INFERRED"
)

// Package is one library package document.
type Package struct {
	Org       string      `json:"org"`
	Name      string      `json:"name"`
	Version   string      `json:"version"`
	Doc       string      `json:"doc,omitempty"`
	Classes   []*Class    `json:"classes,omitempty"`
	Functions []*Function `json:"functions,omitempty"`
	Records   []*Record   `json:"records,omitempty"`
}

// Module returns the import path `org/name`.
func (p *Package) Module() string {
	return p.Org + "/" + p.Name
}

// Class looks up a class by name.
func (p *Package) Class(name string) (*Class, bool) {
	for _, c := range p.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Function looks up a module-level function by name.
func (p *Package) Function(name string) (*Function, bool) {
	for _, f := range p.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Record looks up a record type by name.
func (p *Package) Record(name string) (*Record, bool) {
	for _, r := range p.Records {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Class describes an object type: a client connector, an AI component or
// a plain class. Markers name the abstract types it structurally includes,
// qualified by module path, e.g. "ballerina/ai:KnowledgeBase".
type Class struct {
	Name    string      `json:"name"`
	Doc     string      `json:"doc,omitempty"`
	Client  bool        `json:"client,omitempty"`
	Markers []string    `json:"markers,omitempty"`
	Init    *Function   `json:"init,omitempty"`
	Methods []*Function `json:"methods,omitempty"`
	Fields  []*Field    `json:"fields,omitempty"`
}

// Function describes a module function or an object member.
type Function struct {
	Name     string       `json:"name"`
	Doc      string       `json:"doc,omitempty"`
	Kind     FunctionKind `json:"kind,omitempty"`
	Accessor string       `json:"accessor,omitempty"`
	Path     []string     `json:"path,omitempty"` // resource path; parameters written "[string id]"
	Params   []*Param     `json:"params,omitempty"`
	Returns  string       `json:"returns,omitempty"`
}

// Param describes one declared parameter.
type Param struct {
	Name    string    `json:"name"`
	Kind    ParamKind `json:"kind"`
	Type    string    `json:"type"`
	Default string    `json:"default,omitempty"`
	Doc     string    `json:"doc,omitempty"`
}

// Record describes a record type usable as an included-record parameter.
type Record struct {
	Name   string   `json:"name"`
	Doc    string   `json:"doc,omitempty"`
	Fields []*Field `json:"fields,omitempty"`
	Rest   string   `json:"rest,omitempty"`
}

// Field is a record or class field.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Default  string `json:"default,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Doc      string `json:"doc,omitempty"`
}

// SplitModule splits "org/name" into its parts.
func SplitModule(module string) (org, name string, err error) {
	org, name, ok := strings.Cut(module, "/")
	if !ok || org == "" || name == "" {
		return "", "", fmt.Errorf("catalog: invalid module %q, want org/name", module)
	}
	return org, name, nil
}
