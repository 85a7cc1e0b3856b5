package lower

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/checker"
	"github.com/lhaig/flowgraph/internal/consteval"
	"github.com/lhaig/flowgraph/internal/flow"
)

// Scope is where the lowered code lives.
type Scope string

const (
	Global  Scope = "Global"
	Service Scope = "Service"
	Local   Scope = "Local"
)

// Options carries the context of one lowering call.
type Options struct {
	Oracle   checker.Oracle
	Source   string // text the syntax tree was parsed from
	FileName string
	Scope    Scope

	// DataMappers and NaturalFunctions name the module's data-mapping and
	// natural-language functions, with the range of their declarations.
	DataMappers      map[string]ast.Span
	NaturalFunctions map[string]ast.Span

	// ForceAssign lowers JSON, XML and byte-array literal initializers as
	// plain variables instead of payload nodes.
	ForceAssign bool

	// Constants holds folded module constants used to evaluate retry counts.
	Constants map[string]any
	Folder    *consteval.Folder

	Logger *slog.Logger
}

// SchemaMismatchError reports a well-known construct that lacks a part the
// flow graph cannot represent it without.
type SchemaMismatchError struct {
	Construct string
	Missing   []string
	Range     flow.LineRange
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s is missing required %s",
		e.Range.FileName, e.Range.StartLine, e.Range.StartColumn,
		e.Construct, strings.Join(e.Missing, " and "))
}

// abort carries a fatal error from deep in the traversal to Lower.
type abort struct {
	err error
}
