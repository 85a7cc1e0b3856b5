package checker

import (
	"fmt"

	"github.com/lhaig/flowgraph/internal/ast"
)

// SymbolKind represents the kind of symbol
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymParam
	SymField
	SymFunction
	SymMethod
	SymConstructor
	SymClass
	SymModule
	SymWorker
)

// String returns the string representation of the symbol kind
func (sk SymbolKind) String() string {
	switch sk {
	case SymVariable:
		return "variable"
	case SymParam:
		return "parameter"
	case SymField:
		return "field"
	case SymFunction:
		return "function"
	case SymMethod:
		return "method"
	case SymConstructor:
		return "constructor"
	case SymClass:
		return "class"
	case SymModule:
		return "module"
	case SymWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// Symbol is a resolved name.
type Symbol struct {
	Name     string
	Kind     SymbolKind
	Type     *Type
	Function *Function // functions, methods and constructors
	Module   string    // module path for SymModule and library symbols
	Final    bool
	Public   bool
	Decl     ast.Node // declaring node; nil for library symbols
}

// RefKind says how a reference uses its symbol.
type RefKind int

const (
	RefDecl RefKind = iota
	RefAssign
	RefRead
)

// Reference is one occurrence of a symbol in the source.
type Reference struct {
	Span  ast.Span
	Node  ast.Node
	Kind  RefKind
	Value ast.Expression // initializer or assigned value for RefDecl and RefAssign
}

// Scope represents a lexical scope with a symbol table
type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
}

// NewScope creates a new scope with an optional parent
func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent:  parent,
		symbols: make(map[string]*Symbol),
	}
}

// Define adds a symbol to the current scope
// Returns an error if the symbol is already defined in this scope
func (s *Scope) Define(name string, sym *Symbol) error {
	if _, exists := s.symbols[name]; exists {
		return fmt.Errorf("symbol '%s' already defined in this scope", name)
	}
	s.symbols[name] = sym
	return nil
}

// Resolve looks up a symbol in the current scope and parent scopes
// Returns nil if the symbol is not found
func (s *Scope) Resolve(name string) *Symbol {
	if sym, ok := s.symbols[name]; ok {
		return sym
	}
	if s.parent != nil {
		return s.parent.Resolve(name)
	}
	return nil
}

// Parent returns the parent scope
func (s *Scope) Parent() *Scope {
	return s.parent
}
