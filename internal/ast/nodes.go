package ast

import (
	"github.com/lhaig/flowgraph/internal/diagnostic"
	"github.com/lhaig/flowgraph/internal/lexer"
)

// Span is the exact source extent of a node. Start and End are byte
// offsets (End exclusive); Line and Column locate Start.
type Span struct {
	Start  int
	End    int
	Line   int
	Column int
}

func (s Span) Pos() (int, int) { return s.Line, s.Column }

// Range returns the span itself; embedding Span gives every node this method.
func (s Span) Range() Span { return s }

// Text returns the source text covered by the span.
func (s Span) Text(src string) string {
	if s.Start < 0 || s.End > len(src) || s.Start > s.End {
		return ""
	}
	return src[s.Start:s.End]
}

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Diag converts the span for diagnostic reporting.
func (s Span) Diag() diagnostic.Span { return diagnostic.Span(s) }

// Node is the base interface for all AST nodes
type Node interface {
	Pos() (line, col int)
	Range() Span
}

// Statement nodes
type Statement interface {
	Node
	stmtNode()
}

// Expression nodes
type Expression interface {
	Node
	exprNode()
}

// Program represents one parsed source file
type Program struct {
	Span
	Imports   []*ImportDecl
	Types     []*TypeDecl
	Classes   []*ClassDecl
	Functions []*FunctionDecl
	Services  []*ServiceDecl
	Vars      []*VarDecl
	Comments  []*CommentStmt // module-level comments, in source order
}

// ImportDecl represents `import org/name [as prefix];`
type ImportDecl struct {
	Span
	Org    string
	Module string // dotted module name, e.g. "http" or "ai.openai"
	Prefix string // explicit or derived from the last module segment
}

// Path returns the import path `org/module`.
func (i *ImportDecl) Path() string {
	if i.Org == "" {
		return i.Module
	}
	return i.Org + "/" + i.Module
}

// FunctionDecl represents a module-level function
type FunctionDecl struct {
	Span
	Name       string
	IsPublic   bool
	IsIsolated bool
	Params     []*Param
	ReturnType *TypeRef
	Body       *Block

	Mapping     Expression // `=> expr;` body of a data-mapping function
	External    bool       // `= external;` body
	Annotations []string   // annotations on an external body, e.g. "np:NaturalFunction"
}

// Param represents a function or method parameter. At most one of Rest
// and Included is set.
type Param struct {
	Span
	Name     string
	Type     *TypeRef
	Default  Expression // nil for required parameters; *InferredDefault for `<>`
	Rest     bool       // T... name
	Included bool       // *Rec name
}

// TypeRef represents a type descriptor
type TypeRef struct {
	Span
	Prefix    string     // module prefix for qualified names
	Name      string     // empty for unions and inline records
	TypeArgs  []*TypeRef // map<T>, future<T>, typedesc<T>
	ArrayDims int
	Optional  bool
	Members   []*TypeRef  // union members
	Record    *RecordType // inline record
}

// IsVar reports whether the type is the `var` placeholder.
func (t *TypeRef) IsVar() bool { return t != nil && t.Name == "var" && t.Prefix == "" }

// RecordType is a record type descriptor body.
type RecordType struct {
	Span
	Fields []*FieldDecl
	Rest   *TypeRef // T...; rest descriptor, nil when closed
}

// FieldDecl is a class field or record field.
type FieldDecl struct {
	Span
	Name     string
	Type     *TypeRef
	Default  Expression
	Final    bool
	Public   bool
	Optional bool // name?
}

// TypeDecl represents `type Name <descriptor>;`
type TypeDecl struct {
	Span
	Name     string
	IsPublic bool
	Type     *TypeRef
}

// MethodKind distinguishes plain, remote and resource methods.
type MethodKind int

const (
	PlainMethod MethodKind = iota
	RemoteMethod
	ResourceMethod
)

// PathSegment is one segment of a resource path. Param segments are
// written `[string id]` in declarations and `[expr]` at call sites.
type PathSegment struct {
	Span
	Name  string     // literal segment or parameter name
	Type  *TypeRef   // declared parameter type
	Value Expression // computed segment at a call site
	Rest  bool       // [string... rest]
}

// IsParam reports whether the segment is not a literal.
func (p *PathSegment) IsParam() bool { return p.Type != nil || p.Value != nil }

// MethodDecl is a class or service member function.
type MethodDecl struct {
	Span
	Name       string
	Kind       MethodKind
	Accessor   string         // resource accessor: get, post, ...
	Path       []*PathSegment // resource path
	IsPublic   bool
	IsIsolated bool
	Params     []*Param
	ReturnType *TypeRef
	Body       *Block
}

// ClassDecl represents a class definition
type ClassDecl struct {
	Span
	Name     string
	IsPublic bool
	IsClient bool
	Includes []*TypeRef // *Marker; type inclusions
	Fields   []*FieldDecl
	Methods  []*MethodDecl
	Init     *MethodDecl
}

// ServiceDecl represents `service [/base] on listener { ... }`
type ServiceDecl struct {
	Span
	BasePath  string
	Listeners []Expression
	Fields    []*FieldDecl
	Methods   []*MethodDecl
	Init      *MethodDecl
}

// Block represents a block of statements
type Block struct {
	Span
	Statements []Statement
}

func (b *Block) stmtNode() {}

// CommentStmt is a run of consecutive line comments kept as a statement.
type CommentStmt struct {
	Span
	Text string // comment text without the slashes, lines joined by '\n'
}

func (c *CommentStmt) stmtNode() {}

// VarDecl represents a local or module-level variable declaration
type VarDecl struct {
	Span
	Final    bool
	IsPublic bool
	Type     *TypeRef // Name "var" for inferred declarations
	Name     string
	NameSpan Span
	Value    Expression // nil when the variable is only declared
}

func (v *VarDecl) stmtNode() {}

// AssignStmt represents `target = value;`
type AssignStmt struct {
	Span
	Target Expression
	Value  Expression
}

func (a *AssignStmt) stmtNode() {}

// ExprStmt represents an expression used as a statement
type ExprStmt struct {
	Span
	Expr Expression
}

func (e *ExprStmt) stmtNode() {}

// OnFailClause is an `on fail [T e] { }` clause.
type OnFailClause struct {
	Span
	ErrType *TypeRef
	ErrName string
	Body    *Block
}

// IfStmt represents an if/else statement. Else is nil, a *Block or an *IfStmt.
type IfStmt struct {
	Span
	Condition Expression
	Then      *Block
	Else      Statement
}

func (i *IfStmt) stmtNode() {}

// WhileStmt represents a while loop
type WhileStmt struct {
	Span
	Condition Expression
	Body      *Block
	OnFail    *OnFailClause
}

func (w *WhileStmt) stmtNode() {}

// ForeachStmt represents `foreach T x in collection { }`
type ForeachStmt struct {
	Span
	VarType  *TypeRef
	Variable string
	Iterable Expression
	Body     *Block
	OnFail   *OnFailClause
}

func (f *ForeachStmt) stmtNode() {}

// MatchStmt represents a match statement
type MatchStmt struct {
	Span
	Subject  Expression
	Clauses  []*MatchClause
	Trailing []*CommentStmt // comments after the last clause
	OnFail   *OnFailClause
}

func (m *MatchStmt) stmtNode() {}

// MatchClause is `pattern [| pattern] [if guard] => { }`
type MatchClause struct {
	Span
	Comments []*CommentStmt // comments preceding the clause
	Patterns []Expression
	Guard    Expression
	Body     *Block
}

// DoStmt represents `do { } on fail { }`
type DoStmt struct {
	Span
	Body   *Block
	OnFail *OnFailClause
}

func (d *DoStmt) stmtNode() {}

// WorkerDecl represents a named worker, inside a fork or a function body.
type WorkerDecl struct {
	Span
	Comments   []*CommentStmt // comments preceding the worker inside a fork
	Name       string
	ReturnType *TypeRef
	Body       *Block
}

func (w *WorkerDecl) stmtNode() {}

// ForkStmt represents `fork { worker a {} worker b {} }`
type ForkStmt struct {
	Span
	Workers  []*WorkerDecl
	Trailing []*CommentStmt // comments after the last worker
}

func (f *ForkStmt) stmtNode() {}

// TransactionStmt represents a transaction block
type TransactionStmt struct {
	Span
	Body   *Block
	OnFail *OnFailClause
}

func (t *TransactionStmt) stmtNode() {}

// RetryStmt represents `retry [<T>] [(args)] { }` and `retry ... transaction { }`.
type RetryStmt struct {
	Span
	Manager     *TypeRef
	Args        []*Arg
	Body        *Block
	Transaction bool
	OnFail      *OnFailClause
}

func (r *RetryStmt) stmtNode() {}

// LockStmt represents a lock block
type LockStmt struct {
	Span
	Body   *Block
	OnFail *OnFailClause
}

func (l *LockStmt) stmtNode() {}

// ReturnStmt represents a return statement
type ReturnStmt struct {
	Span
	Value Expression
}

func (r *ReturnStmt) stmtNode() {}

// PanicStmt represents `panic expr;`
type PanicStmt struct {
	Span
	Value Expression
}

func (p *PanicStmt) stmtNode() {}

// FailStmt represents `fail expr;`
type FailStmt struct {
	Span
	Value Expression
}

func (f *FailStmt) stmtNode() {}

// BreakStmt represents a break statement
type BreakStmt struct {
	Span
}

func (b *BreakStmt) stmtNode() {}

// ContinueStmt represents a continue statement
type ContinueStmt struct {
	Span
}

func (c *ContinueStmt) stmtNode() {}

// Arg is one call argument: positional, named (`name = v`) or spread (`...v`).
type Arg struct {
	Span
	Name   string
	Spread bool
	Value  Expression
}

// Identifier represents a variable or function name
type Identifier struct {
	Span
	Name string
}

func (i *Identifier) exprNode() {}

// QualifiedIdent represents `prefix:name`
type QualifiedIdent struct {
	Span
	Prefix string
	Name   string
}

func (q *QualifiedIdent) exprNode() {}

// SelfExpr represents `self`
type SelfExpr struct {
	Span
}

func (s *SelfExpr) exprNode() {}

// IntLit represents an integer literal
type IntLit struct {
	Span
	Value string
}

func (i *IntLit) exprNode() {}

// FloatLit represents a floating-point literal
type FloatLit struct {
	Span
	Value string
}

func (f *FloatLit) exprNode() {}

// StringLit represents a string literal; Value keeps the quotes.
type StringLit struct {
	Span
	Value string
}

func (s *StringLit) exprNode() {}

// BoolLit represents a boolean literal
type BoolLit struct {
	Span
	Value bool
}

func (b *BoolLit) exprNode() {}

// NilLit represents `()`
type NilLit struct {
	Span
}

func (n *NilLit) exprNode() {}

// TemplateLit represents a tagged backtick template such as xml`<a/>`.
type TemplateLit struct {
	Span
	Tag string // xml, string, base16, base64, re; empty for untagged
	Raw string // body without backticks
}

func (t *TemplateLit) exprNode() {}

// ListLit represents `[a, b]`
type ListLit struct {
	Span
	Elements []Expression
}

func (l *ListLit) exprNode() {}

// MappingField is one `key: value` entry; Spread fields are `...expr`.
type MappingField struct {
	Span
	Key    string
	Value  Expression
	Spread bool
}

// MappingLit represents `{k: v, ...}`
type MappingLit struct {
	Span
	Fields []*MappingField
}

func (m *MappingLit) exprNode() {}

// ParenExpr represents a parenthesized expression
type ParenExpr struct {
	Span
	Inner Expression
}

func (p *ParenExpr) exprNode() {}

// BinaryExpr represents a binary operation
type BinaryExpr struct {
	Span
	Left  Expression
	Op    lexer.TokenType
	Right Expression
}

func (b *BinaryExpr) exprNode() {}

// UnaryExpr represents a unary operation
type UnaryExpr struct {
	Span
	Op      lexer.TokenType
	Operand Expression
}

func (u *UnaryExpr) exprNode() {}

// TypeCastExpr represents `<T> expr`
type TypeCastExpr struct {
	Span
	Type  *TypeRef
	Value Expression
}

func (t *TypeCastExpr) exprNode() {}

// CallExpr represents a function call; Func is an *Identifier or *QualifiedIdent.
type CallExpr struct {
	Span
	Func Expression
	Args []*Arg
}

func (c *CallExpr) exprNode() {}

// MethodCallExpr represents `object.method(args)`
type MethodCallExpr struct {
	Span
	Object Expression
	Method string
	Args   []*Arg
}

func (m *MethodCallExpr) exprNode() {}

// RemoteCallExpr represents `client->method(args)`
type RemoteCallExpr struct {
	Span
	Object Expression
	Method string
	Args   []*Arg
}

func (r *RemoteCallExpr) exprNode() {}

// ResourceCallExpr represents `client->/a/[b].get(args)`
type ResourceCallExpr struct {
	Span
	Object   Expression
	Path     []*PathSegment
	PathSpan Span
	Accessor string // defaults to "get"
	Args     []*Arg
}

func (r *ResourceCallExpr) exprNode() {}

// FieldAccessExpr represents `object.field`
type FieldAccessExpr struct {
	Span
	Object Expression
	Field  string
}

func (f *FieldAccessExpr) exprNode() {}

// IndexExpr represents `object[index]`
type IndexExpr struct {
	Span
	Object Expression
	Index  Expression
}

func (i *IndexExpr) exprNode() {}

// NewExpr represents `new T(args)` or an implicit `new (args)` (Type nil).
type NewExpr struct {
	Span
	Type *TypeRef
	Args []*Arg
}

func (n *NewExpr) exprNode() {}

// CheckExpr represents `check expr` or `checkpanic expr`
type CheckExpr struct {
	Span
	Panic bool
	Expr  Expression
}

func (c *CheckExpr) exprNode() {}

// StartExpr represents `start call(...)`
type StartExpr struct {
	Span
	Call Expression
}

func (s *StartExpr) exprNode() {}

// AlternateWait is a pair of futures `left | right` inside a wait action.
// Chains nest to the left: a | b | c is ((a | b) | c).
type AlternateWait struct {
	Span
	Left  Expression
	Right Expression
}

func (a *AlternateWait) exprNode() {}

// WaitField is one `name: future` entry of a multiple wait.
type WaitField struct {
	Span
	Key    string
	Future Expression
}

// WaitExpr represents `wait f`, `wait f1 | f2` or `wait {a: f1, b: f2}`.
type WaitExpr struct {
	Span
	Future Expression   // single or alternate form
	Fields []*WaitField // multiple form
}

func (w *WaitExpr) exprNode() {}

// InferredDefault is the `<>` default of an inferred typedesc parameter.
type InferredDefault struct {
	Span
}

func (i *InferredDefault) exprNode() {}

// Unwrap strips parentheses and check wrappers.
func Unwrap(e Expression) Expression {
	for {
		switch v := e.(type) {
		case *ParenExpr:
			e = v.Inner
		case *CheckExpr:
			e = v.Expr
		default:
			return e
		}
	}
}
