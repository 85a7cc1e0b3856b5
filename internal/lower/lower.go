// Package lower turns syntax trees into flow graphs. One call to Lower owns
// its builder machine; concurrent calls share nothing but the read-only
// oracle.
package lower

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/consteval"
	"github.com/lhaig/flowgraph/internal/flow"
)

// lowerer holds the state of one traversal.
type lowerer struct {
	opts   Options
	src    string
	lines  *flow.LineIndex
	m      *flow.Machine
	log    *slog.Logger
	folder *consteval.Folder
}

// Lower walks root and returns the top-level flow nodes in source order.
// root may be a block, a statement, a function, a service or class member,
// or a whole program (its module-level variables).
//
// Unresolvable references degrade to generic nodes. A well-known construct
// missing a mandatory part yields a *SchemaMismatchError; a builder
// discipline violation yields a *flow.InvariantError.
func Lower(root ast.Node, opts Options) (nodes []*flow.FlowNode, err error) {
	if opts.Oracle == nil {
		return nil, errors.New("lower: no oracle")
	}
	if opts.Scope == "" {
		opts.Scope = Local
	}
	l := &lowerer{
		opts:   opts,
		src:    opts.Source,
		lines:  flow.NewLineIndex(opts.FileName, opts.Source),
		m:      flow.NewMachine(),
		log:    opts.Logger,
		folder: opts.Folder,
	}
	if l.log == nil {
		l.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if l.folder == nil {
		l.folder = consteval.New()
	}

	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(abort)
			if !ok {
				panic(r)
			}
			nodes, err = nil, a.err
		}
	}()

	l.root(root)
	if !l.m.Balanced() {
		return nil, &flow.InvariantError{Op: "finish", Depth: l.m.Depth(), Err: flow.ErrNodeActive}
	}
	return l.m.Nodes(), nil
}

func (l *lowerer) root(root ast.Node) {
	switch r := root.(type) {
	case *ast.Program:
		l.program(r)
	case *ast.FunctionDecl:
		l.startEvent(r.Span, r.Body)
		l.statements(r.Body.Statements)
	case *ast.MethodDecl:
		l.startEvent(r.Span, r.Body)
		l.statements(r.Body.Statements)
	case *ast.Block:
		l.statements(r.Statements)
	case ast.Statement:
		l.statements([]ast.Statement{r})
	default:
		l.fail(fmt.Errorf("lower: cannot lower %T", root))
	}
}

// program lowers module-level variables and comments in source order.
func (l *lowerer) program(p *ast.Program) {
	stmts := make([]ast.Statement, 0, len(p.Vars)+len(p.Comments))
	for _, v := range p.Vars {
		stmts = append(stmts, v)
	}
	for _, c := range p.Comments {
		stmts = append(stmts, c)
	}
	sort.SliceStable(stmts, func(i, j int) bool { return stmts[i].Range().Start < stmts[j].Range().Start })
	l.statements(stmts)
}

// startEvent emits the START node covering a function's signature.
func (l *lowerer) startEvent(decl ast.Span, body *ast.Block) {
	span := decl
	if body != nil && body.End > body.Start {
		span.End = body.Start
	}
	for span.End > span.Start && isSpace(l.src[span.End-1]) {
		span.End--
	}
	l.start(flow.Start, span)
	l.end()
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

// --- Builder discipline ---

func (l *lowerer) fail(err error) {
	panic(abort{err: err})
}

func (l *lowerer) must(err error) {
	if err != nil {
		l.fail(err)
	}
}

// start begins a node covering span and attaches the diagnostics of the
// node's header.
func (l *lowerer) start(kind flow.NodeKind, span ast.Span) *flow.NodeBuilder {
	b, err := l.m.StartNode(kind)
	l.must(err)
	b.Source(l.lines.Range(span.Start, span.End), span.Text(l.src)).
		Label(labels[kind])
	return b
}

func (l *lowerer) end() *flow.FlowNode {
	n, err := l.m.EndNode()
	l.must(err)
	return n
}

// branch lowers stmts into a new branch of the current node. props, when
// set, fills the branch's own properties.
func (l *lowerer) branch(label string, kind flow.BranchKind, rep flow.Repeatable, props func(*flow.BranchBuilder), stmts []ast.Statement) {
	br, err := l.m.StartBranch(label, kind, rep)
	l.must(err)
	if props != nil {
		props(br)
	}
	l.statements(stmts)
	_, err = l.m.EndBranch()
	l.must(err)
}

// diagnose attaches the host diagnostics that lie inside span.
func (l *lowerer) diagnose(b *flow.NodeBuilder, span ast.Span) {
	if ds := l.opts.Oracle.Diagnostics(span); len(ds) > 0 {
		b.Diagnostics(ds...)
	}
}

func (l *lowerer) text(n ast.Node) string {
	if n == nil {
		return ""
	}
	return n.Range().Text(l.src)
}

var labels = map[flow.NodeKind]string{
	flow.Variable:           "Declare Variable",
	flow.Assign:             "Update Variable",
	flow.If:                 "If",
	flow.While:              "While",
	flow.Foreach:            "Foreach",
	flow.Match:              "Match",
	flow.ErrorHandler:       "Error Handler",
	flow.ParallelFlow:       "Parallel Flow",
	flow.Wait:               "Wait",
	flow.Transaction:        "Transaction",
	flow.Retry:              "Retry",
	flow.Lock:               "Lock",
	flow.Return:             "Return",
	flow.Panic:              "Panic",
	flow.Fail:               "Fail",
	flow.Break:              "Break",
	flow.Continue:           "Continue",
	flow.Comment:            "Comment",
	flow.Expression:         "Custom Expression",
	flow.FunctionCall:       "Call Function",
	flow.MethodCall:         "Call Method",
	flow.RemoteActionCall:   "Remote Action",
	flow.ResourceActionCall: "Resource Action",
	flow.AgentCall:          "Agent Call",
	flow.KnowledgeBaseCall:  "Knowledge Base Call",
	flow.DataMapperCall:     "Data Mapper",
	flow.NPFunctionCall:     "Natural Function",
	flow.NewConnection:      "New Connection",
	flow.Agent:              "Agent",
	flow.ModelProvider:      "Model Provider",
	flow.EmbeddingProvider:  "Embedding Provider",
	flow.KnowledgeBase:      "Knowledge Base",
	flow.VectorStore:        "Vector Store",
	flow.DataLoader:         "Data Loader",
	flow.Chunker:            "Chunker",
	flow.Model:              "Model",
	flow.ToolKit:            "Tool Kit",
	flow.Memory:             "Memory",
	flow.MemoryStore:        "Memory Store",
	flow.JSONPayload:        "JSON Payload",
	flow.XMLPayload:         "XML Payload",
	flow.BinaryData:         "Binary Data",
	flow.Start:              "Start",
}

// --- Property helpers ---

func expressionProp(label, value string) *flow.Property {
	return flow.NewProperty(flow.ValueExpression).Label(label).Value(value).Build()
}

func identifierProp(label, value string) *flow.Property {
	return flow.NewProperty(flow.ValueIdentifier).Label(label).Value(value).Build()
}

func typeProp(label, value string) *flow.Property {
	return flow.NewProperty(flow.ValueTypeDesc).Label(label).Value(value).Build()
}

func flagProp(label string, value bool) *flow.Property {
	return flow.NewProperty(flow.ValueFlag).Label(label).Value(value).Optional(true).Build()
}
