package lower

import (
	"fmt"
	"strings"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/flow"
)

// defaultRetryCount is the retry count of a retry statement without one.
const defaultRetryCount = 3

// statements lowers a block's statements in order. Consecutive worker
// declarations form one parallel flow; comments between them move into the
// branch of the worker that follows.
func (l *lowerer) statements(stmts []ast.Statement) {
	for i := 0; i < len(stmts); i++ {
		if _, ok := stmts[i].(*ast.WorkerDecl); !ok {
			l.statement(stmts[i])
			continue
		}
		var (
			workers []worker
			pending []*ast.CommentStmt
			last    = i
		)
		for j := i; j < len(stmts); j++ {
			if c, ok := stmts[j].(*ast.CommentStmt); ok {
				pending = append(pending, c)
				continue
			}
			w, ok := stmts[j].(*ast.WorkerDecl)
			if !ok {
				break
			}
			workers = append(workers, worker{decl: w, comments: pending})
			pending, last = nil, j
		}
		span := workers[0].decl.Span
		span.End = workers[len(workers)-1].decl.End
		l.parallel(span, workers, nil)
		i = last
	}
}

// worker is a worker declaration with the comments that precede it.
type worker struct {
	decl     *ast.WorkerDecl
	comments []*ast.CommentStmt
}

// withComments prefixes body with leading and appends trailing.
func withComments(leading []*ast.CommentStmt, body []ast.Statement, trailing []*ast.CommentStmt) []ast.Statement {
	if len(leading) == 0 && len(trailing) == 0 {
		return body
	}
	out := make([]ast.Statement, 0, len(leading)+len(body)+len(trailing))
	for _, c := range leading {
		out = append(out, c)
	}
	out = append(out, body...)
	for _, c := range trailing {
		out = append(out, c)
	}
	return out
}

func (l *lowerer) statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.Block:
		l.statements(s.Statements)
	case *ast.CommentStmt:
		b := l.start(flow.Comment, s.Span)
		b.Property(flow.KeyComment, flow.NewProperty(flow.ValueString).Label("Comment").Value(s.Text).Build())
		l.end()
	case *ast.VarDecl:
		bind := &binding{name: s.Name, typeText: l.declaredType(s), final: s.Final}
		if s.Value == nil {
			b := l.start(flow.Variable, s.Span)
			l.diagnose(b, s.Span)
			l.bindingProps(b, bind)
			l.end()
			return
		}
		l.value(s.Span, s.Value, bind)
	case *ast.AssignStmt:
		l.value(s.Span, s.Value, &binding{name: l.text(s.Target), assign: true})
	case *ast.ExprStmt:
		l.value(s.Expr.Range(), s.Expr, nil)
	case *ast.IfStmt:
		l.ifChain(s)
	case *ast.WhileStmt:
		b := l.start(flow.While, s.Span)
		l.diagnose(b, header(s))
		b.Property(flow.KeyCondition, expressionProp("Condition", l.text(s.Condition)))
		l.branch(flow.LabelBody, flow.BranchBody, flow.One, nil, s.Body.Statements)
		l.onFail(s.OnFail)
		l.end()
	case *ast.ForeachStmt:
		b := l.start(flow.Foreach, s.Span)
		l.diagnose(b, header(s))
		varType := "var"
		if s.VarType != nil {
			varType = l.text(s.VarType)
		}
		b.Property(flow.KeyType, typeProp("Type", varType))
		b.Property(flow.KeyVariable, identifierProp("Variable", s.Variable))
		b.Property(flow.KeyCollection, expressionProp("Collection", l.text(s.Iterable)))
		l.branch(flow.LabelBody, flow.BranchBody, flow.One, nil, s.Body.Statements)
		l.onFail(s.OnFail)
		l.end()
	case *ast.MatchStmt:
		l.match(s)
	case *ast.DoStmt:
		b := l.start(flow.ErrorHandler, s.Span)
		l.diagnose(b, header(s))
		l.branch(flow.LabelBody, flow.BranchBody, flow.One, nil, s.Body.Statements)
		l.onFail(s.OnFail)
		l.end()
	case *ast.TransactionStmt:
		b := l.start(flow.Transaction, s.Span)
		l.diagnose(b, header(s))
		l.branch(flow.LabelBody, flow.BranchBody, flow.One, nil, s.Body.Statements)
		l.onFail(s.OnFail)
		l.end()
	case *ast.RetryStmt:
		l.retry(s)
	case *ast.LockStmt:
		b := l.start(flow.Lock, s.Span)
		l.diagnose(b, header(s))
		l.branch(flow.LabelBody, flow.BranchBody, flow.One, nil, s.Body.Statements)
		l.onFail(s.OnFail)
		l.end()
	case *ast.ForkStmt:
		workers := make([]worker, 0, len(s.Workers))
		for _, w := range s.Workers {
			workers = append(workers, worker{decl: w, comments: w.Comments})
		}
		l.parallel(s.Span, workers, s.Trailing)
	case *ast.WorkerDecl:
		l.parallel(s.Span, []worker{{decl: s, comments: s.Comments}}, nil)
	case *ast.ReturnStmt:
		b := l.start(flow.Return, s.Span).Returning()
		l.diagnose(b, s.Span)
		if s.Value != nil {
			b.Property(flow.KeyExpression, expressionProp("Expression", l.text(s.Value)))
		}
		l.end()
	case *ast.PanicStmt:
		b := l.start(flow.Panic, s.Span).Returning()
		l.diagnose(b, s.Span)
		b.Property(flow.KeyExpression, expressionProp("Error", l.text(s.Value)))
		l.end()
	case *ast.FailStmt:
		b := l.start(flow.Fail, s.Span).Returning()
		l.diagnose(b, s.Span)
		b.Property(flow.KeyExpression, expressionProp("Error", l.text(s.Value)))
		l.end()
	case *ast.BreakStmt:
		l.start(flow.Break, s.Span)
		l.end()
	case *ast.ContinueStmt:
		l.start(flow.Continue, s.Span)
		l.end()
	default:
		l.log.Debug("unhandled statement, lowering as expression", "type", stmtName(stmt))
		b := l.start(flow.Expression, stmt.Range())
		l.diagnose(b, stmt.Range())
		b.Property(flow.KeyExpression, expressionProp("Expression", l.text(stmt)))
		l.end()
	}
}

// ifChain lowers an if/else-if/else chain to one node with an arm per
// condition and an optional else branch.
func (l *lowerer) ifChain(s *ast.IfStmt) {
	b := l.start(flow.If, s.Span)
	l.diagnose(b, header(s))
	label := flow.LabelThen
	for cur := s; cur != nil; {
		if cur != s {
			l.diagnose(b, cur.Condition.Range())
		}
		cond := l.text(cur.Condition)
		l.branch(label, flow.BranchConditional, flow.OneOrMore, func(br *flow.BranchBuilder) {
			br.Property(flow.KeyCondition, expressionProp("Condition", cond))
		}, cur.Then.Statements)

		var next *ast.IfStmt
		switch e := cur.Else.(type) {
		case *ast.IfStmt:
			next = e
		case *ast.Block:
			l.branch(flow.LabelElse, flow.BranchBlock, flow.ZeroOrOne, nil, e.Statements)
		}
		cur = next
		label = flow.LabelElseIf
	}
	l.end()
}

func (l *lowerer) match(s *ast.MatchStmt) {
	if len(s.Clauses) == 0 {
		l.comments(s.Trailing)
	}
	b := l.start(flow.Match, s.Span)
	l.diagnose(b, header(s))
	b.Property(flow.KeyCondition, expressionProp("Target", l.text(s.Subject)))
	for i, c := range s.Clauses {
		var trailing []*ast.CommentStmt
		if i == len(s.Clauses)-1 {
			trailing = s.Trailing
		}
		patterns := make([]string, 0, len(c.Patterns))
		for _, p := range c.Patterns {
			patterns = append(patterns, l.text(p))
		}
		guard := ""
		if c.Guard != nil {
			guard = l.text(c.Guard)
		}
		l.branch(strings.Join(patterns, " | "), flow.BranchConditional, flow.OneOrMore, func(br *flow.BranchBuilder) {
			br.Property(flow.KeyPatterns, flow.NewProperty(flow.ValueExpressionSet).Label("Patterns").Value(patterns).Build())
			if guard != "" {
				br.Property(flow.KeyGuard, expressionProp("Guard", guard))
			}
		}, withComments(c.Comments, c.Body.Statements, trailing))
	}
	l.onFail(s.OnFail)
	l.end()
}

// retry lowers `retry` and `retry transaction`. The count is the first
// argument folded to a constant, or the default.
func (l *lowerer) retry(s *ast.RetryStmt) {
	kind := flow.Retry
	if s.Transaction {
		kind = flow.Transaction
	}
	b := l.start(kind, s.Span)
	l.diagnose(b, header(s))

	count := flow.NewProperty(flow.ValueNumber).
		Label("Retry Count").
		Default("3").
		Optional(true).
		Value(defaultRetryCount)
	if len(s.Args) > 0 {
		arg := s.Args[0].Value
		if n, err := l.folder.Int(arg, l.opts.Constants); err == nil {
			count.Value(n).Modified(true)
		} else {
			l.log.Debug("retry count is not constant", "expression", l.text(arg), "error", err)
			count.ValueType(flow.ValueExpression).Value(l.text(arg)).Modified(true)
		}
	}
	b.Property(flow.KeyRetryCount, count.Build())
	if s.Manager != nil {
		b.Property(flow.KeyRetryManager, typeProp("Retry Manager", l.text(s.Manager)))
	}
	l.branch(flow.LabelBody, flow.BranchBody, flow.One, nil, s.Body.Statements)
	l.onFail(s.OnFail)
	l.end()
}

// parallel lowers workers to one node with a worker branch each, in
// declaration order. Trailing comments close the last worker's branch.
func (l *lowerer) parallel(span ast.Span, workers []worker, trailing []*ast.CommentStmt) {
	if len(workers) == 0 {
		l.comments(trailing)
	}
	b := l.start(flow.ParallelFlow, span)
	for i, w := range workers {
		l.diagnose(b, header(w.decl))
		name, ret := w.decl.Name, ""
		if w.decl.ReturnType != nil {
			ret = l.text(w.decl.ReturnType)
		}
		var tail []*ast.CommentStmt
		if i == len(workers)-1 {
			tail = trailing
		}
		l.branch(name, flow.BranchWorker, flow.OneOrMore, func(br *flow.BranchBuilder) {
			br.Property(flow.KeyWorkerName, identifierProp("Worker Name", name))
			if ret != "" {
				br.Property(flow.KeyType, typeProp("Return Type", ret))
			}
		}, withComments(w.comments, w.decl.Body.Statements, tail))
	}
	l.end()
}

// comments lowers comments that have no enclosing branch.
func (l *lowerer) comments(cs []*ast.CommentStmt) {
	for _, c := range cs {
		l.statement(c)
	}
}

// onFail adds the on-failure branch of the current node.
func (l *lowerer) onFail(of *ast.OnFailClause) {
	if of == nil {
		return
	}
	errType := ""
	if of.ErrType != nil {
		errType = l.text(of.ErrType)
	}
	l.branch(flow.LabelOnFailure, flow.BranchOnFailure, flow.ZeroOrOne, func(br *flow.BranchBuilder) {
		if of.ErrName == "" {
			return
		}
		br.Property(flow.KeyErrorVariable, identifierProp("Error Variable", of.ErrName))
		if errType != "" {
			br.Property(flow.KeyErrorType, typeProp("Error Type", errType))
		}
	}, of.Body.Statements)
}

// header is the part of a compound statement before its first block.
// Diagnostics inside it belong to the statement's own node.
func header(stmt ast.Statement) ast.Span {
	span := stmt.Range()
	var body *ast.Block
	switch s := stmt.(type) {
	case *ast.IfStmt:
		body = s.Then
	case *ast.WhileStmt:
		body = s.Body
	case *ast.ForeachStmt:
		body = s.Body
	case *ast.MatchStmt:
		if len(s.Clauses) > 0 {
			span.End = s.Clauses[0].Start
		}
	case *ast.DoStmt:
		body = s.Body
	case *ast.TransactionStmt:
		body = s.Body
	case *ast.RetryStmt:
		body = s.Body
	case *ast.LockStmt:
		body = s.Body
	case *ast.WorkerDecl:
		body = s.Body
	}
	if body != nil {
		span.End = body.Start
	}
	return span
}

func stmtName(stmt ast.Statement) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", stmt), "*ast.")
}
