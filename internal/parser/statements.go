package parser

import (
	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/lexer"
)

// parseBlock parses `{ statements }`, keeping comments as statements.
func (p *Parser) parseBlock() *ast.Block {
	start := p.expect(lexer.LBRACE)
	block := &ast.Block{}

	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		for _, c := range p.takeComments() {
			block.Statements = append(block.Statements, c)
		}
		if p.check(lexer.RBRACE) {
			break
		}
		startPos := p.pos
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		if p.pos == startPos {
			p.synchronize()
			if p.pos == startPos {
				p.advance()
			}
		}
	}
	for _, c := range p.takeComments() {
		block.Statements = append(block.Statements, c)
	}
	p.expect(lexer.RBRACE)
	block.Span = p.from(start)
	return block
}

// ParseStatements parses a sequence of statements outside any function,
// registering the given import prefixes for qualified names. Spans are
// relative to source.
func ParseStatements(source string, prefixes ...string) (*ast.Block, error) {
	p := New(source)
	for _, prefix := range prefixes {
		p.prefixes[prefix] = true
	}
	block := &ast.Block{}
	for !p.check(lexer.EOF) {
		for _, c := range p.takeComments() {
			block.Statements = append(block.Statements, c)
		}
		if p.check(lexer.EOF) {
			break
		}
		startPos := p.pos
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		if p.pos == startPos {
			p.synchronize()
			if p.pos == startPos {
				p.advance()
			}
		}
	}
	for _, c := range p.takeComments() {
		block.Statements = append(block.Statements, c)
	}
	block.Span = ast.Span{Start: 0, End: len(source), Line: 1, Column: 1}
	if p.diags.HasErrors() {
		return nil, &ParseError{Diagnostics: p.diags}
	}
	return block, nil
}

func (p *Parser) parseStatement() ast.Statement {
	p.skipAnnotations()
	tok := p.current()

	switch tok.Type {
	case lexer.VAR:
		return p.parseVarDecl(tok, false)
	case lexer.FINAL:
		p.advance()
		return p.parseVarDecl(tok, true)
	case lexer.RETURN:
		return p.parseReturnStmt()
	case lexer.PANIC:
		p.advance()
		value := p.parseExpression()
		p.expect(lexer.SEMICOLON)
		return &ast.PanicStmt{Value: value, Span: p.from(tok)}
	case lexer.FAIL:
		p.advance()
		value := p.parseExpression()
		p.expect(lexer.SEMICOLON)
		return &ast.FailStmt{Value: value, Span: p.from(tok)}
	case lexer.IF:
		return p.parseIfStmt()
	case lexer.WHILE:
		return p.parseWhileStmt()
	case lexer.FOREACH:
		return p.parseForeachStmt()
	case lexer.MATCH:
		return p.parseMatchStmt()
	case lexer.DO:
		p.advance()
		body := p.parseBlock()
		stmt := &ast.DoStmt{Body: body, OnFail: p.parseOnFail()}
		stmt.Span = p.from(tok)
		return stmt
	case lexer.FORK:
		return p.parseForkStmt()
	case lexer.WORKER:
		return p.parseWorkerDecl()
	case lexer.TRANSACTION:
		p.advance()
		body := p.parseBlock()
		stmt := &ast.TransactionStmt{Body: body, OnFail: p.parseOnFail()}
		stmt.Span = p.from(tok)
		return stmt
	case lexer.RETRY:
		return p.parseRetryStmt()
	case lexer.LOCK:
		p.advance()
		body := p.parseBlock()
		stmt := &ast.LockStmt{Body: body, OnFail: p.parseOnFail()}
		stmt.Span = p.from(tok)
		return stmt
	case lexer.BREAK:
		p.advance()
		p.expect(lexer.SEMICOLON)
		return &ast.BreakStmt{Span: p.from(tok)}
	case lexer.CONTINUE:
		p.advance()
		p.expect(lexer.SEMICOLON)
		return &ast.ContinueStmt{Span: p.from(tok)}
	case lexer.LBRACE:
		return p.parseBlock()
	}

	if p.looksLikeVarDecl() {
		return p.parseVarDecl(tok, false)
	}
	return p.parseExprStmtOrAssign()
}

// looksLikeVarDecl speculatively parses `Type name (= | ;)`.
func (p *Parser) looksLikeVarDecl() bool {
	start := p.pos
	ok := p.speculate(func() bool {
		p.parseTypeRef()
		return p.check(lexer.IDENT) &&
			(p.peek().Type == lexer.ASSIGN || p.peek().Type == lexer.SEMICOLON)
	})
	p.pos = start
	return ok
}

// parseVarDecl parses `[Type|var] name [= value];`. A leading `final` has
// already been consumed when final is set.
func (p *Parser) parseVarDecl(start lexer.Token, final bool) *ast.VarDecl {
	v := &ast.VarDecl{Final: final}
	if p.check(lexer.IDENT) && p.peek().Type == lexer.ASSIGN {
		v.Type = &ast.TypeRef{Name: "var", Span: tokenSpan(p.current())}
	} else {
		v.Type = p.parseTypeRef()
	}
	nameTok := p.expect(lexer.IDENT)
	v.Name = nameTok.Literal
	v.NameSpan = tokenSpan(nameTok)
	if p.match(lexer.ASSIGN) {
		v.Value = p.parseExpression()
	}
	p.expect(lexer.SEMICOLON)
	v.Span = p.from(start)
	return v
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	tok := p.expect(lexer.RETURN)
	stmt := &ast.ReturnStmt{}
	if !p.check(lexer.SEMICOLON) {
		stmt.Value = p.parseExpression()
	}
	p.expect(lexer.SEMICOLON)
	stmt.Span = p.from(tok)
	return stmt
}

// parseIfStmt parses if/else if/else chains.
func (p *Parser) parseIfStmt() *ast.IfStmt {
	tok := p.expect(lexer.IF)
	stmt := &ast.IfStmt{}
	stmt.Condition = p.parseExpression()
	stmt.Then = p.parseBlock()
	if p.match(lexer.ELSE) {
		if p.check(lexer.IF) {
			stmt.Else = p.parseIfStmt()
		} else {
			stmt.Else = p.parseBlock()
		}
	}
	stmt.Span = p.from(tok)
	return stmt
}

func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	tok := p.expect(lexer.WHILE)
	stmt := &ast.WhileStmt{}
	stmt.Condition = p.parseExpression()
	stmt.Body = p.parseBlock()
	stmt.OnFail = p.parseOnFail()
	stmt.Span = p.from(tok)
	return stmt
}

// parseForeachStmt parses: foreach <type> <name> in <expr> { }
func (p *Parser) parseForeachStmt() *ast.ForeachStmt {
	tok := p.expect(lexer.FOREACH)
	stmt := &ast.ForeachStmt{}
	stmt.VarType = p.parseTypeRef()
	stmt.Variable = p.expect(lexer.IDENT).Literal
	p.expect(lexer.IN)
	stmt.Iterable = p.parseExpression()
	stmt.Body = p.parseBlock()
	stmt.OnFail = p.parseOnFail()
	stmt.Span = p.from(tok)
	return stmt
}

// parseMatchStmt parses: match <expr> { pattern [| pattern] [if guard] => { } ... }
func (p *Parser) parseMatchStmt() *ast.MatchStmt {
	tok := p.expect(lexer.MATCH)
	stmt := &ast.MatchStmt{}
	stmt.Subject = p.parseExpression()
	p.expect(lexer.LBRACE)
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		comments := p.takeComments()
		if p.check(lexer.RBRACE) {
			stmt.Trailing = append(stmt.Trailing, comments...)
			break
		}
		startPos := p.pos
		clause := p.parseMatchClause()
		clause.Comments = comments
		stmt.Clauses = append(stmt.Clauses, clause)
		if p.pos == startPos {
			p.advance()
		}
	}
	stmt.Trailing = append(stmt.Trailing, p.takeComments()...)
	p.expect(lexer.RBRACE)
	stmt.OnFail = p.parseOnFail()
	stmt.Span = p.from(tok)
	return stmt
}

func (p *Parser) parseMatchClause() *ast.MatchClause {
	start := p.current()
	clause := &ast.MatchClause{}
	clause.Patterns = append(clause.Patterns, p.parseMatchPattern())
	for p.match(lexer.PIPE) {
		clause.Patterns = append(clause.Patterns, p.parseMatchPattern())
	}
	if p.match(lexer.IF) {
		clause.Guard = p.parseExpression()
	}
	p.expect(lexer.DARROW)
	clause.Body = p.parseBlock()
	clause.Span = p.from(start)
	return clause
}

// parseMatchPattern parses a constant, `_`, `var x` or a structured pattern.
func (p *Parser) parseMatchPattern() ast.Expression {
	if p.check(lexer.VAR) {
		tok := p.advance()
		name := p.expect(lexer.IDENT)
		return &ast.Identifier{Name: "var " + name.Literal, Span: p.from(tok)}
	}
	return p.parseExpression()
}

// parseOnFail parses an optional `on fail [Type name] { }` clause.
func (p *Parser) parseOnFail() *ast.OnFailClause {
	if !p.check(lexer.ON) || p.peek().Type != lexer.FAIL {
		return nil
	}
	tok := p.advance()
	p.advance()
	clause := &ast.OnFailClause{}
	if !p.check(lexer.LBRACE) {
		clause.ErrType = p.parseTypeRef()
		clause.ErrName = p.expect(lexer.IDENT).Literal
	}
	clause.Body = p.parseBlock()
	clause.Span = p.from(tok)
	return clause
}

// parseForkStmt parses: fork { worker a { } worker b { } }
func (p *Parser) parseForkStmt() *ast.ForkStmt {
	tok := p.expect(lexer.FORK)
	stmt := &ast.ForkStmt{}
	p.expect(lexer.LBRACE)
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		comments := p.takeComments()
		if p.check(lexer.RBRACE) {
			stmt.Trailing = append(stmt.Trailing, comments...)
			break
		}
		if !p.check(lexer.WORKER) {
			p.errorf(p.current(), "expected worker declaration in fork, got %s", p.current().Type)
			p.synchronize()
			if p.check(lexer.RBRACE) {
				break
			}
			continue
		}
		w := p.parseWorkerDecl()
		w.Comments = comments
		stmt.Workers = append(stmt.Workers, w)
	}
	stmt.Trailing = append(stmt.Trailing, p.takeComments()...)
	p.expect(lexer.RBRACE)
	stmt.Span = p.from(tok)
	return stmt
}

// parseWorkerDecl parses: worker <name> [returns <type>] { }
func (p *Parser) parseWorkerDecl() *ast.WorkerDecl {
	tok := p.expect(lexer.WORKER)
	w := &ast.WorkerDecl{}
	w.Name = p.expect(lexer.IDENT).Literal
	if p.match(lexer.RETURNS) {
		w.ReturnType = p.parseTypeRef()
	}
	w.Body = p.parseBlock()
	w.Span = p.from(tok)
	return w
}

// parseRetryStmt parses: retry [<Manager>] [(args)] [transaction] { } [on fail ...]
func (p *Parser) parseRetryStmt() *ast.RetryStmt {
	tok := p.expect(lexer.RETRY)
	stmt := &ast.RetryStmt{}
	if p.match(lexer.LT) {
		stmt.Manager = p.parseTypeRef()
		p.expect(lexer.GT)
	}
	if p.check(lexer.LPAREN) {
		stmt.Args = p.parseArgList()
	}
	if p.match(lexer.TRANSACTION) {
		stmt.Transaction = true
	}
	stmt.Body = p.parseBlock()
	stmt.OnFail = p.parseOnFail()
	stmt.Span = p.from(tok)
	return stmt
}

// parseExprStmtOrAssign parses an expression statement or an assignment.
func (p *Parser) parseExprStmtOrAssign() ast.Statement {
	start := p.current()
	expr := p.parseExpression()
	if p.match(lexer.ASSIGN) {
		value := p.parseExpression()
		p.expect(lexer.SEMICOLON)
		return &ast.AssignStmt{Target: expr, Value: value, Span: p.from(start)}
	}
	p.expect(lexer.SEMICOLON)
	return &ast.ExprStmt{Expr: expr, Span: p.from(start)}
}
