package parser

import (
	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/lexer"
)

// Precedence levels for binary operators
const (
	precNone       = 0
	precOr         = 1
	precAnd        = 2
	precEquality   = 3
	precComparison = 4
	precAdditive   = 5
	precMulti      = 6
)

// templateTags are the identifiers allowed in front of a backtick template.
var templateTags = map[string]bool{
	"xml":    true,
	"string": true,
	"base16": true,
	"base64": true,
	"re":     true,
}

func tokenPrecedence(tt lexer.TokenType) int {
	switch tt {
	case lexer.OR:
		return precOr
	case lexer.AND:
		return precAnd
	case lexer.EQ, lexer.NEQ:
		return precEquality
	case lexer.LT, lexer.GT, lexer.LEQ, lexer.GEQ:
		return precComparison
	case lexer.PLUS, lexer.MINUS:
		return precAdditive
	case lexer.STAR, lexer.SLASH, lexer.PERCENT:
		return precMulti
	default:
		return precNone
	}
}

func (p *Parser) parseExpression() ast.Expression {
	return p.parsePrecedence(precOr)
}

func (p *Parser) parsePrecedence(minPrec int) ast.Expression {
	left := p.parseUnary()

	for {
		prec := tokenPrecedence(p.current().Type)
		if prec == precNone || prec < minPrec {
			break
		}
		op := p.advance()
		right := p.parsePrecedence(prec + 1)
		left = &ast.BinaryExpr{
			Left:  left,
			Op:    op.Type,
			Right: right,
			Span:  join(left.Range(), right.Range()),
		}
	}

	return left
}

func (p *Parser) parseUnary() ast.Expression {
	tok := p.current()
	switch tok.Type {
	case lexer.MINUS, lexer.NOT, lexer.PLUS:
		p.advance()
		operand := p.parseUnary()
		return &ast.UnaryExpr{Op: tok.Type, Operand: operand, Span: p.from(tok)}
	case lexer.CHECK, lexer.CHECKPANIC:
		p.advance()
		inner := p.parseUnary()
		return &ast.CheckExpr{Panic: tok.Type == lexer.CHECKPANIC, Expr: inner, Span: p.from(tok)}
	case lexer.START:
		p.advance()
		call := p.parseUnary()
		return &ast.StartExpr{Call: call, Span: p.from(tok)}
	case lexer.WAIT:
		return p.parseWait()
	case lexer.LT:
		p.advance()
		t := p.parseTypeRef()
		p.expect(lexer.GT)
		value := p.parseUnary()
		return &ast.TypeCastExpr{Type: t, Value: value, Span: p.from(tok)}
	}
	return p.parsePostfix()
}

// parseWait parses `wait f`, `wait f1 | f2 | ...` and `wait {a: f1, b}`.
func (p *Parser) parseWait() ast.Expression {
	tok := p.expect(lexer.WAIT)
	w := &ast.WaitExpr{}

	if p.check(lexer.LBRACE) {
		p.advance()
		for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
			keyTok := p.identLike()
			field := &ast.WaitField{Key: keyTok.Literal}
			if p.match(lexer.COLON) {
				field.Future = p.parsePostfix()
			} else {
				field.Future = &ast.Identifier{Name: keyTok.Literal, Span: tokenSpan(keyTok)}
			}
			field.Span = p.from(keyTok)
			w.Fields = append(w.Fields, field)
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RBRACE)
		w.Span = p.from(tok)
		return w
	}

	future := p.parsePostfix()
	for p.check(lexer.PIPE) {
		p.advance()
		right := p.parsePostfix()
		future = &ast.AlternateWait{Left: future, Right: right, Span: join(future.Range(), right.Range())}
	}
	w.Future = future
	w.Span = p.from(tok)
	return w
}

func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parsePrimary()
	start := expr.Range()

	for {
		switch {
		case p.check(lexer.LBRACKET):
			p.advance()
			index := p.parseExpression()
			p.expect(lexer.RBRACKET)
			expr = &ast.IndexExpr{Object: expr, Index: index, Span: p.fromSpan(start)}

		case p.check(lexer.DOT):
			p.advance()
			name := p.identLike()
			if p.check(lexer.LPAREN) {
				args := p.parseArgList()
				expr = &ast.MethodCallExpr{Object: expr, Method: name.Literal, Args: args, Span: p.fromSpan(start)}
			} else {
				expr = &ast.FieldAccessExpr{Object: expr, Field: name.Literal, Span: p.fromSpan(start)}
			}

		case p.check(lexer.RARROW):
			p.advance()
			if p.check(lexer.SLASH) {
				expr = p.parseResourceCall(expr, start)
				continue
			}
			name := p.identLike()
			var args []*ast.Arg
			if p.check(lexer.LPAREN) {
				args = p.parseArgList()
			}
			expr = &ast.RemoteCallExpr{Object: expr, Method: name.Literal, Args: args, Span: p.fromSpan(start)}

		case p.check(lexer.LPAREN):
			switch expr.(type) {
			case *ast.Identifier, *ast.QualifiedIdent:
				args := p.parseArgList()
				expr = &ast.CallExpr{Func: expr, Args: args, Span: p.fromSpan(start)}
			default:
				return expr
			}

		default:
			return expr
		}
	}
}

// parseResourceCall parses the part after `->` of `obj->/a/[b].post(args)`.
func (p *Parser) parseResourceCall(object ast.Expression, start ast.Span) ast.Expression {
	call := &ast.ResourceCallExpr{Object: object, Accessor: "get"}
	pathStart := p.current()

	for p.check(lexer.SLASH) {
		p.advance()
		segTok := p.current()
		switch {
		case p.check(lexer.LBRACKET):
			p.advance()
			value := p.parseExpression()
			p.expect(lexer.RBRACKET)
			call.Path = append(call.Path, &ast.PathSegment{Value: value, Span: p.from(segTok)})
		case segTok.Type == lexer.IDENT || segTok.Type.IsKeyword():
			p.advance()
			call.Path = append(call.Path, &ast.PathSegment{Name: segTok.Literal, Span: tokenSpan(segTok)})
		}
	}
	call.PathSpan = p.from(pathStart)

	if p.check(lexer.DOT) {
		p.advance()
		call.Accessor = p.identLike().Literal
	}
	if p.check(lexer.LPAREN) {
		call.Args = p.parseArgList()
	}
	call.Span = p.fromSpan(start)
	return call
}

func (p *Parser) parsePrimary() ast.Expression {
	tok := p.current()

	switch tok.Type {
	case lexer.INT_LIT:
		p.advance()
		return &ast.IntLit{Value: tok.Literal, Span: tokenSpan(tok)}
	case lexer.FLOAT_LIT:
		p.advance()
		return &ast.FloatLit{Value: tok.Literal, Span: tokenSpan(tok)}
	case lexer.STRING_LIT:
		p.advance()
		return &ast.StringLit{Value: tok.Literal, Span: tokenSpan(tok)}
	case lexer.TEMPLATE:
		p.advance()
		return &ast.TemplateLit{Raw: stripQuotes(tok.Literal), Span: tokenSpan(tok)}
	case lexer.TRUE, lexer.FALSE:
		p.advance()
		return &ast.BoolLit{Value: tok.Type == lexer.TRUE, Span: tokenSpan(tok)}
	case lexer.SELF:
		p.advance()
		return &ast.SelfExpr{Span: tokenSpan(tok)}
	case lexer.IDENT:
		p.advance()
		if templateTags[tok.Literal] && p.check(lexer.TEMPLATE) {
			body := p.advance()
			return &ast.TemplateLit{Tag: tok.Literal, Raw: stripQuotes(body.Literal), Span: p.from(tok)}
		}
		if p.prefixes[tok.Literal] && p.check(lexer.COLON) {
			next := p.peek()
			if next.Type == lexer.IDENT || next.Type.IsKeyword() {
				p.advance()
				p.advance()
				return &ast.QualifiedIdent{Prefix: tok.Literal, Name: next.Literal, Span: p.from(tok)}
			}
		}
		return &ast.Identifier{Name: tok.Literal, Span: tokenSpan(tok)}
	case lexer.LPAREN:
		p.advance()
		if p.match(lexer.RPAREN) {
			return &ast.NilLit{Span: p.from(tok)}
		}
		inner := p.parseExpression()
		p.expect(lexer.RPAREN)
		return &ast.ParenExpr{Inner: inner, Span: p.from(tok)}
	case lexer.LBRACKET:
		return p.parseListLit()
	case lexer.LBRACE:
		return p.parseMappingLit()
	case lexer.NEW:
		return p.parseNewExpr()
	default:
		p.errorf(tok, "unexpected token %s in expression", tok.Type)
		return &ast.Identifier{Name: "<error>", Span: tokenSpan(tok)}
	}
}

// parseNewExpr parses `new T(args)`, `new T` and `new (args)`.
func (p *Parser) parseNewExpr() *ast.NewExpr {
	tok := p.expect(lexer.NEW)
	n := &ast.NewExpr{}
	if !p.check(lexer.LPAREN) && !p.check(lexer.SEMICOLON) {
		n.Type = p.parsePrimaryType()
	}
	if p.check(lexer.LPAREN) {
		n.Args = p.parseArgList()
	}
	n.Span = p.from(tok)
	return n
}

// parseArgList parses `( [arg {, arg}] )` where each arg is positional,
// named (`name = expr`) or spread (`...expr`).
func (p *Parser) parseArgList() []*ast.Arg {
	p.expect(lexer.LPAREN)
	var args []*ast.Arg
	for !p.check(lexer.RPAREN) && !p.check(lexer.EOF) {
		start := p.current()
		arg := &ast.Arg{}
		switch {
		case p.check(lexer.ELLIPSIS):
			p.advance()
			arg.Spread = true
		case (start.Type == lexer.IDENT || start.Type.IsKeyword()) && p.peek().Type == lexer.ASSIGN:
			arg.Name = p.advance().Literal
			p.advance()
		}
		arg.Value = p.parseExpression()
		arg.Span = p.from(start)
		args = append(args, arg)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN)
	return args
}

func (p *Parser) parseListLit() *ast.ListLit {
	tok := p.expect(lexer.LBRACKET)
	list := &ast.ListLit{}
	for !p.check(lexer.RBRACKET) && !p.check(lexer.EOF) {
		list.Elements = append(list.Elements, p.parseExpression())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RBRACKET)
	list.Span = p.from(tok)
	return list
}

// parseMappingLit parses `{ key: value, "key": value, key, ...spread }`.
func (p *Parser) parseMappingLit() *ast.MappingLit {
	tok := p.expect(lexer.LBRACE)
	m := &ast.MappingLit{}
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		start := p.current()
		field := &ast.MappingField{}
		switch {
		case p.match(lexer.ELLIPSIS):
			field.Spread = true
			field.Value = p.parseExpression()
		case start.Type == lexer.STRING_LIT:
			p.advance()
			field.Key = stripQuotes(start.Literal)
			p.expect(lexer.COLON)
			field.Value = p.parseExpression()
		default:
			key := p.identLike()
			field.Key = key.Literal
			if p.match(lexer.COLON) {
				field.Value = p.parseExpression()
			} else {
				field.Value = &ast.Identifier{Name: key.Literal, Span: tokenSpan(key)}
			}
		}
		field.Span = p.from(start)
		m.Fields = append(m.Fields, field)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RBRACE)
	m.Span = p.from(tok)
	return m
}
