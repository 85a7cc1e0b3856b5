package parser

import (
	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/lexer"
)

// genericTypes take type parameters in angle brackets.
var genericTypes = map[string]bool{
	"map":      true,
	"future":   true,
	"typedesc": true,
	"stream":   true,
	"table":    true,
	"xml":      true,
	"error":    true,
}

// ParseType parses a standalone type descriptor such as "http:Client?" or
// "string[]|error".
func ParseType(src string) (*ast.TypeRef, error) {
	p := New(src)
	t := p.parseTypeRef()
	if !p.check(lexer.EOF) {
		p.errorf(p.current(), "unexpected %s after type", p.current().Type)
	}
	if p.diags.HasErrors() {
		return nil, &ParseError{Diagnostics: p.diags}
	}
	return t, nil
}

// parseTypeRef parses a union of postfix types.
func (p *Parser) parseTypeRef() *ast.TypeRef {
	first := p.parsePostfixType()
	if !p.check(lexer.PIPE) {
		return first
	}
	union := &ast.TypeRef{Members: []*ast.TypeRef{first}}
	for p.check(lexer.PIPE) && p.peek().Type != lexer.RBRACE {
		p.advance()
		union.Members = append(union.Members, p.parsePostfixType())
	}
	union.Span = p.fromSpan(first.Span)
	return union
}

// parsePostfixType parses array and optional suffixes.
func (p *Parser) parsePostfixType() *ast.TypeRef {
	t := p.parsePrimaryType()
	for {
		switch {
		case p.check(lexer.LBRACKET) && p.peek().Type == lexer.RBRACKET:
			p.advance()
			p.advance()
			t = wrapIfUnion(t)
			t.ArrayDims++
		case p.check(lexer.QUESTION):
			p.advance()
			t = wrapIfUnion(t)
			t.Optional = true
		default:
			return t
		}
		t.Span = p.fromSpan(t.Span)
	}
}

// wrapIfUnion keeps suffixes on a parenthesized union from leaking into
// its members.
func wrapIfUnion(t *ast.TypeRef) *ast.TypeRef {
	if len(t.Members) == 0 || t.ArrayDims > 0 || t.Optional {
		return t
	}
	return &ast.TypeRef{Span: t.Span, Members: t.Members}
}

func (p *Parser) parsePrimaryType() *ast.TypeRef {
	tok := p.current()
	switch {
	case tok.Type == lexer.LPAREN:
		p.advance()
		if p.match(lexer.RPAREN) {
			return &ast.TypeRef{Name: "()", Span: p.from(tok)}
		}
		inner := p.parseTypeRef()
		p.expect(lexer.RPAREN)
		inner.Span = p.from(tok)
		return inner

	case tok.Type == lexer.RECORD:
		p.advance()
		rec := p.parseRecordBody()
		return &ast.TypeRef{Record: rec, Span: p.from(tok)}

	case tok.Type == lexer.VAR:
		p.advance()
		return &ast.TypeRef{Name: "var", Span: p.from(tok)}

	case tok.Type == lexer.IDENT, tok.Type == lexer.FUNCTION:
		p.advance()
		t := &ast.TypeRef{Name: tok.Literal}
		if p.check(lexer.COLON) && p.peek().Type == lexer.IDENT {
			p.advance()
			t.Prefix = tok.Literal
			t.Name = p.advance().Literal
		}
		if t.Prefix == "" && genericTypes[t.Name] && p.check(lexer.LT) {
			p.advance()
			t.TypeArgs = append(t.TypeArgs, p.parseTypeRef())
			for p.match(lexer.COMMA) {
				t.TypeArgs = append(t.TypeArgs, p.parseTypeRef())
			}
			p.expect(lexer.GT)
		}
		t.Span = p.from(tok)
		return t
	}

	p.errorf(tok, "expected type, got %s", tok.Type)
	return &ast.TypeRef{Name: "<error>", Span: tokenSpan(tok)}
}

// parseRecordBody parses `{ fields }` or `{| fields |}`.
func (p *Parser) parseRecordBody() *ast.RecordType {
	start := p.expect(lexer.LBRACE)
	rec := &ast.RecordType{}
	closed := p.match(lexer.PIPE)

	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		if closed && p.check(lexer.PIPE) {
			break
		}
		p.skipAnnotations()
		fieldStart := p.current()
		ft := p.parseTypeRef()
		if p.match(lexer.ELLIPSIS) {
			rec.Rest = ft
			p.expect(lexer.SEMICOLON)
			continue
		}
		f := &ast.FieldDecl{Type: ft}
		f.Name = p.identLike().Literal
		if p.match(lexer.QUESTION) {
			f.Optional = true
		}
		if p.match(lexer.ASSIGN) {
			f.Default = p.parseExpression()
		}
		p.expect(lexer.SEMICOLON)
		f.Span = p.from(fieldStart)
		rec.Fields = append(rec.Fields, f)
		if fieldStart.Offset == p.current().Offset {
			break
		}
	}
	if closed {
		p.expect(lexer.PIPE)
	}
	p.expect(lexer.RBRACE)
	rec.Span = p.from(start)
	return rec
}
