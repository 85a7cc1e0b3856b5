package lexer

import (
	"testing"
)

func TestNextToken_Operators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []TokenType
	}{
		{
			name:     "arithmetic operators",
			input:    "+ - * / %",
			expected: []TokenType{PLUS, MINUS, STAR, SLASH, PERCENT, EOF},
		},
		{
			name:     "comparison operators",
			input:    "== != < > <= >=",
			expected: []TokenType{EQ, NEQ, LT, GT, LEQ, GEQ, EOF},
		},
		{
			name:     "logical operators",
			input:    "&& || ! |",
			expected: []TokenType{AND, OR, NOT, PIPE, EOF},
		},
		{
			name:     "arrows and rest",
			input:    "-> => ... ?",
			expected: []TokenType{RARROW, DARROW, ELLIPSIS, QUESTION, EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.input)
			for i, expectedType := range tt.expected {
				tok := l.NextToken()
				if tok.Type != expectedType {
					t.Errorf("token[%d] - wrong type. expected=%q, got=%q",
						i, expectedType, tok.Type)
				}
			}
		})
	}
}

func TestNextToken_Delimiters(t *testing.T) {
	input := "( ) { } [ ] , : ; . @"
	expected := []TokenType{
		LPAREN, RPAREN, LBRACE, RBRACE, LBRACKET, RBRACKET,
		COMMA, COLON, SEMICOLON, DOT, AT, EOF,
	}

	l := New(input)
	for i, expectedType := range expected {
		tok := l.NextToken()
		if tok.Type != expectedType {
			t.Errorf("token[%d] - wrong type. expected=%q, got=%q",
				i, expectedType, tok.Type)
		}
	}
}

func TestNextToken_Keywords(t *testing.T) {
	tests := []struct {
		keyword  string
		expected TokenType
	}{
		{"import", IMPORT},
		{"function", FUNCTION},
		{"returns", RETURNS},
		{"client", CLIENT},
		{"remote", REMOTE},
		{"resource", RESOURCE},
		{"check", CHECK},
		{"checkpanic", CHECKPANIC},
		{"foreach", FOREACH},
		{"fork", FORK},
		{"worker", WORKER},
		{"transaction", TRANSACTION},
		{"retry", RETRY},
		{"lock", LOCK},
		{"wait", WAIT},
		{"fail", FAIL},
		{"int", IDENT},
		{"string", IDENT},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			tok := New(tt.keyword).NextToken()
			if tok.Type != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tok.Type)
			}
		})
	}
}

func TestNextToken_QuotedIdentifier(t *testing.T) {
	tok := New("'type").NextToken()
	if tok.Type != IDENT || tok.Literal != "'type" {
		t.Fatalf("expected quoted identifier, got %s %q", tok.Type, tok.Literal)
	}
}

func TestNextToken_Offsets(t *testing.T) {
	input := "int x = foo(1);\n  y->bar();"
	tokens := New(input).Tokenize()
	for _, tok := range tokens {
		if tok.Type == EOF {
			continue
		}
		if got := input[tok.Offset:tok.End]; got != tok.Literal {
			t.Errorf("token %s: span text %q != literal %q", tok.Type, got, tok.Literal)
		}
	}

	// y on line 2, column 3
	var y Token
	for _, tok := range tokens {
		if tok.Literal == "y" {
			y = tok
		}
	}
	if y.Line != 2 || y.Column != 3 {
		t.Errorf("expected y at 2:3, got %d:%d", y.Line, y.Column)
	}
}

func TestNextToken_Comments(t *testing.T) {
	input := "// first\nx; // trailing\n/* block */ y"
	tokens := New(input).Tokenize()

	var types []TokenType
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}
	expected := []TokenType{COMMENT, IDENT, SEMICOLON, COMMENT, IDENT, EOF}
	if len(types) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, types)
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Errorf("token[%d]: expected %s, got %s", i, expected[i], types[i])
		}
	}
	if tokens[0].Literal != "// first" {
		t.Errorf("unexpected comment literal %q", tokens[0].Literal)
	}
}

func TestNextToken_Literals(t *testing.T) {
	tests := []struct {
		input   string
		typ     TokenType
		literal string
	}{
		{`"hello \"there\""`, STRING_LIT, `"hello \"there\""`},
		{"42", INT_LIT, "42"},
		{"3.14", FLOAT_LIT, "3.14"},
		{"`<a>\n</a>`", TEMPLATE, "`<a>\n</a>`"},
	}

	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != tt.typ {
			t.Errorf("%q: expected %s, got %s", tt.input, tt.typ, tok.Type)
		}
		if tok.Literal != tt.literal {
			t.Errorf("%q: expected literal %q, got %q", tt.input, tt.literal, tok.Literal)
		}
	}
}

func TestNextToken_Unterminated(t *testing.T) {
	for _, input := range []string{`"abc`, "`abc"} {
		tok := New(input).NextToken()
		if tok.Type != ILLEGAL {
			t.Errorf("%q: expected ILLEGAL, got %s", input, tok.Type)
		}
	}
}
