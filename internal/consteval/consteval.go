// Package consteval folds constant integer expressions such as retry
// counts. Expressions are rendered to expr-lang source and evaluated
// against an environment of known module constants.
package consteval

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/lexer"
)

// ErrNotConstant is returned for expressions that reference anything other
// than literals, arithmetic and known constants.
var ErrNotConstant = errors.New("consteval: not a constant expression")

// Folder evaluates constant expressions. Compiled programs are cached and
// reused across goroutines.
type Folder struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// New returns an empty Folder.
func New() *Folder {
	return &Folder{cache: make(map[string]*vm.Program)}
}

// Int folds e to an integer. env maps constant names to their values.
func (f *Folder) Int(e ast.Expression, env map[string]any) (int, error) {
	src, err := render(e, env)
	if err != nil {
		return 0, err
	}
	if env == nil {
		env = map[string]any{}
	}
	prg, err := f.getOrCompile(src, env)
	if err != nil {
		return 0, err
	}
	out, err := vm.Run(prg, env)
	if err != nil {
		return 0, fmt.Errorf("consteval: evaluate %q: %w", src, err)
	}
	switch v := out.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("%w: %q yields %v", ErrNotConstant, src, out)
}

// Constants folds a sequence of named constant initializers in order, so
// later constants may refer to earlier ones. Initializers that do not fold
// are skipped.
func (f *Folder) Constants(names []string, values []ast.Expression) map[string]any {
	env := make(map[string]any, len(names))
	for i, name := range names {
		if v, err := f.Int(values[i], env); err == nil {
			env[name] = v
		}
	}
	return env
}

func (f *Folder) getOrCompile(src string, env map[string]any) (*vm.Program, error) {
	f.mu.RLock()
	if prg, ok := f.cache[src]; ok {
		f.mu.RUnlock()
		return prg, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if prg, ok := f.cache[src]; ok {
		return prg, nil
	}
	prg, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("consteval: compile %q: %w", src, err)
	}
	f.cache[src] = prg
	return prg, nil
}

// render writes e as expr-lang source. Integer division truncates.
func render(e ast.Expression, env map[string]any) (string, error) {
	var sb strings.Builder
	if err := write(&sb, e, env); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func write(sb *strings.Builder, e ast.Expression, env map[string]any) error {
	switch x := e.(type) {
	case *ast.IntLit:
		v, err := strconv.ParseInt(strings.ReplaceAll(x.Value, "_", ""), 0, 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrNotConstant, x.Value)
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	case *ast.ParenExpr:
		sb.WriteByte('(')
		if err := write(sb, x.Inner, env); err != nil {
			return err
		}
		sb.WriteByte(')')
	case *ast.UnaryExpr:
		switch x.Op {
		case lexer.MINUS:
			sb.WriteByte('-')
		case lexer.PLUS:
		default:
			return ErrNotConstant
		}
		sb.WriteByte('(')
		if err := write(sb, x.Operand, env); err != nil {
			return err
		}
		sb.WriteByte(')')
	case *ast.BinaryExpr:
		op, ok := binaryOps[x.Op]
		if !ok {
			return ErrNotConstant
		}
		if x.Op == lexer.SLASH {
			sb.WriteString("int(")
		}
		sb.WriteByte('(')
		if err := write(sb, x.Left, env); err != nil {
			return err
		}
		sb.WriteString(") " + op + " (")
		if err := write(sb, x.Right, env); err != nil {
			return err
		}
		sb.WriteByte(')')
		if x.Op == lexer.SLASH {
			sb.WriteByte(')')
		}
	case *ast.Identifier:
		if _, ok := env[x.Name]; !ok {
			return fmt.Errorf("%w: unknown constant %s", ErrNotConstant, x.Name)
		}
		sb.WriteString(x.Name)
	default:
		return ErrNotConstant
	}
	return nil
}

var binaryOps = map[lexer.TokenType]string{
	lexer.PLUS:    "+",
	lexer.MINUS:   "-",
	lexer.STAR:    "*",
	lexer.SLASH:   "/",
	lexer.PERCENT: "%",
}
