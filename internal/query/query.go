// Package query filters serialized flow documents with jq expressions.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/itchyny/gojq"
)

// ErrEmpty is returned for an empty expression.
var ErrEmpty = errors.New("query: empty jq expression")

// Engine evaluates jq expressions. Compiled code is cached and reused
// across goroutines.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// New returns an Engine with an empty cache.
func New() *Engine {
	return &Engine{cache: make(map[string]*gojq.Code)}
}

// Run evaluates expression against v, which is first converted to its
// generic JSON form. A single result is returned as is; several results
// are collected into a slice.
func (e *Engine) Run(ctx context.Context, expression string, v any) (any, error) {
	if expression == "" {
		return nil, ErrEmpty
	}
	code, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}
	input, err := generic(v)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, input)
	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, fmt.Errorf("query: evaluate %q: %w", expression, err)
		}
		results = append(results, val)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func (e *Engine) getOrCompile(expression string) (*gojq.Code, error) {
	e.mu.RLock()
	if code, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return code, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if code, ok := e.cache[expression]; ok {
		return code, nil
	}

	q, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("query: parse %q: %w", expression, err)
	}
	code, err := gojq.Compile(q, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, fmt.Errorf("query: compile %q: %w", expression, err)
	}
	e.cache[expression] = code
	return code, nil
}

// generic round-trips v through encoding/json so gojq sees only maps,
// slices, strings, float64, bool and nil.
func generic(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("query: encode input: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("query: decode input: %w", err)
	}
	return out, nil
}
