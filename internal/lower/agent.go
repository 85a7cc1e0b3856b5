package lower

import (
	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/checker"
)

// AgentData is the agent description attached to AGENT and AGENT_CALL
// nodes under metadata.data["agent"].
type AgentData struct {
	SystemPrompt SystemPrompt `json:"systemPrompt"`
	Model        string       `json:"model"`
	ModelType    string       `json:"modelType,omitempty"`
	Tools        []string     `json:"tools"`
	Memory       string       `json:"memory,omitempty"`
}

// SystemPrompt is the role and instructions an agent is configured with.
type SystemPrompt struct {
	Role         string `json:"role"`
	Instructions string `json:"instructions"`
}

// agentData reads the agent configuration from named constructor
// arguments. It returns the names of missing mandatory fields.
func (l *lowerer) agentData(args []*ast.Arg) (*AgentData, []string) {
	named := make(map[string]ast.Expression, len(args))
	for _, a := range args {
		if a.Name != "" {
			named[a.Name] = a.Value
		}
	}

	var missing []string
	prompt, ok := named["systemPrompt"]
	if !ok {
		missing = append(missing, "systemPrompt")
	}
	model, ok := named["model"]
	if !ok {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return nil, missing
	}

	data := &AgentData{Model: l.text(model), Tools: []string{}}
	if t, ok := l.opts.Oracle.TypeOf(model); ok {
		data.ModelType = t.String()
	}
	if lit, ok := ast.Unwrap(prompt).(*ast.MappingLit); ok {
		for _, f := range lit.Fields {
			switch f.Key {
			case "role":
				data.SystemPrompt.Role = unquote(l.text(f.Value))
			case "instructions":
				data.SystemPrompt.Instructions = unquote(l.text(f.Value))
			}
		}
	} else {
		data.SystemPrompt.Instructions = l.text(prompt)
	}
	if tools, ok := named["tools"]; ok {
		if list, ok := ast.Unwrap(tools).(*ast.ListLit); ok {
			for _, e := range list.Elements {
				data.Tools = append(data.Tools, l.text(e))
			}
		} else {
			data.Tools = append(data.Tools, l.text(tools))
		}
	}
	if mem, ok := named["memory"]; ok {
		data.Memory = l.text(mem)
	}
	return data, nil
}

// agentOf finds the constructor the agent receiver was initialized with
// and reads its configuration.
func (l *lowerer) agentOf(receiver ast.Expression) (*AgentData, bool) {
	if receiver == nil {
		return nil, false
	}
	sym, ok := l.opts.Oracle.SymbolOf(receiver)
	if !ok {
		return nil, false
	}
	var init *ast.NewExpr
	for _, ref := range l.opts.Oracle.References(sym) {
		if ref.Kind != checker.RefDecl && ref.Kind != checker.RefAssign || ref.Value == nil {
			continue
		}
		if n, ok := ast.Unwrap(ref.Value).(*ast.NewExpr); ok {
			init = n
		}
	}
	if init == nil {
		l.log.Debug("agent initializer not found", "receiver", l.text(receiver))
		return nil, false
	}
	var params []*checker.Param
	if s, ok := l.opts.Oracle.SymbolOf(init); ok && s.Function != nil {
		params = l.opts.Oracle.Params(s.Function)
	}
	data, missing := l.agentData(l.expandRecordArg(init.Args, params))
	if len(missing) > 0 {
		l.log.Debug("agent initializer incomplete", "receiver", l.text(receiver), "missing", missing)
		return nil, false
	}
	return data, true
}

// unquote strips the quotes of a string or template literal.
func unquote(s string) string {
	if n := len(s); n >= 2 && (s[0] == '"' && s[n-1] == '"' || s[0] == '`' && s[n-1] == '`') {
		return s[1 : n-1]
	}
	return s
}
