package flow

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(start, end int) LineRange {
	return LineRange{FileName: "main.bal", StartOffset: start, EndOffset: end}
}

func TestMachineNesting(t *testing.T) {
	m := NewMachine()

	ifNode, err := m.StartNode(If)
	require.NoError(t, err)
	ifNode.Source(at(0, 40), "")

	_, err = m.StartBranch(LabelThen, BranchConditional, OneOrMore)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Depth())
	assert.Nil(t, m.Current())

	inner, err := m.StartNode(Variable)
	require.NoError(t, err)
	inner.Source(at(10, 20), "")
	_, err = m.EndNode()
	require.NoError(t, err)

	_, err = m.EndBranch()
	require.NoError(t, err)
	assert.Same(t, ifNode, m.Current())

	_, err = m.StartBranch(LabelElse, BranchBlock, ZeroOrOne)
	require.NoError(t, err)
	_, err = m.EndBranch()
	require.NoError(t, err)

	n, err := m.EndNode()
	require.NoError(t, err)
	assert.True(t, m.Balanced())

	require.Len(t, m.Nodes(), 1)
	assert.Same(t, n, m.Nodes()[0])
	require.Len(t, n.Branches, 2)
	require.Len(t, n.Branches[0].Children, 1)
	assert.Equal(t, Variable, n.Branches[0].Children[0].Kind())
	assert.Empty(t, n.Branches[1].Children)
	assert.Empty(t, Validate(m.Nodes()))
}

func TestMachineInvariants(t *testing.T) {
	t.Run("end branch on empty stack", func(t *testing.T) {
		m := NewMachine()
		_, err := m.EndBranch()
		var inv *InvariantError
		require.ErrorAs(t, err, &inv)
		assert.ErrorIs(t, err, ErrStackUnderflow)
	})

	t.Run("start node while active", func(t *testing.T) {
		m := NewMachine()
		_, err := m.StartNode(Variable)
		require.NoError(t, err)
		_, err = m.StartNode(Assign)
		assert.ErrorIs(t, err, ErrNodeActive)
	})

	t.Run("end node with nothing active", func(t *testing.T) {
		m := NewMachine()
		_, err := m.EndNode()
		assert.ErrorIs(t, err, ErrNoActiveNode)
	})

	t.Run("start branch with nothing active", func(t *testing.T) {
		m := NewMachine()
		_, err := m.StartBranch(LabelBody, BranchBody, One)
		assert.ErrorIs(t, err, ErrNoActiveNode)
	})

	t.Run("end branch with child still open", func(t *testing.T) {
		m := NewMachine()
		_, _ = m.StartNode(While)
		_, _ = m.StartBranch(LabelBody, BranchBody, One)
		_, _ = m.StartNode(Variable)
		_, err := m.EndBranch()
		assert.ErrorIs(t, err, ErrNodeActive)
	})

	t.Run("stack pop", func(t *testing.T) {
		var s Stack
		_, err := s.Pop()
		assert.True(t, errors.Is(err, ErrStackUnderflow))
	})
}

func TestBuilderClosed(t *testing.T) {
	b := NewNode(Return)
	_, err := b.Build()
	require.NoError(t, err)

	b.Label("late")
	assert.ErrorIs(t, b.Err(), ErrClosed)
	_, err = b.Build()
	assert.ErrorIs(t, err, ErrClosed)

	br := NewBranch(LabelBody, BranchBody, One)
	_, err = br.Build()
	require.NoError(t, err)
	assert.ErrorIs(t, br.Add(&FlowNode{}), ErrClosed)
}

func TestNodeIDDeterministic(t *testing.T) {
	a := NodeID(Variable, at(3, 9))
	assert.Equal(t, a, NodeID(Variable, at(3, 9)))
	assert.NotEqual(t, a, NodeID(Assign, at(3, 9)))
	assert.NotEqual(t, a, NodeID(Variable, at(3, 10)))
}

func TestPropertiesKeepInsertionOrder(t *testing.T) {
	ps := NewProperties()
	ps.Set("variable", NewProperty(ValueIdentifier).Value("x").Build())
	ps.Set("type", NewProperty(ValueTypeDesc).Value("int").Build())
	ps.Set("expression", NewProperty(ValueExpression).Value("1").Build())
	ps.Set("variable", NewProperty(ValueIdentifier).Value("y").Build())

	assert.Equal(t, []string{"variable", "type", "expression"}, ps.Keys())
	p, ok := ps.Get("variable")
	require.True(t, ok)
	assert.Equal(t, "y", p.String())

	data, err := json.Marshal(ps)
	require.NoError(t, err)
	assert.Regexp(t, `^\{"variable":.*"type":.*"expression":`, string(data))

	var nilProps *Properties
	assert.Equal(t, 0, nilProps.Len())
	_, ok = nilProps.Get("x")
	assert.False(t, ok)
}

func TestFlagsJSON(t *testing.T) {
	f := FlagChecked | FlagFinal
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `["checked","final"]`, string(data))

	var back Flags
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, f, back)
	assert.Error(t, json.Unmarshal([]byte(`["bogus"]`), &back))
}

func TestSourceText(t *testing.T) {
	mapping := NewMapping()
	mapping.Set("limit", "10")
	mapping.Set("sort", `"asc"`)

	nested := NewProperties()
	nested.Set("future1", NewProperty(ValueExpression).Value("a").Build())
	nested.Set("future2", NewProperty(ValueExpression).Value("b").Build())

	tests := []struct {
		name string
		prop *Property
		want string
	}{
		{"expression", NewProperty(ValueExpression).Value("a + b").Build(), "a + b"},
		{"number", NewProperty(ValueNumber).Value(3).Build(), "3"},
		{"flag", NewProperty(ValueFlag).Value(true).Build(), "true"},
		{"set", NewProperty(ValueExpressionSet).Value([]string{"2", "3"}).Build(), "2, 3"},
		{"mapping", NewProperty(ValueMappingExpressionSet).Value(mapping).Build(), `limit = 10, sort = "asc"`},
		{"repeatable", NewProperty(ValueRepeatable).Value(nested).Build(), "a, b"},
		{"empty", NewProperty(ValueExpression).Build(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.prop.SourceText()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NewProperty(ValueNumber).Value("3").Build().SourceText()
	assert.Error(t, err)
}

func TestNewLineRange(t *testing.T) {
	src := "int a = 1;\nint b = 2;\n"
	lr := NewLineRange("main.bal", src, 11, 21)
	assert.Equal(t, 2, lr.StartLine)
	assert.Equal(t, 1, lr.StartColumn)
	assert.Equal(t, 2, lr.EndLine)
	assert.Equal(t, 11, lr.EndColumn)
	assert.Equal(t, "int b = 2;", lr.Text(src))
}

func node(kind NodeKind, start int, branches ...*Branch) *FlowNode {
	return &FlowNode{
		ID:       NodeID(kind, at(start, start+1)),
		Codedata: Codedata{Node: kind, LineRange: at(start, start+1)},
		Branches: branches,
	}
}

func branch(kind BranchKind, rep Repeatable) *Branch {
	return &Branch{Label: string(kind), Kind: kind, Repeatable: rep}
}

func TestValidateBranchShapes(t *testing.T) {
	tests := []struct {
		name  string
		node  *FlowNode
		valid bool
	}{
		{"if with arm", node(If, 0, branch(BranchConditional, OneOrMore)), true},
		{"if with arms and else", node(If, 0, branch(BranchConditional, OneOrMore), branch(BranchConditional, OneOrMore), branch(BranchBlock, ZeroOrOne)), true},
		{"if without arm", node(If, 0, branch(BranchBlock, ZeroOrOne)), false},
		{"if with two elses", node(If, 0, branch(BranchConditional, OneOrMore), branch(BranchBlock, ZeroOrOne), branch(BranchBlock, ZeroOrOne)), false},
		{"while with body", node(While, 0, branch(BranchBody, One)), true},
		{"while with two bodies", node(While, 0, branch(BranchBody, One), branch(BranchBody, One)), false},
		{"foreach with failure", node(Foreach, 0, branch(BranchBody, One), branch(BranchOnFailure, ZeroOrOne)), true},
		{"fork with workers", node(ParallelFlow, 0, branch(BranchWorker, OneOrMore), branch(BranchWorker, OneOrMore)), true},
		{"fork with block", node(ParallelFlow, 0, branch(BranchBlock, One)), false},
		{"retry wrong repeatability", node(Retry, 0, branch(BranchBody, ZeroOrOne)), false},
		{"leaf with branch", node(Return, 0, branch(BranchBody, One)), false},
		{"unknown kind", node(NodeKind("LOOP"), 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate([]*FlowNode{tt.node})
			if tt.valid {
				assert.Empty(t, errs)
			} else {
				assert.NotEmpty(t, errs)
			}
		})
	}
}

func TestValidateProperties(t *testing.T) {
	n := node(FunctionCall, 0)
	n.Properties = NewProperties()
	n.Properties.Set("a", NewProperty(ValueExpression).Value("1").Origin(OriginRequired, "a").Build())
	n.Properties.Set("b", NewProperty(ValueExpression).Value("1").Origin(OriginRequired, "").Build())
	n.Properties.Set("c", NewProperty(ValueExpressionSet).Value("2").Build())

	errs := Validate([]*FlowNode{n})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "property b has no original name")
	assert.Contains(t, errs[1], "property c")
}

func TestValidateSource(t *testing.T) {
	src := "return x;"
	n := node(Return, 0)
	n.Codedata.LineRange = at(0, 9)
	n.Codedata.SourceCode = src
	assert.Empty(t, ValidateSource([]*FlowNode{n}, src))

	n.Codedata.SourceCode = "return y;"
	assert.Len(t, ValidateSource([]*FlowNode{n}, src), 1)
}
