package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lhaig/flowgraph/internal/checker"
	"github.com/lhaig/flowgraph/internal/flow"
)

func object(name string, client bool, markers ...string) *checker.ObjectInfo {
	obj := &checker.ObjectInfo{Name: name, Module: "acme/lib", Client: client, Markers: map[string]bool{}}
	for _, m := range markers {
		obj.Markers[m] = true
	}
	return obj
}

func TestClassifyConstructor(t *testing.T) {
	tests := []struct {
		name string
		obj  *checker.ObjectInfo
		kind flow.NodeKind
		rule string
	}{
		{"agent", object("Bot", false, AgentType), flow.Agent, "agent"},
		{"model provider client", object("Provider", true, ModelProviderType), flow.ModelProvider, "model-provider"},
		{"model client", object("OpenAiModel", true, ModelType), flow.Model, "model"},
		{"knowledge base client", object("Docs", true, KnowledgeBaseType), flow.KnowledgeBase, "knowledge-base"},
		{"client tool kit", object("Tools", true, ToolKitType), flow.NewConnection, "connector"},
		{"tool kit", object("Tools", false, ToolKitType), flow.ToolKit, "tool-kit"},
		{"memory", object("Mem", false, MemoryType), flow.Memory, "memory"},
		{"memory store", object("Store", false, MemoryStoreType), flow.MemoryStore, "memory-store"},
		{"plain client", object("Client", true), flow.NewConnection, "connector"},
		{"plain object", object("Counter", false), flow.NewConnection, ConnectionFallback},
		{"vector store and chunker", object("Both", false, ChunkerType, VectorStoreType), flow.VectorStore, "vector-store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyConstructor(tt.obj)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.rule, got.Rule)
			assert.Equal(t, got, ClassifyConstructor(tt.obj))
		})
	}
}

func TestClassifyConstructorQualifiedName(t *testing.T) {
	agent := &checker.ObjectInfo{Name: "Agent", Module: "ballerina/ai"}
	assert.Equal(t, flow.Agent, ClassifyConstructor(agent).Kind)
}

func TestClassifyCall(t *testing.T) {
	remote := &checker.Function{Name: "get", Kind: checker.FuncRemote}
	resource := &checker.Function{Name: "get", Kind: checker.FuncResource}
	method := &checker.Function{Name: "run", Kind: checker.FuncMethod}
	fn := &checker.Function{Name: "f"}

	tests := []struct {
		name   string
		callee Callee
		kind   flow.NodeKind
	}{
		{"function", Callee{Function: fn}, flow.FunctionCall},
		{"data mapper", Callee{Function: fn, DataMapper: true}, flow.DataMapperCall},
		{"natural function", Callee{Function: fn, Natural: true}, flow.NPFunctionCall},
		{"data mapper wins over natural", Callee{Function: fn, DataMapper: true, Natural: true}, flow.DataMapperCall},
		{"agent", Callee{Function: method, Receiver: object("Bot", false, AgentType)}, flow.AgentCall},
		{"knowledge base remote", Callee{Function: remote, Receiver: object("Docs", true, KnowledgeBaseType)}, flow.KnowledgeBaseCall},
		{"remote", Callee{Function: remote, Receiver: object("Client", true)}, flow.RemoteActionCall},
		{"resource", Callee{Function: resource, Receiver: object("Client", true)}, flow.ResourceActionCall},
		{"method", Callee{Function: method, Receiver: object("Counter", false)}, flow.MethodCall},
		{"method flagged as mapper", Callee{Function: method, Receiver: object("Counter", false), DataMapper: true}, flow.MethodCall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, ClassifyCall(tt.callee).Kind)
		})
	}
}

func TestRuleNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range CallRules {
		assert.False(t, seen["call:"+r.Name], r.Name)
		seen["call:"+r.Name] = true
	}
	for _, r := range ConstructorRules {
		assert.False(t, seen["new:"+r.Name], r.Name)
		seen["new:"+r.Name] = true
	}
	assert.Equal(t, ConnectionFallback, ConstructorRules[len(ConstructorRules)-1].Name)
}
