package lower

import (
	"github.com/lhaig/flowgraph/internal/checker"
	"github.com/lhaig/flowgraph/internal/flow"
)

// Qualified names of the AI marker types.
const (
	AgentType             = "ballerina/ai:Agent"
	ModelProviderType     = "ballerina/ai:ModelProvider"
	EmbeddingProviderType = "ballerina/ai:EmbeddingProvider"
	KnowledgeBaseType     = "ballerina/ai:KnowledgeBase"
	VectorStoreType       = "ballerina/ai:VectorStore"
	DataLoaderType        = "ballerina/ai:DataLoader"
	ChunkerType           = "ballerina/ai:Chunker"
	ModelType             = "ballerina/ai:Model"
	ToolKitType           = "ballerina/ai:ToolKit"
	MemoryType            = "ballerina/ai:Memory"
	MemoryStoreType       = "ballerina/ai:MemoryStore"
)

// Callee is what classification knows about the target of a call.
type Callee struct {
	Name       string
	Function   *checker.Function
	Receiver   *checker.ObjectInfo // nil for module function calls
	DataMapper bool
	Natural    bool
}

// CallRule maps a callee predicate to a node kind.
type CallRule struct {
	Name  string
	Match func(c Callee) bool
	Kind  flow.NodeKind
}

// ConstructorRule maps an object predicate to a node kind.
type ConstructorRule struct {
	Name  string
	Match func(obj *checker.ObjectInfo) bool
	Kind  flow.NodeKind
}

// Classification is the outcome of a rule chain.
type Classification struct {
	Kind flow.NodeKind
	Rule string
}

func receiverHas(marker string) func(Callee) bool {
	return func(c Callee) bool { return c.Receiver.HasMarker(marker) }
}

func has(marker string) func(*checker.ObjectInfo) bool {
	return func(obj *checker.ObjectInfo) bool { return obj.HasMarker(marker) }
}

func functionKind(kind checker.FunctionKind) func(Callee) bool {
	return func(c Callee) bool { return c.Function != nil && c.Function.Kind == kind }
}

// CallRules classify calls. The first matching rule wins.
var CallRules = []CallRule{
	{Name: "data-mapper", Kind: flow.DataMapperCall, Match: func(c Callee) bool { return c.Receiver == nil && c.DataMapper }},
	{Name: "natural-function", Kind: flow.NPFunctionCall, Match: func(c Callee) bool { return c.Receiver == nil && c.Natural }},
	{Name: "agent", Kind: flow.AgentCall, Match: receiverHas(AgentType)},
	{Name: "knowledge-base", Kind: flow.KnowledgeBaseCall, Match: receiverHas(KnowledgeBaseType)},
	{Name: "remote", Kind: flow.RemoteActionCall, Match: functionKind(checker.FuncRemote)},
	{Name: "resource", Kind: flow.ResourceActionCall, Match: functionKind(checker.FuncResource)},
	{Name: "method", Kind: flow.MethodCall, Match: func(c Callee) bool { return c.Receiver != nil }},
	{Name: "function", Kind: flow.FunctionCall, Match: func(Callee) bool { return true }},
}

// ConnectionFallback names the last constructor rule.
const ConnectionFallback = "connection-fallback"

// ConstructorRules classify constructor expressions. The first matching
// rule wins, so AI component markers take precedence over the client
// qualifier.
var ConstructorRules = []ConstructorRule{
	{Name: "agent", Kind: flow.Agent, Match: has(AgentType)},
	{Name: "model-provider", Kind: flow.ModelProvider, Match: has(ModelProviderType)},
	{Name: "embedding-provider", Kind: flow.EmbeddingProvider, Match: has(EmbeddingProviderType)},
	{Name: "knowledge-base", Kind: flow.KnowledgeBase, Match: has(KnowledgeBaseType)},
	{Name: "vector-store", Kind: flow.VectorStore, Match: has(VectorStoreType)},
	{Name: "data-loader", Kind: flow.DataLoader, Match: has(DataLoaderType)},
	{Name: "chunker", Kind: flow.Chunker, Match: has(ChunkerType)},
	{Name: "model", Kind: flow.Model, Match: has(ModelType)},
	{Name: "connector", Kind: flow.NewConnection, Match: func(obj *checker.ObjectInfo) bool { return obj != nil && obj.Client }},
	{Name: "tool-kit", Kind: flow.ToolKit, Match: has(ToolKitType)},
	{Name: "memory", Kind: flow.Memory, Match: has(MemoryType)},
	{Name: "memory-store", Kind: flow.MemoryStore, Match: has(MemoryStoreType)},
	{Name: ConnectionFallback, Kind: flow.NewConnection, Match: func(*checker.ObjectInfo) bool { return true }},
}

// ClassifyCall runs the call rule chain.
func ClassifyCall(c Callee) Classification {
	for _, r := range CallRules {
		if r.Match(c) {
			return Classification{Kind: r.Kind, Rule: r.Name}
		}
	}
	return Classification{Kind: flow.FunctionCall, Rule: "function"}
}

// ClassifyConstructor runs the constructor rule chain.
func ClassifyConstructor(obj *checker.ObjectInfo) Classification {
	for _, r := range ConstructorRules {
		if r.Match(obj) {
			return Classification{Kind: r.Kind, Rule: r.Name}
		}
	}
	return Classification{Kind: flow.NewConnection, Rule: ConnectionFallback}
}
