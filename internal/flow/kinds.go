package flow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NodeKind classifies a flow node.
type NodeKind string

const (
	Variable           NodeKind = "VARIABLE"
	Assign             NodeKind = "ASSIGN"
	If                 NodeKind = "IF"
	While              NodeKind = "WHILE"
	Foreach            NodeKind = "FOREACH"
	Match              NodeKind = "MATCH"
	ErrorHandler       NodeKind = "ERROR_HANDLER"
	ParallelFlow       NodeKind = "PARALLEL_FLOW"
	Wait               NodeKind = "WAIT"
	Transaction        NodeKind = "TRANSACTION"
	Retry              NodeKind = "RETRY"
	Lock               NodeKind = "LOCK"
	Return             NodeKind = "RETURN"
	Panic              NodeKind = "PANIC"
	Fail               NodeKind = "FAIL"
	Break              NodeKind = "BREAK"
	Continue           NodeKind = "CONTINUE"
	Comment            NodeKind = "COMMENT"
	Expression         NodeKind = "EXPRESSION"
	FunctionCall       NodeKind = "FUNCTION_CALL"
	MethodCall         NodeKind = "METHOD_CALL"
	RemoteActionCall   NodeKind = "REMOTE_ACTION_CALL"
	ResourceActionCall NodeKind = "RESOURCE_ACTION_CALL"
	AgentCall          NodeKind = "AGENT_CALL"
	KnowledgeBaseCall  NodeKind = "KNOWLEDGE_BASE_CALL"
	DataMapperCall     NodeKind = "DATA_MAPPER_CALL"
	NPFunctionCall     NodeKind = "NP_FUNCTION_CALL"
	NewConnection      NodeKind = "NEW_CONNECTION"
	Agent              NodeKind = "AGENT"
	ModelProvider      NodeKind = "MODEL_PROVIDER"
	EmbeddingProvider  NodeKind = "EMBEDDING_PROVIDER"
	KnowledgeBase      NodeKind = "KNOWLEDGE_BASE"
	VectorStore        NodeKind = "VECTOR_STORE"
	DataLoader         NodeKind = "DATA_LOADER"
	Chunker            NodeKind = "CHUNKER"
	Model              NodeKind = "MODEL"
	ToolKit            NodeKind = "TOOL_KIT"
	Memory             NodeKind = "MEMORY"
	MemoryStore        NodeKind = "MEMORY_STORE"
	JSONPayload        NodeKind = "JSON_PAYLOAD"
	XMLPayload         NodeKind = "XML_PAYLOAD"
	BinaryData         NodeKind = "BINARY_DATA"
	Start              NodeKind = "START"
)

var nodeKinds = map[NodeKind]bool{
	Variable: true, Assign: true, If: true, While: true, Foreach: true, Match: true,
	ErrorHandler: true, ParallelFlow: true, Wait: true, Transaction: true, Retry: true,
	Lock: true, Return: true, Panic: true, Fail: true, Break: true, Continue: true,
	Comment: true, Expression: true, FunctionCall: true, MethodCall: true,
	RemoteActionCall: true, ResourceActionCall: true, AgentCall: true,
	KnowledgeBaseCall: true, DataMapperCall: true, NPFunctionCall: true,
	NewConnection: true, Agent: true, ModelProvider: true, EmbeddingProvider: true,
	KnowledgeBase: true, VectorStore: true, DataLoader: true, Chunker: true,
	Model: true, ToolKit: true, Memory: true, MemoryStore: true, JSONPayload: true,
	XMLPayload: true, BinaryData: true, Start: true,
}

// Valid reports whether k belongs to the closed set of node kinds.
func (k NodeKind) Valid() bool { return nodeKinds[k] }

// IsConnection reports whether nodes of this kind create a connection or
// an AI component.
func (k NodeKind) IsConnection() bool {
	switch k {
	case NewConnection, Agent, ModelProvider, EmbeddingProvider, KnowledgeBase,
		VectorStore, DataLoader, Chunker, Model, ToolKit, Memory, MemoryStore:
		return true
	}
	return false
}

// IsCall reports whether nodes of this kind invoke a function or method.
func (k NodeKind) IsCall() bool {
	switch k {
	case FunctionCall, MethodCall, RemoteActionCall, ResourceActionCall, AgentCall,
		KnowledgeBaseCall, DataMapperCall, NPFunctionCall:
		return true
	}
	return false
}

// BranchKind classifies a branch.
type BranchKind string

const (
	BranchBlock       BranchKind = "BLOCK"
	BranchWorker      BranchKind = "WORKER"
	BranchConditional BranchKind = "CONDITIONAL"
	BranchBody        BranchKind = "BODY"
	BranchOnFailure   BranchKind = "ON_FAILURE"
)

// Repeatable says how many sibling branches of one kind a parent may hold.
type Repeatable string

const (
	One       Repeatable = "ONE"
	ZeroOrOne Repeatable = "ZERO_OR_ONE"
	OneOrMore Repeatable = "ONE_OR_MORE"
)

// Branch labels
const (
	LabelThen      = "Then"
	LabelElseIf    = "Else If"
	LabelElse      = "Else"
	LabelBody      = "Body"
	LabelOnFailure = "On Failure"
)

// ValueType tags how a property value is written in source.
type ValueType string

const (
	ValueString               ValueType = "STRING"
	ValueExpression           ValueType = "EXPRESSION"
	ValueExpressionSet        ValueType = "EXPRESSION_SET"
	ValueMappingExpressionSet ValueType = "MAPPING_EXPRESSION_SET"
	ValueFixed                ValueType = "FIXED"
	ValueRepeatable           ValueType = "REPEATABLE_PROPERTY"
	ValueRawTemplate          ValueType = "RAW_TEMPLATE"
	ValueLVExpression         ValueType = "LV_EXPRESSION"
	ValueIdentifier           ValueType = "IDENTIFIER"
	ValueTypeDesc             ValueType = "TYPE"
	ValueFlag                 ValueType = "FLAG"
	ValueNumber               ValueType = "NUMBER"
)

// Origin is how a property's parameter accepts its argument.
type Origin string

const (
	OriginRequired           Origin = "REQUIRED"
	OriginDefaultable        Origin = "DEFAULTABLE"
	OriginRest               Origin = "REST"
	OriginIncludedRecord     Origin = "INCLUDED_RECORD"
	OriginIncludedField      Origin = "INCLUDED_FIELD"
	OriginIncludedRecordRest Origin = "INCLUDED_RECORD_REST"
	OriginInferred           Origin = "INFERRED"
	// OriginSynthetic marks a property with no declared parameter behind
	// it. Its original name is the property key.
	OriginSynthetic Origin = "SYNTHETIC"
)

// Flags is a set of node modifiers.
type Flags uint8

const (
	FlagChecked Flags = 1 << iota
	FlagCheckPanic
	FlagFinal
	FlagIsolated
	FlagAsync
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagChecked, "checked"},
	{FlagCheckPanic, "check-panic"},
	{FlagFinal, "final"},
	{FlagIsolated, "isolated"},
	{FlagAsync, "async"},
}

// Has reports whether every flag in f2 is set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// Names lists the set flags in a fixed order.
func (f Flags) Names() []string {
	var out []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			out = append(out, fn.name)
		}
	}
	return out
}

func (f Flags) String() string { return strings.Join(f.Names(), ",") }

// MarshalJSON encodes the set as a list of names.
func (f Flags) MarshalJSON() ([]byte, error) {
	names := f.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// UnmarshalJSON decodes a list of flag names.
func (f *Flags) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	*f = 0
	for _, n := range names {
		found := false
		for _, fn := range flagNames {
			if fn.name == n {
				*f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("flow: unknown flag %q", n)
		}
	}
	return nil
}
