package flow

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/lhaig/flowgraph/internal/diagnostic"
)

var (
	// ErrStackUnderflow is raised when a branch is ended with no suspended parent.
	ErrStackUnderflow = errors.New("builder stack underflow")
	// ErrNodeActive is raised when a node is started while another is being built.
	ErrNodeActive = errors.New("a node is already being built")
	// ErrNoActiveNode is raised when an operation needs a node under construction.
	ErrNoActiveNode = errors.New("no node is being built")
	// ErrClosed is raised when a builder is used after Build.
	ErrClosed = errors.New("builder is closed")
)

// InvariantError reports a violation of the builder discipline. It signals
// a defect in the caller, never malformed input.
type InvariantError struct {
	Op    string
	Kind  NodeKind
	Depth int
	Err   error
}

func (e *InvariantError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("flow: %s %s at depth %d: %v", e.Op, e.Kind, e.Depth, e.Err)
	}
	return fmt.Sprintf("flow: %s at depth %d: %v", e.Op, e.Depth, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// idSpace namespaces node IDs so that equal inputs always give equal IDs.
var idSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("flowgraph/node"))

// NodeID derives the deterministic ID of a node from its kind and range.
func NodeID(kind NodeKind, lr LineRange) string {
	key := string(kind) + "|" + lr.FileName + "|" + strconv.Itoa(lr.StartOffset) + "-" + strconv.Itoa(lr.EndOffset)
	return uuid.NewSHA1(idSpace, []byte(key)).String()
}

// NodeBuilder assembles one FlowNode. Once Build has been called the
// builder is closed and any further mutation is recorded as an error.
type NodeBuilder struct {
	node   *FlowNode
	closed bool
	err    error
}

// NewNode starts a node of the given kind.
func NewNode(kind NodeKind) *NodeBuilder {
	return &NodeBuilder{node: &FlowNode{
		Codedata:   Codedata{Node: kind},
		Properties: NewProperties(),
	}}
}

// Kind returns the kind of the node being built.
func (b *NodeBuilder) Kind() NodeKind { return b.node.Codedata.Node }

// Err returns the first error recorded by a mutation after close.
func (b *NodeBuilder) Err() error { return b.err }

func (b *NodeBuilder) mutable(op string) bool {
	if b.closed {
		if b.err == nil {
			b.err = &InvariantError{Op: op, Kind: b.Kind(), Err: ErrClosed}
		}
		return false
	}
	return true
}

// SetKind changes the kind, for nodes whose final kind is known only after
// their properties are read.
func (b *NodeBuilder) SetKind(kind NodeKind) *NodeBuilder {
	if b.mutable("set kind") {
		b.node.Codedata.Node = kind
	}
	return b
}

// Label sets the display label.
func (b *NodeBuilder) Label(s string) *NodeBuilder {
	if b.mutable("label") {
		b.node.Metadata.Label = s
	}
	return b
}

// Description sets the display description.
func (b *NodeBuilder) Description(s string) *NodeBuilder {
	if b.mutable("description") {
		b.node.Metadata.Description = s
	}
	return b
}

// Icon sets the display icon.
func (b *NodeBuilder) Icon(s string) *NodeBuilder {
	if b.mutable("icon") {
		b.node.Metadata.Icon = s
	}
	return b
}

// Data stores an auxiliary metadata value.
func (b *NodeBuilder) Data(key string, v any) *NodeBuilder {
	if b.mutable("data") {
		if b.node.Metadata.Data == nil {
			b.node.Metadata.Data = make(map[string]any)
		}
		b.node.Metadata.Data[key] = v
	}
	return b
}

// Symbol records the library symbol the node refers to.
func (b *NodeBuilder) Symbol(org, module, object, symbol string) *NodeBuilder {
	if b.mutable("symbol") {
		cd := &b.node.Codedata
		cd.Org, cd.Module, cd.Object, cd.Symbol = org, module, object, symbol
	}
	return b
}

// Source records the node's range and its exact source text.
func (b *NodeBuilder) Source(lr LineRange, text string) *NodeBuilder {
	if b.mutable("source") {
		b.node.Codedata.LineRange = lr
		b.node.Codedata.SourceCode = text
	}
	return b
}

// Flag adds f to the node's flags.
func (b *NodeBuilder) Flag(f Flags) *NodeBuilder {
	if b.mutable("flag") {
		b.node.Flags |= f
	}
	return b
}

// Returning marks a node that leaves the enclosing function.
func (b *NodeBuilder) Returning() *NodeBuilder {
	if b.mutable("returning") {
		b.node.Returning = true
	}
	return b
}

// Property stores p under key.
func (b *NodeBuilder) Property(key string, p *Property) *NodeBuilder {
	if b.mutable("property "+key) {
		b.node.Properties.Set(key, p)
	}
	return b
}

// HasProperty reports whether key has been set.
func (b *NodeBuilder) HasProperty(key string) bool {
	_, ok := b.node.Properties.Get(key)
	return ok
}

// Diagnostics attaches host diagnostics to the node.
func (b *NodeBuilder) Diagnostics(ds ...diagnostic.Diagnostic) *NodeBuilder {
	if b.mutable("diagnostics") {
		b.node.Diagnostics = append(b.node.Diagnostics, ds...)
	}
	return b
}

// AddBranch appends a finished branch.
func (b *NodeBuilder) AddBranch(br *Branch) *NodeBuilder {
	if b.mutable("add branch") {
		b.node.Branches = append(b.node.Branches, br)
	}
	return b
}

// Build closes the builder and returns the node.
func (b *NodeBuilder) Build() (*FlowNode, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.closed {
		return nil, &InvariantError{Op: "build", Kind: b.Kind(), Err: ErrClosed}
	}
	b.closed = true
	b.node.ID = NodeID(b.node.Codedata.Node, b.node.Codedata.LineRange)
	return b.node, nil
}

// BranchBuilder assembles one Branch.
type BranchBuilder struct {
	branch *Branch
	closed bool
}

// NewBranch starts a branch. Its kind and repeatability are fixed here.
func NewBranch(label string, kind BranchKind, rep Repeatable) *BranchBuilder {
	return &BranchBuilder{branch: &Branch{
		Label:      label,
		Kind:       kind,
		Repeatable: rep,
		Properties: NewProperties(),
		Children:   []*FlowNode{},
	}}
}

// Property stores p under key.
func (b *BranchBuilder) Property(key string, p *Property) *BranchBuilder {
	if !b.closed {
		b.branch.Properties.Set(key, p)
	}
	return b
}

// Add appends a finished child node.
func (b *BranchBuilder) Add(n *FlowNode) error {
	if b.closed {
		return &InvariantError{Op: "add child", Err: ErrClosed}
	}
	b.branch.Children = append(b.branch.Children, n)
	return nil
}

// Build closes the builder and returns the branch.
func (b *BranchBuilder) Build() (*Branch, error) {
	if b.closed {
		return nil, &InvariantError{Op: "build branch", Err: ErrClosed}
	}
	b.closed = true
	if b.branch.Properties.Len() == 0 {
		b.branch.Properties = nil
	}
	return b.branch, nil
}
