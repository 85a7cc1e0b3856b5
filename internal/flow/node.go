// Package flow defines the flow graph: the tree of typed nodes, branches
// and editable properties that a diagram renderer displays, together with
// the builders and the stack machine used to construct it.
package flow

import (
	"sort"

	"github.com/lhaig/flowgraph/internal/diagnostic"
)

// FlowNode is one diagram box.
type FlowNode struct {
	ID          string                  `json:"id"`
	Metadata    Metadata                `json:"metadata"`
	Codedata    Codedata                `json:"codedata"`
	Returning   bool                    `json:"returning"`
	Branches    []*Branch               `json:"branches,omitempty"`
	Properties  *Properties             `json:"properties,omitempty"`
	Flags       Flags                   `json:"flags,omitempty"`
	Diagnostics []diagnostic.Diagnostic `json:"diagnostics,omitempty"`
}

// Kind returns the node kind tag.
func (n *FlowNode) Kind() NodeKind { return n.Codedata.Node }

// Property returns the property stored under key.
func (n *FlowNode) Property(key string) (*Property, bool) {
	return n.Properties.Get(key)
}

// Branch returns the first branch with the given label.
func (n *FlowNode) Branch(label string) (*Branch, bool) {
	for _, b := range n.Branches {
		if b.Label == label {
			return b, true
		}
	}
	return nil, false
}

// BranchesOf returns the branches of one kind in order.
func (n *FlowNode) BranchesOf(kind BranchKind) []*Branch {
	var out []*Branch
	for _, b := range n.Branches {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}

// Metadata is the display information of a node.
type Metadata struct {
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Codedata ties a node to the construct it was lowered from.
type Codedata struct {
	Node       NodeKind  `json:"node"`
	Org        string    `json:"org,omitempty"`
	Module     string    `json:"module,omitempty"`
	Object     string    `json:"object,omitempty"`
	Symbol     string    `json:"symbol,omitempty"`
	LineRange  LineRange `json:"lineRange"`
	SourceCode string    `json:"sourceCode,omitempty"`
}

// LineRange locates a node in its file. Lines and columns are 1-based;
// offsets are bytes with EndOffset exclusive.
type LineRange struct {
	FileName    string `json:"fileName"`
	StartLine   int    `json:"startLine"`
	StartColumn int    `json:"startColumn"`
	EndLine     int    `json:"endLine"`
	EndColumn   int    `json:"endColumn"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
}

// LineIndex converts byte offsets of one source file to line ranges.
type LineIndex struct {
	file   string
	starts []int // offset of the first byte of each line
}

// NewLineIndex indexes the line starts of src.
func NewLineIndex(file, src string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{file: file, starts: starts}
}

// Range returns the line range of the bytes [start, end).
func (ix *LineIndex) Range(start, end int) LineRange {
	lr := LineRange{FileName: ix.file, StartOffset: start, EndOffset: end}
	lr.StartLine, lr.StartColumn = ix.position(start)
	lr.EndLine, lr.EndColumn = ix.position(end)
	return lr
}

func (ix *LineIndex) position(offset int) (int, int) {
	line := sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return line + 1, offset - ix.starts[line] + 1
}

// NewLineRange computes the line range of src[start:end].
func NewLineRange(file, src string, start, end int) LineRange {
	return NewLineIndex(file, src).Range(start, end)
}

// Text returns the source text covered by the range.
func (lr LineRange) Text(src string) string {
	if lr.StartOffset < 0 || lr.EndOffset > len(src) || lr.StartOffset > lr.EndOffset {
		return ""
	}
	return src[lr.StartOffset:lr.EndOffset]
}

// Contains reports whether the byte range [start, end) lies inside lr.
func (lr LineRange) Contains(start, end int) bool {
	return lr.StartOffset <= start && end <= lr.EndOffset
}

// Branch is one nested block of a node.
type Branch struct {
	Label      string      `json:"label"`
	Kind       BranchKind  `json:"kind"`
	Repeatable Repeatable  `json:"repeatable"`
	Properties *Properties `json:"properties,omitempty"`
	Children   []*FlowNode `json:"children"`
}

// Property returns the branch property stored under key.
func (b *Branch) Property(key string) (*Property, bool) {
	return b.Properties.Get(key)
}

// Walk visits nodes depth first in source order. Returning false from fn
// skips the node's branches.
func Walk(nodes []*FlowNode, fn func(n *FlowNode, depth int) bool) {
	walk(nodes, 0, fn)
}

func walk(nodes []*FlowNode, depth int, fn func(*FlowNode, int) bool) {
	for _, n := range nodes {
		if !fn(n, depth) {
			continue
		}
		for _, b := range n.Branches {
			walk(b.Children, depth+1, fn)
		}
	}
}
