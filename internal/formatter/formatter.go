// Package formatter renders lowered documents as an indented outline for
// reading in a terminal.
package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lhaig/flowgraph/internal/compiler"
	"github.com/lhaig/flowgraph/internal/flow"
)

// Options controls what the outline shows.
type Options struct {
	// Properties includes each node's visible properties.
	Properties bool
	// Hidden includes hidden properties as well.
	Hidden bool
}

// Outline renders one document.
func Outline(doc *compiler.Document, opts Options) string {
	f := &formatter{opts: opts}
	f.formatDocument(doc)
	return f.sb.String()
}

// Nodes renders a node list without a document header.
func Nodes(nodes []*flow.FlowNode, opts Options) string {
	f := &formatter{opts: opts}
	f.formatNodes(nodes)
	return f.sb.String()
}

type formatter struct {
	sb     strings.Builder
	indent int
	opts   Options
}

// --- helpers ---

func (f *formatter) emitLine(s string) {
	if s == "" {
		f.sb.WriteString("\n")
	} else {
		f.sb.WriteString(f.indentStr())
		f.sb.WriteString(s)
		f.sb.WriteString("\n")
	}
}

func (f *formatter) emitLinef(format string, args ...any) {
	f.sb.WriteString(f.indentStr())
	f.sb.WriteString(fmt.Sprintf(format, args...))
	f.sb.WriteString("\n")
}

func (f *formatter) incIndent() { f.indent++ }
func (f *formatter) decIndent() { f.indent-- }

func (f *formatter) indentStr() string {
	return strings.Repeat("    ", f.indent)
}

func (f *formatter) blankLine() {
	f.sb.WriteString("\n")
}

// --- document-level ---

func (f *formatter) formatDocument(doc *compiler.Document) {
	f.emitLine(doc.File)

	if len(doc.Connections) > 0 {
		f.blankLine()
		f.emitLine("connections")
		f.incIndent()
		f.formatNodes(doc.Connections)
		f.decIndent()
	}

	for _, fn := range doc.Functions {
		f.blankLine()
		f.emitLinef("%s %s", fn.Kind, fn.Name)
		f.incIndent()
		f.formatNodes(fn.Nodes)
		f.decIndent()
	}

	if len(doc.Diagnostics) > 0 {
		f.blankLine()
		f.emitLinef("diagnostics (%d)", len(doc.Diagnostics))
		f.incIndent()
		for _, d := range doc.Diagnostics {
			f.emitLinef("%s %d:%d %s", d.Severity, d.Span.Line, d.Span.Column, d.Message)
		}
		f.decIndent()
	}
}

// --- nodes ---

func (f *formatter) formatNodes(nodes []*flow.FlowNode) {
	for _, n := range nodes {
		f.formatNode(n)
	}
}

func (f *formatter) formatNode(n *flow.FlowNode) {
	var sb strings.Builder
	sb.WriteString(string(n.Kind()))
	if sym := symbol(n.Codedata); sym != "" {
		sb.WriteString(" ")
		sb.WriteString(sym)
	}
	if n.Flags != 0 {
		sb.WriteString(" {")
		sb.WriteString(n.Flags.String())
		sb.WriteString("}")
	}
	lr := n.Codedata.LineRange
	fmt.Fprintf(&sb, " [%d:%d-%d:%d]", lr.StartLine, lr.StartColumn, lr.EndLine, lr.EndColumn)
	if n.Returning {
		sb.WriteString(" returns")
	}
	if len(n.Diagnostics) > 0 {
		fmt.Fprintf(&sb, " !%d", len(n.Diagnostics))
	}
	f.emitLine(sb.String())

	f.incIndent()
	if f.opts.Properties {
		f.formatProperties(n.Properties)
		f.formatData(n.Metadata.Data)
	}
	for _, b := range n.Branches {
		f.formatBranch(b)
	}
	f.decIndent()
}

func (f *formatter) formatBranch(b *flow.Branch) {
	f.emitLinef("%s (%s)", b.Label, b.Kind)
	f.incIndent()
	if f.opts.Properties {
		f.formatProperties(b.Properties)
	}
	f.formatNodes(b.Children)
	f.decIndent()
}

func (f *formatter) formatProperties(ps *flow.Properties) {
	ps.Each(func(key string, p *flow.Property) {
		if p.Hidden && !f.opts.Hidden {
			return
		}
		if nested, ok := p.Value.(*flow.Properties); ok {
			f.emitLinef("%s:", key)
			f.incIndent()
			f.formatProperties(nested)
			f.decIndent()
			return
		}
		f.emitLinef("%s = %s", key, formatValue(p.Value))
	})
}

func (f *formatter) formatData(data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f.emitLinef("@%s = %+v", k, data[k])
	}
}

// symbol names the construct a node refers to, e.g. "http:Client.get".
func symbol(cd flow.Codedata) string {
	var sb strings.Builder
	if cd.Module != "" {
		sb.WriteString(cd.Module)
		sb.WriteString(":")
	}
	if cd.Object != "" {
		sb.WriteString(cd.Object)
		if cd.Symbol != "" {
			sb.WriteString(".")
		}
	}
	sb.WriteString(cd.Symbol)
	return sb.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "<none>"
	case string:
		return x
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	case *flow.Mapping:
		parts := make([]string, 0, x.Len())
		for pair := x.Oldest(); pair != nil; pair = pair.Next() {
			parts = append(parts, pair.Key+": "+pair.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(x)
	}
}
