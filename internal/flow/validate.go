package flow

import (
	"fmt"
)

// branchShape is the set of branches a node kind expects.
type branchShape struct {
	required   BranchKind // kind that must appear at least once
	repeatable Repeatable // repeatability of the required kind
	many       bool       // more than one required branch allowed
	optional   BranchKind // kind that may appear at most once
	optRep     Repeatable
	failure    bool // an ON_FAILURE branch may appear at most once
}

var shapes = map[NodeKind]branchShape{
	If:           {required: BranchConditional, repeatable: OneOrMore, many: true, optional: BranchBlock, optRep: ZeroOrOne},
	While:        {required: BranchBody, repeatable: One, failure: true},
	Foreach:      {required: BranchBody, repeatable: One, failure: true},
	Match:        {required: BranchConditional, repeatable: OneOrMore, many: true, failure: true},
	ErrorHandler: {required: BranchBody, repeatable: One, failure: true},
	ParallelFlow: {required: BranchWorker, repeatable: OneOrMore, many: true},
	Transaction:  {required: BranchBody, repeatable: One, failure: true},
	Retry:        {required: BranchBody, repeatable: One, failure: true},
	Lock:         {required: BranchBody, repeatable: One, failure: true},
}

// Validate checks a flow node list for structural correctness and returns a
// list of error messages. An empty slice indicates the list is valid.
func Validate(nodes []*FlowNode) []string {
	var errors []string
	seen := make(map[string]bool)
	Walk(nodes, func(n *FlowNode, _ int) bool {
		context := fmt.Sprintf("%s node at %d:%d", n.Kind(), n.Codedata.LineRange.StartLine, n.Codedata.LineRange.StartColumn)
		if !n.Kind().Valid() {
			errors = append(errors, fmt.Sprintf("%s: unknown node kind", context))
		}
		if seen[n.ID] {
			errors = append(errors, fmt.Sprintf("%s: duplicate id %s", context, n.ID))
		}
		seen[n.ID] = true
		errors = append(errors, validateBranches(n, context)...)
		errors = append(errors, validateProperties(n.Properties, context)...)
		for _, b := range n.Branches {
			errors = append(errors, validateProperties(b.Properties, context+" branch "+b.Label)...)
		}
		return true
	})
	return errors
}

func validateBranches(n *FlowNode, context string) []string {
	var errors []string
	shape, ok := shapes[n.Kind()]
	if !ok {
		if len(n.Branches) > 0 {
			errors = append(errors, fmt.Sprintf("%s: unexpected %d branches", context, len(n.Branches)))
		}
		return errors
	}

	required, optional, failure := 0, 0, 0
	for _, b := range n.Branches {
		switch {
		case b.Kind == shape.required:
			required++
			if b.Repeatable != shape.repeatable {
				errors = append(errors, fmt.Sprintf("%s: branch %s is %s, expected %s", context, b.Label, b.Repeatable, shape.repeatable))
			}
		case shape.optional != "" && b.Kind == shape.optional:
			optional++
			if b.Repeatable != shape.optRep {
				errors = append(errors, fmt.Sprintf("%s: branch %s is %s, expected %s", context, b.Label, b.Repeatable, shape.optRep))
			}
		case shape.failure && b.Kind == BranchOnFailure:
			failure++
		default:
			errors = append(errors, fmt.Sprintf("%s: unexpected %s branch %s", context, b.Kind, b.Label))
		}
	}

	if required == 0 {
		errors = append(errors, fmt.Sprintf("%s: missing %s branch", context, shape.required))
	}
	if required > 1 && !shape.many {
		errors = append(errors, fmt.Sprintf("%s: %d %s branches, expected exactly one", context, required, shape.required))
	}
	if optional > 1 {
		errors = append(errors, fmt.Sprintf("%s: %d %s branches, expected at most one", context, optional, shape.optional))
	}
	if failure > 1 {
		errors = append(errors, fmt.Sprintf("%s: %d on-failure branches, expected at most one", context, failure))
	}
	return errors
}

func validateProperties(ps *Properties, context string) []string {
	var errors []string
	ps.Each(func(key string, p *Property) {
		if p == nil {
			errors = append(errors, fmt.Sprintf("%s: property %s is nil", context, key))
			return
		}
		if _, err := p.SourceText(); err != nil {
			errors = append(errors, fmt.Sprintf("%s: property %s: %v", context, key, err))
		}
		if p.Codedata != nil && p.Codedata.OriginalName == "" {
			errors = append(errors, fmt.Sprintf("%s: property %s has no original name", context, key))
		}
		if nested, ok := p.Value.(*Properties); ok {
			errors = append(errors, validateProperties(nested, context+" property "+key)...)
		}
	})
	return errors
}

// ValidateSource checks that every node's source text is exactly the text
// its range covers in src.
func ValidateSource(nodes []*FlowNode, src string) []string {
	var errors []string
	Walk(nodes, func(n *FlowNode, _ int) bool {
		lr := n.Codedata.LineRange
		if got := lr.Text(src); got != n.Codedata.SourceCode {
			errors = append(errors, fmt.Sprintf("%s node at %d:%d: source %q does not match range text %q",
				n.Kind(), lr.StartLine, lr.StartColumn, n.Codedata.SourceCode, got))
		}
		return true
	})
	return errors
}
