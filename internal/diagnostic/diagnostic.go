package diagnostic

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a diagnostic message
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

// String returns the string representation of the severity level
func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "error":
		*s = Error
	case "warning":
		*s = Warning
	case "info":
		*s = Info
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Span locates a diagnostic in source. Start and End are byte offsets, End
// exclusive; Line and Column are 1-based and refer to Start.
type Span struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Diagnostic represents a single compiler error, warning, or info message
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Span     Span     `json:"span"`
	File     string   `json:"file,omitempty"` // optional file path (for multi-file compilation)
	Hint     string   `json:"hint,omitempty"` // optional suggestion
}

// Diagnostics manages a collection of diagnostic messages
type Diagnostics struct {
	items []Diagnostic
}

// New creates a new empty Diagnostics collection
func New() *Diagnostics {
	return &Diagnostics{
		items: make([]Diagnostic, 0),
	}
}

// Add appends a prepared diagnostic.
func (d *Diagnostics) Add(item Diagnostic) {
	d.items = append(d.items, item)
}

// Errorf adds an error diagnostic with formatted message
func (d *Diagnostics) Errorf(span Span, format string, args ...any) {
	d.Add(Diagnostic{Severity: Error, Message: fmt.Sprintf(format, args...), Span: span})
}

// Warningf adds a warning diagnostic with formatted message
func (d *Diagnostics) Warningf(span Span, format string, args ...any) {
	d.Add(Diagnostic{Severity: Warning, Message: fmt.Sprintf(format, args...), Span: span})
}

// Infof adds an info diagnostic with formatted message
func (d *Diagnostics) Infof(span Span, format string, args ...any) {
	d.Add(Diagnostic{Severity: Info, Message: fmt.Sprintf(format, args...), Span: span})
}

// ErrorWithHint adds an error diagnostic with an optional hint
func (d *Diagnostics) ErrorWithHint(span Span, msg, hint string) {
	d.Add(Diagnostic{Severity: Error, Message: msg, Span: span, Hint: hint})
}

// Merge appends every diagnostic of other.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil {
		return
	}
	d.items = append(d.items, other.items...)
}

// HasErrors returns true if there are any error-level diagnostics
func (d *Diagnostics) HasErrors() bool {
	for _, item := range d.items {
		if item.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns only the error-level diagnostics
func (d *Diagnostics) Errors() []Diagnostic {
	errors := make([]Diagnostic, 0)
	for _, item := range d.items {
		if item.Severity == Error {
			errors = append(errors, item)
		}
	}
	return errors
}

// Within returns the diagnostics whose span lies inside span, in insertion order.
func (d *Diagnostics) Within(span Span) []Diagnostic {
	var out []Diagnostic
	for _, item := range d.items {
		if span.Contains(item.Span) {
			out = append(out, item)
		}
	}
	return out
}

// All returns all diagnostics regardless of severity
func (d *Diagnostics) All() []Diagnostic {
	return d.items
}

// Count returns the total number of diagnostics
func (d *Diagnostics) Count() int {
	return len(d.items)
}

// ErrorCount returns the number of error-level diagnostics
func (d *Diagnostics) ErrorCount() int {
	count := 0
	for _, item := range d.items {
		if item.Severity == Error {
			count++
		}
	}
	return count
}

// WarningCount returns the number of warning-level diagnostics
func (d *Diagnostics) WarningCount() int {
	count := 0
	for _, item := range d.items {
		if item.Severity == Warning {
			count++
		}
	}
	return count
}

// Format returns human-readable error messages
// Output format:
//
//	error[main.bal:3:10]: undefined symbol 'x'
//	  hint: did you mean 'y'?
//	warning[main.bal:5:1]: unknown module prefix 'foo'
func (d *Diagnostics) Format(filename string) string {
	if len(d.items) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, item := range d.items {
		fileToUse := filename
		if item.File != "" {
			fileToUse = item.File
		}

		fmt.Fprintf(&builder, "%s[%s:%d:%d]: %s",
			item.Severity.String(),
			fileToUse,
			item.Span.Line,
			item.Span.Column,
			item.Message,
		)

		if item.Hint != "" {
			fmt.Fprintf(&builder, "\n  hint: %s", item.Hint)
		}

		if i < len(d.items)-1 {
			builder.WriteString("\n")
		}
	}

	return builder.String()
}

// Clear removes all diagnostics from the collection
func (d *Diagnostics) Clear() {
	d.items = make([]Diagnostic, 0)
}
