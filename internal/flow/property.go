package flow

import (
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Property is one editable field of a node or branch.
type Property struct {
	Metadata       PropertyMetadata  `json:"metadata"`
	ValueType      ValueType         `json:"valueType"`
	Value          any               `json:"value,omitempty"`
	DefaultValue   string            `json:"defaultValue,omitempty"`
	Placeholder    string            `json:"placeholder,omitempty"`
	TypeConstraint string            `json:"valueTypeConstraint,omitempty"`
	Optional       bool              `json:"optional"`
	Editable       bool              `json:"editable"`
	Advanced       bool              `json:"advanced"`
	Hidden         bool              `json:"hidden,omitempty"`
	Modified       bool              `json:"modified,omitempty"`
	Codedata       *PropertyCodedata `json:"codedata,omitempty"`
}

// PropertyMetadata is the display information of a property.
type PropertyMetadata struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// PropertyCodedata records the schema entry a property was bound from.
type PropertyCodedata struct {
	Kind         Origin `json:"kind"`
	OriginalName string `json:"originalName"`
}

// Mapping is the value of a MAPPING_EXPRESSION_SET property: field names
// to expression text in source order.
type Mapping = orderedmap.OrderedMap[string, string]

// NewMapping returns an empty Mapping.
func NewMapping() *Mapping { return orderedmap.New[string, string]() }

// String returns the value as text for string-shaped value types.
func (p *Property) String() string {
	s, _ := p.Value.(string)
	return s
}

// SourceText renders the value the way it is written in source. It fails
// when the value does not have the shape its ValueType requires.
func (p *Property) SourceText() (string, error) {
	if p.Value == nil {
		return "", nil
	}
	switch p.ValueType {
	case ValueString, ValueExpression, ValueFixed, ValueRawTemplate, ValueLVExpression,
		ValueIdentifier, ValueTypeDesc:
		if s, ok := p.Value.(string); ok {
			return s, nil
		}
	case ValueNumber:
		if n, ok := p.Value.(int); ok {
			return strconv.Itoa(n), nil
		}
	case ValueFlag:
		if b, ok := p.Value.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case ValueExpressionSet:
		if set, ok := p.Value.([]string); ok {
			return strings.Join(set, ", "), nil
		}
	case ValueMappingExpressionSet:
		if m, ok := p.Value.(*Mapping); ok {
			parts := make([]string, 0, m.Len())
			for pair := m.Oldest(); pair != nil; pair = pair.Next() {
				parts = append(parts, pair.Key+" = "+pair.Value)
			}
			return strings.Join(parts, ", "), nil
		}
	case ValueRepeatable:
		if props, ok := p.Value.(*Properties); ok {
			parts := make([]string, 0, props.Len())
			var err error
			props.Each(func(_ string, child *Property) {
				if err != nil {
					return
				}
				var s string
				s, err = child.SourceText()
				parts = append(parts, s)
			})
			return strings.Join(parts, ", "), err
		}
	default:
		return "", fmt.Errorf("flow: unknown value type %q", p.ValueType)
	}
	return "", fmt.Errorf("flow: %s value has type %T", p.ValueType, p.Value)
}

// Properties is an insertion-ordered set of properties with unique keys.
// The zero value and the nil pointer are empty and read-only.
type Properties struct {
	om *orderedmap.OrderedMap[string, *Property]
}

// NewProperties returns an empty property set.
func NewProperties() *Properties {
	return &Properties{om: orderedmap.New[string, *Property]()}
}

// Set stores prop under key. Replacing an existing key keeps its position.
func (ps *Properties) Set(key string, prop *Property) {
	if ps.om == nil {
		ps.om = orderedmap.New[string, *Property]()
	}
	ps.om.Set(key, prop)
}

// Get returns the property stored under key.
func (ps *Properties) Get(key string) (*Property, bool) {
	if ps == nil || ps.om == nil {
		return nil, false
	}
	return ps.om.Get(key)
}

// Len returns the number of properties.
func (ps *Properties) Len() int {
	if ps == nil || ps.om == nil {
		return 0
	}
	return ps.om.Len()
}

// Keys returns the keys in insertion order.
func (ps *Properties) Keys() []string {
	keys := make([]string, 0, ps.Len())
	ps.Each(func(k string, _ *Property) { keys = append(keys, k) })
	return keys
}

// Each calls fn for every property in insertion order.
func (ps *Properties) Each(fn func(key string, prop *Property)) {
	if ps == nil || ps.om == nil {
		return
	}
	for pair := ps.om.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// MarshalJSON encodes the set as an object with keys in insertion order.
func (ps *Properties) MarshalJSON() ([]byte, error) {
	if ps == nil || ps.om == nil {
		return []byte("{}"), nil
	}
	return ps.om.MarshalJSON()
}

// PropertyBuilder builds a Property fluently.
type PropertyBuilder struct {
	p Property
}

// NewProperty starts a property of the given value type. Properties are
// editable unless Fixed is called.
func NewProperty(vt ValueType) *PropertyBuilder {
	return &PropertyBuilder{p: Property{ValueType: vt, Editable: true}}
}

// ValueType changes the value type.
func (b *PropertyBuilder) ValueType(vt ValueType) *PropertyBuilder {
	b.p.ValueType = vt
	return b
}

// Label sets the display label.
func (b *PropertyBuilder) Label(s string) *PropertyBuilder {
	b.p.Metadata.Label = s
	return b
}

// Description sets the documentation shown with the property.
func (b *PropertyBuilder) Description(s string) *PropertyBuilder {
	b.p.Metadata.Description = s
	return b
}

// Value sets the bound value. Its Go type must match the ValueType.
func (b *PropertyBuilder) Value(v any) *PropertyBuilder {
	b.p.Value = v
	return b
}

// Default sets the declared default as source text.
func (b *PropertyBuilder) Default(s string) *PropertyBuilder {
	b.p.DefaultValue = s
	return b
}

// Placeholder sets the value suggested for an empty property.
func (b *PropertyBuilder) Placeholder(s string) *PropertyBuilder {
	b.p.Placeholder = s
	return b
}

// Type sets the declared type the value must satisfy.
func (b *PropertyBuilder) Type(s string) *PropertyBuilder {
	b.p.TypeConstraint = s
	return b
}

// Optional sets whether the property may be left empty.
func (b *PropertyBuilder) Optional(v bool) *PropertyBuilder {
	b.p.Optional = v
	return b
}

// Advanced sets whether editors fold the property away by default.
func (b *PropertyBuilder) Advanced(v bool) *PropertyBuilder {
	b.p.Advanced = v
	return b
}

// Hidden keeps the property out of editors.
func (b *PropertyBuilder) Hidden() *PropertyBuilder {
	b.p.Hidden = true
	return b
}

// Fixed marks the property as not editable.
func (b *PropertyBuilder) Fixed() *PropertyBuilder {
	b.p.Editable = false
	return b
}

// Modified marks the value as supplied at the call site.
func (b *PropertyBuilder) Modified(v bool) *PropertyBuilder {
	b.p.Modified = v
	return b
}

// Origin records the schema entry the property was bound from.
func (b *PropertyBuilder) Origin(kind Origin, originalName string) *PropertyBuilder {
	b.p.Codedata = &PropertyCodedata{Kind: kind, OriginalName: originalName}
	return b
}

// Build returns a copy of the property built so far.
func (b *PropertyBuilder) Build() *Property {
	p := b.p
	return &p
}
