package checker

import (
	"strings"
)

// Kind classifies a resolved type.
type Kind int

const (
	KindUnknown Kind = iota
	KindNil
	KindBoolean
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindByte
	KindJSON
	KindXML
	KindAny
	KindAnydata
	KindError
	KindArray
	KindMap
	KindRecord
	KindObject
	KindUnion
	KindFuture
	KindTypedesc
	KindFunction
)

var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindNil:      "()",
	KindBoolean:  "boolean",
	KindInt:      "int",
	KindFloat:    "float",
	KindDecimal:  "decimal",
	KindString:   "string",
	KindByte:     "byte",
	KindJSON:     "json",
	KindXML:      "xml",
	KindAny:      "any",
	KindAnydata:  "anydata",
	KindError:    "error",
	KindArray:    "array",
	KindMap:      "map",
	KindRecord:   "record",
	KindObject:   "object",
	KindUnion:    "union",
	KindFuture:   "future",
	KindTypedesc: "typedesc",
	KindFunction: "function",
}

// String returns the string representation of the kind
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// builtinKinds maps builtin type names to kinds.
var builtinKinds = map[string]Kind{
	"()":       KindNil,
	"nil":      KindNil,
	"boolean":  KindBoolean,
	"int":      KindInt,
	"float":    KindFloat,
	"decimal":  KindDecimal,
	"string":   KindString,
	"byte":     KindByte,
	"json":     KindJSON,
	"xml":      KindXML,
	"any":      KindAny,
	"anydata":  KindAnydata,
	"error":    KindError,
	"map":      KindMap,
	"future":   KindFuture,
	"typedesc": KindTypedesc,
	"function": KindFunction,
	"stream":   KindAny,
	"table":    KindAny,
	"readonly": KindAnydata,
}

// Type is a resolved type. Named types carry the module path they were
// declared in ("" for the file being checked).
type Type struct {
	Kind    Kind
	Name    string
	Module  string
	Elem    *Type   // array element; map, future and typedesc constraint
	Members []*Type // union members
	Record  *RecordInfo
	Object  *ObjectInfo
}

// Builtin types
var (
	TypeUnknown = &Type{Kind: KindUnknown}
	TypeNil     = &Type{Kind: KindNil}
	TypeBoolean = &Type{Kind: KindBoolean}
	TypeInt     = &Type{Kind: KindInt}
	TypeFloat   = &Type{Kind: KindFloat}
	TypeDecimal = &Type{Kind: KindDecimal}
	TypeString  = &Type{Kind: KindString}
	TypeJSON    = &Type{Kind: KindJSON}
	TypeXML     = &Type{Kind: KindXML}
	TypeAnydata = &Type{Kind: KindAnydata}
	TypeError   = &Type{Kind: KindError}
	TypeBytes   = &Type{Kind: KindArray, Elem: &Type{Kind: KindByte}}
)

// ArrayOf returns the array type with element elem.
func ArrayOf(elem *Type) *Type { return &Type{Kind: KindArray, Elem: elem} }

// FutureOf returns future<elem>.
func FutureOf(elem *Type) *Type { return &Type{Kind: KindFuture, Elem: elem} }

// String renders the type the way it is written in source. Library types
// use the last segment of their module path as prefix.
func (t *Type) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case KindUnion:
		if len(t.Members) == 2 {
			for i, m := range t.Members {
				if m.Kind == KindNil {
					other := t.Members[1-i]
					return wrapUnion(other) + "?"
				}
			}
		}
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = m.String()
		}
		return strings.Join(parts, "|")
	case KindArray:
		return wrapUnion(t.Elem) + "[]"
	case KindMap, KindFuture, KindTypedesc:
		if t.Elem == nil {
			return t.Kind.String()
		}
		return t.Kind.String() + "<" + t.Elem.String() + ">"
	}
	if t.Name != "" {
		if t.Module != "" {
			return modulePrefix(t.Module) + ":" + t.Name
		}
		return t.Name
	}
	return t.Kind.String()
}

func wrapUnion(t *Type) string {
	if t != nil && t.Kind == KindUnion {
		return "(" + t.String() + ")"
	}
	return t.String()
}

// modulePrefix returns the default import prefix of a module path.
func modulePrefix(module string) string {
	if i := strings.LastIndexAny(module, "/."); i >= 0 {
		return module[i+1:]
	}
	return module
}

// IsError reports whether the type is an error type.
func (t *Type) IsError() bool { return t != nil && t.Kind == KindError }

// WithoutErrors drops error members from a union. check and checkpanic
// expressions have this type.
func (t *Type) WithoutErrors() *Type {
	if t == nil {
		return nil
	}
	if t.Kind != KindUnion {
		if t.IsError() {
			return TypeNil
		}
		return t
	}
	var kept []*Type
	for _, m := range t.Members {
		if !m.IsError() {
			kept = append(kept, m)
		}
	}
	switch len(kept) {
	case 0:
		return TypeNil
	case 1:
		return kept[0]
	}
	return &Type{Kind: KindUnion, Members: kept}
}

// ObjectType returns the object behind t, looking through optional and
// error unions. It returns nil when t holds no object type.
func (t *Type) ObjectType() *ObjectInfo {
	if t == nil {
		return nil
	}
	if t.Object != nil {
		return t.Object
	}
	if t.Kind == KindUnion {
		for _, m := range t.Members {
			if m.Object != nil {
				return m.Object
			}
		}
	}
	return nil
}

// RecordType returns the record behind t, looking through unions.
func (t *Type) RecordType() *RecordInfo {
	if t == nil {
		return nil
	}
	if t.Record != nil {
		return t.Record
	}
	if t.Kind == KindUnion {
		for _, m := range t.Members {
			if m.Record != nil {
				return m.Record
			}
		}
	}
	return nil
}

// ObjectInfo holds information about a class or abstract object type
type ObjectInfo struct {
	Name    string
	Module  string
	Doc     string
	Client  bool
	Markers map[string]bool // qualified names of included marker types
	Fields  []*FieldInfo
	Init    *Function
	Methods []*Function
}

// Qualified returns "module:Name", or just the name for local classes.
func (o *ObjectInfo) Qualified() string {
	if o.Module == "" {
		return o.Name
	}
	return o.Module + ":" + o.Name
}

// HasMarker reports whether the object includes the qualified marker type.
func (o *ObjectInfo) HasMarker(qualified string) bool {
	return o != nil && (o.Markers[qualified] || o.Qualified() == qualified)
}

// Method looks up a plain or remote method by name.
func (o *ObjectInfo) Method(name string, kind FunctionKind) *Function {
	for _, m := range o.Methods {
		if m.Name == name && m.Kind == kind {
			return m
		}
	}
	return nil
}

// HasResources reports whether the object exposes resource methods.
func (o *ObjectInfo) HasResources() bool {
	for _, m := range o.Methods {
		if m.Kind == FuncResource {
			return true
		}
	}
	return false
}

// Resource finds the resource method matching accessor and a call path.
// segments holds literal names; computed segments are passed as "".
func (o *ObjectInfo) Resource(accessor string, segments []string) *Function {
	for _, m := range o.Methods {
		if m.Kind == FuncResource && m.Accessor == accessor && matchResourcePath(m.Path, segments) {
			return m
		}
	}
	return nil
}

// matchResourcePath matches declared segments ("users", "[string id]",
// "[string... rest]") against call segments.
func matchResourcePath(decl, call []string) bool {
	i := 0
	for _, d := range decl {
		if isRestSegment(d) {
			return true
		}
		if i >= len(call) {
			return false
		}
		if !isParamSegment(d) && d != call[i] {
			return false
		}
		i++
	}
	return i == len(call)
}

func isParamSegment(s string) bool { return strings.HasPrefix(s, "[") }

func isRestSegment(s string) bool { return isParamSegment(s) && strings.Contains(s, "...") }

// Field looks up a field by name.
func (o *ObjectInfo) Field(name string) *FieldInfo {
	for _, f := range o.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// RecordInfo holds information about a record type
type RecordInfo struct {
	Name     string
	Module   string
	Doc      string
	Fields   []*FieldInfo
	Rest     *Type
	RestText string
}

// Field looks up a field by name.
func (r *RecordInfo) Field(name string) *FieldInfo {
	for _, f := range r.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FieldInfo is a record or object field.
type FieldInfo struct {
	Name     string
	Type     *Type
	TypeText string
	Default  string
	Optional bool
	Doc      string
}

// FunctionKind distinguishes functions from object members.
type FunctionKind int

const (
	FuncFunction FunctionKind = iota
	FuncMethod
	FuncRemote
	FuncResource
)

// String returns the string representation of the function kind
func (k FunctionKind) String() string {
	switch k {
	case FuncMethod:
		return "method"
	case FuncRemote:
		return "remote"
	case FuncResource:
		return "resource"
	default:
		return "function"
	}
}

// Function is a callable: a module function, a method or an initializer.
type Function struct {
	Name       string
	Module     string
	Owner      *ObjectInfo // nil for module functions
	Kind       FunctionKind
	Accessor   string
	Path       []string
	Doc        string
	Params     []*Param // as declared; included records not expanded
	Returns    *Type
	ReturnText string
	Public     bool
}

// Inferred returns the inferred typedesc parameter, if any.
func (f *Function) Inferred() *Param {
	for _, p := range f.Params {
		if p.Kind == ParamInferred {
			return p
		}
	}
	return nil
}

// ParamKind is how a parameter accepts its argument.
type ParamKind string

const (
	ParamRequired           ParamKind = "REQUIRED"
	ParamDefaultable        ParamKind = "DEFAULTABLE"
	ParamRest               ParamKind = "REST"
	ParamIncludedRecord     ParamKind = "INCLUDED_RECORD"
	ParamIncludedField      ParamKind = "INCLUDED_FIELD"
	ParamIncludedRecordRest ParamKind = "INCLUDED_RECORD_REST"
	ParamInferred           ParamKind = "INFERRED"
)

// AdditionalValues is the key of the parameter absorbing named arguments
// that match no included-record field.
const AdditionalValues = "additionalValues"

// Param is one entry of a parameter schema. For REST parameters Type is
// the element type.
type Param struct {
	Name     string
	Kind     ParamKind
	Type     *Type
	TypeText string
	Default  string // default expression source text
	Doc      string
	Optional bool
	Record   string // owning included-record parameter for INCLUDED_FIELD and INCLUDED_RECORD_REST
}
