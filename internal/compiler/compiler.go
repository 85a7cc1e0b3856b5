// Package compiler runs the parse, check and lower pipeline over a source
// text, a file or a project tree and collects the flow graphs per function.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/catalog"
	"github.com/lhaig/flowgraph/internal/checker"
	"github.com/lhaig/flowgraph/internal/consteval"
	"github.com/lhaig/flowgraph/internal/diagnostic"
	"github.com/lhaig/flowgraph/internal/discover"
	"github.com/lhaig/flowgraph/internal/flow"
	"github.com/lhaig/flowgraph/internal/logging"
	"github.com/lhaig/flowgraph/internal/lower"
	"github.com/lhaig/flowgraph/internal/parser"
)

// ErrSyntax is returned when a source does not parse.
var ErrSyntax = errors.New("syntax errors")

// Options configures a Pipeline.
type Options struct {
	// Libraries resolves imported modules. Nil means the builtin catalog.
	Libraries catalog.Source
	// Versions pins module versions; unpinned modules use the newest.
	Versions map[string]string
	// Module is the name of the module being lowered.
	Module string

	ForceAssign bool

	// Workers bounds the number of files lowered at once by LowerProject.
	Workers int

	Logger *slog.Logger
}

// Function is the flow graph of one function, method or resource.
type Function struct {
	Name  string           `json:"name"`
	Kind  string           `json:"kind"`
	Nodes []*flow.FlowNode `json:"nodes"`
}

// Document is the lowered form of one source file.
type Document struct {
	File        string                  `json:"file"`
	Connections []*flow.FlowNode        `json:"connections"`
	Functions   []*Function             `json:"functions"`
	Diagnostics []diagnostic.Diagnostic `json:"diagnostics,omitempty"`
}

// Pipeline lowers sources. It is safe for concurrent use.
type Pipeline struct {
	opts   Options
	libs   *catalog.Cache
	folder *consteval.Folder
	log    *slog.Logger
}

// New returns a Pipeline.
func New(opts Options) (*Pipeline, error) {
	src := opts.Libraries
	if src == nil {
		builtin, err := catalog.Builtin()
		if err != nil {
			return nil, fmt.Errorf("loading builtin catalog: %w", err)
		}
		src = builtin
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Pipeline{
		opts:   opts,
		libs:   catalog.NewCache(src),
		folder: consteval.New(),
		log:    log,
	}, nil
}

// Check parses and type-checks source.
func (p *Pipeline) Check(ctx context.Context, file, source string) (*checker.Model, error) {
	prog, diags := parser.Parse(source)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w in %s:\n%s", ErrSyntax, file, diags.Format(file))
	}
	model := checker.Check(prog, checker.Options{
		Source:    source,
		File:      file,
		Module:    p.opts.Module,
		Libraries: catalog.NewResolver(ctx, p.libs, p.opts.Versions),
	})
	model.AllDiagnostics().Merge(diags)
	return model, nil
}

// LowerSource lowers every function, method and module-level connection
// of source. Check diagnostics do not stop lowering; they are attached to
// the nodes they fall in and listed on the document.
func (p *Pipeline) LowerSource(ctx context.Context, file, source string) (*Document, error) {
	ctx = logging.WithFile(ctx, file)
	log := logging.LogWith(ctx, p.log)

	model, err := p.Check(ctx, file, source)
	if err != nil {
		return nil, err
	}
	prog := model.Program()

	base := lower.Options{
		Oracle:           model,
		Source:           source,
		FileName:         file,
		DataMappers:      dataMappers(prog),
		NaturalFunctions: naturalFunctions(prog),
		ForceAssign:      p.opts.ForceAssign,
		Constants:        p.constants(prog),
		Folder:           p.folder,
		Logger:           log,
	}

	doc := &Document{
		File:        file,
		Connections: []*flow.FlowNode{},
		Functions:   []*Function{},
		Diagnostics: model.AllDiagnostics().All(),
	}

	opts := base
	opts.Scope = lower.Global
	nodes, err := lower.Lower(prog, opts)
	if err != nil {
		return nil, fmt.Errorf("lowering module variables of %s: %w", file, err)
	}
	doc.Connections = append(doc.Connections, nodes...)

	for _, svc := range prog.Services {
		opts := base
		opts.Scope = lower.Service
		for _, f := range svc.Fields {
			if f.Default == nil {
				continue
			}
			nodes, err := lower.Lower(fieldDecl(f), opts)
			if err != nil {
				return nil, fmt.Errorf("lowering service field %s of %s: %w", f.Name, file, err)
			}
			doc.Connections = append(doc.Connections, nodes...)
		}
	}

	add := func(name, kind string, root ast.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		opts := base
		opts.Scope = lower.Local
		opts.Logger = logging.LogWith(logging.WithFunction(ctx, name), p.log)
		nodes, err := lower.Lower(root, opts)
		if err != nil {
			return fmt.Errorf("lowering %s in %s: %w", name, file, err)
		}
		doc.Functions = append(doc.Functions, &Function{Name: name, Kind: kind, Nodes: nodes})
		return nil
	}

	for _, fn := range prog.Functions {
		if fn.Mapping != nil || fn.External {
			continue
		}
		if err := add(fn.Name, "function", fn); err != nil {
			return nil, err
		}
	}
	for _, cls := range prog.Classes {
		for _, md := range members(cls.Init, cls.Methods) {
			if err := add(cls.Name+"."+methodName(md), methodKind(md), md); err != nil {
				return nil, err
			}
		}
	}
	for _, svc := range prog.Services {
		prefix := "service"
		if svc.BasePath != "" {
			prefix = "service " + svc.BasePath
		}
		for _, md := range members(svc.Init, svc.Methods) {
			if err := add(prefix+"."+methodName(md), methodKind(md), md); err != nil {
				return nil, err
			}
		}
	}

	log.Debug("lowered file", "functions", len(doc.Functions), "connections", len(doc.Connections))
	return doc, nil
}

// LowerFile reads and lowers one file.
func (p *Pipeline) LowerFile(ctx context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return p.LowerSource(ctx, path, string(data))
}

// LowerProject lowers every source file under root. Documents come back in
// path order; file names are relative to root. The first failure cancels
// the remaining files.
func (p *Pipeline) LowerProject(ctx context.Context, root string) ([]*Document, error) {
	files, err := discover.Files(root)
	if err != nil {
		return nil, err
	}
	p.log.Info("lowering project", "root", root, "files", len(files), "workers", p.opts.Workers)

	docs := make([]*Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, rel := range files {
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(root, rel))
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}
			doc, err := p.LowerSource(gctx, rel, string(data))
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// LibrariesLoaded reports how many library documents the pipeline holds.
func (p *Pipeline) LibrariesLoaded() int { return p.libs.Len() }

// constants folds module-level variable initializers. Initializers that
// are not constant expressions are skipped.
func (p *Pipeline) constants(prog *ast.Program) map[string]any {
	var (
		names  []string
		values []ast.Expression
	)
	for _, v := range prog.Vars {
		if v.Value == nil {
			continue
		}
		names = append(names, v.Name)
		values = append(values, v.Value)
	}
	return p.folder.Constants(names, values)
}

func dataMappers(prog *ast.Program) map[string]ast.Span {
	out := make(map[string]ast.Span)
	for _, fn := range prog.Functions {
		if fn.Mapping != nil {
			out[fn.Name] = fn.Span
		}
	}
	return out
}

func naturalFunctions(prog *ast.Program) map[string]ast.Span {
	out := make(map[string]ast.Span)
	for _, fn := range prog.Functions {
		if !fn.External {
			continue
		}
		for _, a := range fn.Annotations {
			if a == "NaturalFunction" || strings.HasSuffix(a, ":NaturalFunction") {
				out[fn.Name] = fn.Span
				break
			}
		}
	}
	return out
}

// fieldDecl views a field with an initializer as a final declaration.
func fieldDecl(f *ast.FieldDecl) *ast.VarDecl {
	return &ast.VarDecl{
		Span:  f.Span,
		Final: f.Final,
		Type:  f.Type,
		Name:  f.Name,
		Value: f.Default,
	}
}

func members(init *ast.MethodDecl, methods []*ast.MethodDecl) []*ast.MethodDecl {
	out := make([]*ast.MethodDecl, 0, len(methods)+1)
	if init != nil && init.Body != nil {
		out = append(out, init)
	}
	for _, md := range methods {
		if md.Body != nil {
			out = append(out, md)
		}
	}
	return out
}

// methodName names a member. Resources are named by accessor and path.
func methodName(md *ast.MethodDecl) string {
	if md.Kind != ast.ResourceMethod {
		return md.Name
	}
	segs := make([]string, 0, len(md.Path))
	for _, s := range md.Path {
		if s.IsParam() {
			segs = append(segs, "["+s.Name+"]")
			continue
		}
		segs = append(segs, s.Name)
	}
	path := strings.Join(segs, "/")
	if path == "" {
		path = "."
	}
	return md.Accessor + " " + path
}

func methodKind(md *ast.MethodDecl) string {
	switch md.Kind {
	case ast.RemoteMethod:
		return "remote"
	case ast.ResourceMethod:
		return "resource"
	}
	if md.Name == "init" {
		return "init"
	}
	return "method"
}
