// flowc lowers source files into flow graphs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/lhaig/flowgraph/internal/ast"
	"github.com/lhaig/flowgraph/internal/catalog"
	"github.com/lhaig/flowgraph/internal/compiler"
	"github.com/lhaig/flowgraph/internal/formatter"
	"github.com/lhaig/flowgraph/internal/logging"
	"github.com/lhaig/flowgraph/internal/query"
	"github.com/lhaig/flowgraph/internal/server"
)

var version = "dev"

const usage = `flowc - lowers source files into flow graphs

Usage:
  flowc lower [options] <file.bal>        Print the flow graphs of one file
  flowc lower-dir [options] <dir>         Print the flow graphs of every file under dir
  flowc check [--ast] [options] <file.bal> Parse and type-check only
  flowc catalog add [options] <doc.json>  Store library documents in the SQLite catalog
  flowc serve [options]                   Serve the lowering tools over MCP on stdio
  flowc version                           Print the version

Options:
  --format <f>       json (default) or outline (lower, lower-dir)
  --query <jq>       Filter the JSON output with a jq expression (lower, lower-dir)
  --properties       Show node properties in the outline
  --log-level <lvl>  debug, info, warn or error
  --catalog-dir <d>  Directory of library documents (<org>/<name>/<version>.json)
  --catalog-db <f>   SQLite library catalog
  --workers <n>      Files lowered at once (lower-dir)
  --force-assign     Lower JSON, XML and byte-array literals as plain variables

Settings are read from ~/.flowc/settings.json and FLOWC_* environment
variables; flags win.
`

// errUsage is reported after the usage text has been printed.
var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	command, args := args[0], args[1:]
	switch command {
	case "lower":
		return handleLower(ctx, args, stdout, stderr)
	case "lower-dir":
		return handleLowerDir(ctx, args, stdout, stderr)
	case "check":
		return handleCheck(ctx, args, stdout, stderr)
	case "catalog":
		return handleCatalog(ctx, args, stdout, stderr)
	case "serve":
		return handleServe(ctx, args, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "flowc %s\n", version)
		return nil
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		fmt.Fprint(stderr, usage)
		return errUsage
	}
}

// env is the configuration and logger shared by every command.
type env struct {
	cfg Config
	log *slog.Logger
}

// parse loads the layered config, binds the flags on top and returns the
// positional arguments.
func parse(name string, args []string, stderr io.Writer, extra func(*flag.FlagSet)) (*env, []string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	fs := flag.NewFlagSet("flowc "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.bindFlags(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return &env{cfg: cfg, log: logging.New(level, stderr)}, fs.Args(), nil
}

// pipeline builds the lowering pipeline over the configured catalogs. The
// returned function releases them.
func (e *env) pipeline(ctx context.Context) (*compiler.Pipeline, func(), error) {
	var (
		chain   catalog.Chain
		release = func() {}
	)
	if e.cfg.CatalogDB != "" {
		db, err := catalog.OpenSQLite(ctx, e.cfg.CatalogDB)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, db)
		release = func() { _ = db.Close() }
	}
	if e.cfg.CatalogDir != "" {
		chain = append(chain, catalog.DirSource{Root: e.cfg.CatalogDir})
	}
	builtin, err := catalog.Builtin()
	if err != nil {
		release()
		return nil, nil, err
	}
	chain = append(chain, builtin)

	p, err := compiler.New(compiler.Options{
		Libraries:   chain,
		Versions:    e.cfg.Versions,
		ForceAssign: e.cfg.ForceAssign,
		Workers:     e.cfg.Workers,
		Logger:      e.log,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return p, release, nil
}

// output selects how lowered documents are printed.
type output struct {
	format     string
	expression string
	properties bool
}

func (o *output) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.format, "format", "json", "output format: json or outline")
	fs.StringVar(&o.expression, "query", "", "jq expression applied to the JSON output")
	fs.BoolVar(&o.properties, "properties", false, "include node properties in the outline")
}

func (o *output) validate() error {
	switch o.format {
	case "json":
		return nil
	case "outline":
		if o.expression != "" {
			return errors.New("--query applies to json output only")
		}
		return nil
	}
	return fmt.Errorf("unknown format %q", o.format)
}

func handleLower(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var out output
	e, rest, err := parse("lower", args, stderr, out.bindFlags)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("lower: expected exactly one input file")
	}
	if err := out.validate(); err != nil {
		return err
	}
	p, release, err := e.pipeline(ctx)
	if err != nil {
		return err
	}
	defer release()

	doc, err := p.LowerFile(ctx, rest[0])
	if err != nil {
		return err
	}
	if out.format == "outline" {
		_, err := io.WriteString(stdout, formatter.Outline(doc, formatter.Options{Properties: out.properties}))
		return err
	}
	return write(ctx, stdout, doc, out.expression)
}

func handleLowerDir(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var out output
	e, rest, err := parse("lower-dir", args, stderr, out.bindFlags)
	if err != nil {
		return err
	}
	if err := out.validate(); err != nil {
		return err
	}
	root := "."
	if len(rest) > 0 {
		root = rest[0]
	}
	p, release, err := e.pipeline(ctx)
	if err != nil {
		return err
	}
	defer release()

	docs, err := p.LowerProject(ctx, root)
	if err != nil {
		return err
	}
	if out.format == "outline" {
		for i, doc := range docs {
			if i > 0 {
				fmt.Fprintln(stdout)
			}
			if _, err := io.WriteString(stdout, formatter.Outline(doc, formatter.Options{Properties: out.properties})); err != nil {
				return err
			}
		}
		return nil
	}
	return write(ctx, stdout, docs, out.expression)
}

func handleCheck(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var dump bool
	e, rest, err := parse("check", args, stderr, func(fs *flag.FlagSet) {
		fs.BoolVar(&dump, "ast", false, "print the syntax tree")
	})
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("check: expected exactly one input file")
	}
	p, release, err := e.pipeline(ctx)
	if err != nil {
		return err
	}
	defer release()

	path := rest[0]
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	model, err := p.Check(ctx, path, string(source))
	if err != nil {
		return err
	}
	if dump {
		fmt.Fprint(stdout, ast.Print(model.Program()))
	}
	diags := model.AllDiagnostics()
	if diags.Count() > 0 {
		fmt.Fprintln(stdout, diags.Format(path))
	}
	if diags.HasErrors() {
		return fmt.Errorf("%s: %d error(s)", path, diags.ErrorCount())
	}
	fmt.Fprintf(stdout, "%s: OK\n", path)
	return nil
}

func handleCatalog(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 || args[0] != "add" {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	e, rest, err := parse("catalog add", args[1:], stderr, nil)
	if err != nil {
		return err
	}
	if e.cfg.CatalogDB == "" {
		return errors.New("catalog add: no catalog database configured")
	}
	if len(rest) == 0 {
		return errors.New("catalog add: expected at least one document")
	}
	db, err := catalog.OpenSQLite(ctx, e.cfg.CatalogDB)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, path := range rest {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		pkg, err := db.Put(ctx, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(stdout, "Stored %s %s\n", pkg.Module(), pkg.Version)
	}
	return nil
}

func handleServe(ctx context.Context, args []string, stderr io.Writer) error {
	e, _, err := parse("serve", args, stderr, nil)
	if err != nil {
		return err
	}
	p, release, err := e.pipeline(ctx)
	if err != nil {
		return err
	}
	defer release()
	return server.New(p, version, e.log).Run(ctx)
}

// write prints v as indented JSON, filtered through expression if set.
func write(ctx context.Context, w io.Writer, v any, expression string) error {
	if expression != "" {
		out, err := query.New().Run(ctx, expression, v)
		if err != nil {
			return err
		}
		v = out
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
