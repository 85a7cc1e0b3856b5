package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Source loads package documents. An empty version asks for the newest
// version the source holds. Sources return ErrNotFound (possibly wrapped)
// when they have no document for the module.
type Source interface {
	Load(ctx context.Context, module, version string) (*Package, error)
}

// Decode validates a raw document against the package schema and decodes it.
func Decode(source string, data []byte) (*Package, error) {
	if err := Validate(source, data); err != nil {
		return nil, err
	}
	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", source, err)
	}
	for _, c := range pkg.Classes {
		if c.Init != nil && c.Init.Kind == "" {
			c.Init.Kind = KindMethod
		}
		for _, m := range c.Methods {
			if m.Kind == "" {
				m.Kind = KindMethod
			}
		}
	}
	for _, f := range pkg.Functions {
		if f.Kind == "" {
			f.Kind = KindFunction
		}
	}
	return &pkg, nil
}

// --- Memory ---

// MemorySource serves packages held in memory.
type MemorySource struct {
	mu       sync.RWMutex
	packages map[string][]*Package
}

// NewMemorySource returns a MemorySource holding pkgs.
func NewMemorySource(pkgs ...*Package) *MemorySource {
	m := &MemorySource{packages: make(map[string][]*Package)}
	for _, p := range pkgs {
		m.Add(p)
	}
	return m
}

// Add registers a package, replacing any document with the same version.
func (m *MemorySource) Add(pkg *Package) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pkg.Module()
	list := m.packages[key]
	for i, existing := range list {
		if existing.Version == pkg.Version {
			list[i] = pkg
			return
		}
	}
	m.packages[key] = append(list, pkg)
}

// Load implements Source.
func (m *MemorySource) Load(_ context.Context, module, version string) (*Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Package
	for _, p := range m.packages[module] {
		if version != "" {
			if p.Version == version {
				return p, nil
			}
			continue
		}
		if best == nil || compareVersions(p.Version, best.Version) > 0 {
			best = p
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, moduleKey(module, version))
	}
	return best, nil
}

//go:embed packages/*.json
var builtinFS embed.FS

var (
	builtinOnce sync.Once
	builtin     *MemorySource
	builtinErr  error
)

// Builtin returns the source of packages compiled into the binary.
func Builtin() (*MemorySource, error) {
	builtinOnce.Do(func() {
		builtin = NewMemorySource()
		entries, err := fs.ReadDir(builtinFS, "packages")
		if err != nil {
			builtinErr = fmt.Errorf("catalog: read builtin packages: %w", err)
			return
		}
		for _, e := range entries {
			name := "packages/" + e.Name()
			data, err := builtinFS.ReadFile(name)
			if err != nil {
				builtinErr = fmt.Errorf("catalog: read %s: %w", name, err)
				return
			}
			pkg, err := Decode(name, data)
			if err != nil {
				builtinErr = err
				return
			}
			builtin.Add(pkg)
		}
	})
	return builtin, builtinErr
}

// --- Directory ---

// DirSource reads documents laid out as <root>/<org>/<name>/<version>.json.
type DirSource struct {
	Root string
}

// Load implements Source.
func (d DirSource) Load(_ context.Context, module, version string) (*Package, error) {
	org, name, err := SplitModule(module)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(d.Root, org, name)
	if version == "" {
		version, err = newestVersionIn(dir)
		if err != nil {
			return nil, err
		}
		if version == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, module)
		}
	}
	path := filepath.Join(dir, version+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, moduleKey(module, version))
		}
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Decode(path, data)
}

func newestVersionIn(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("catalog: read %s: %w", dir, err)
	}
	newest := ""
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		v := strings.TrimSuffix(e.Name(), ".json")
		if newest == "" || compareVersions(v, newest) > 0 {
			newest = v
		}
	}
	return newest, nil
}

// --- SQLite ---

const sqliteSchema = `CREATE TABLE IF NOT EXISTS packages (
	module TEXT NOT NULL,
	version TEXT NOT NULL,
	document TEXT NOT NULL,
	PRIMARY KEY (module, version)
)`

// SQLiteSource stores package documents in a SQLite database.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the catalog database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create packages table: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close closes the database.
func (s *SQLiteSource) Close() error { return s.db.Close() }

// Put validates and stores a raw document, replacing any existing row.
func (s *SQLiteSource) Put(ctx context.Context, data []byte) (*Package, error) {
	pkg, err := Decode("sqlite input", data)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO packages (module, version, document) VALUES (?, ?, ?)
		 ON CONFLICT(module, version) DO UPDATE SET document=excluded.document`,
		pkg.Module(), pkg.Version, string(data),
	)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", pkg.Module(), err)
	}
	return pkg, nil
}

// Load implements Source.
func (s *SQLiteSource) Load(ctx context.Context, module, version string) (*Package, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if version != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT version, document FROM packages WHERE module = ? AND version = ?`, module, version)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT version, document FROM packages WHERE module = ?`, module)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", module, err)
	}
	defer rows.Close()

	bestVersion, bestDoc := "", ""
	for rows.Next() {
		var v, doc string
		if err := rows.Scan(&v, &doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", module, err)
		}
		if bestVersion == "" || compareVersions(v, bestVersion) > 0 {
			bestVersion, bestDoc = v, doc
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", module, err)
	}
	if bestVersion == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, moduleKey(module, version))
	}
	return Decode(module+"@"+bestVersion, []byte(bestDoc))
}

// --- Chain ---

// Chain tries each source in order and returns the first document found.
type Chain []Source

// Load implements Source.
func (c Chain) Load(ctx context.Context, module, version string) (*Package, error) {
	for _, src := range c {
		pkg, err := src.Load(ctx, module, version)
		if err == nil {
			return pkg, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, moduleKey(module, version))
}

func moduleKey(module, version string) string {
	if version == "" {
		return module
	}
	return module + "@" + version
}

// compareVersions orders dotted numeric versions. Non-numeric parts compare
// as strings.
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var x, y string
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		xi, xerr := strconv.Atoi(x)
		yi, yerr := strconv.Atoi(y)
		if xerr == nil && yerr == nil {
			if xi != yi {
				if xi < yi {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(x, y); c != 0 {
			return c
		}
	}
	return 0
}
