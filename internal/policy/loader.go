package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/spf13/afero"
)

// PolicyFile is one operator Rego file.
type PolicyFile struct {
	Path    string `json:"path"`
	Name    string `json:"name"` // base name without .rego
	Package string `json:"package"`
	Content string `json:"content"`

	module *ast.Module
}

// Loader reads operator policies from a directory tree. Files ending in
// _test.rego hold Rego tests and are skipped by LoadAll.
type Loader struct {
	fs  afero.Fs
	dir string
}

// NewLoader returns a loader over dir on fs.
func NewLoader(fs afero.Fs, dir string) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs, dir: dir}
}

// LoadAll parses every policy file under the directory, sorted by path. A
// missing directory yields no policies.
func (l *Loader) LoadAll() ([]*PolicyFile, error) {
	paths, err := l.ListFiles()
	if err != nil {
		return nil, err
	}
	var out []*PolicyFile
	for _, path := range paths {
		if isTestFile(path) {
			continue
		}
		p, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadFile reads and parses one Rego file.
func (l *Loader) LoadFile(path string) (*PolicyFile, error) {
	content, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	m, err := ast.ParseModule(l.moduleName(path), string(content))
	if err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if m == nil {
		return nil, fmt.Errorf("parse policy %s: file is empty", path)
	}
	return &PolicyFile{
		Path:    path,
		Name:    strings.TrimSuffix(filepath.Base(path), ".rego"),
		Package: strings.TrimPrefix(m.Package.Path.String(), "data."),
		Content: string(content),
		module:  m,
	}, nil
}

// ListFiles returns every .rego path under the directory, tests included.
func (l *Loader) ListFiles() ([]string, error) {
	ok, err := afero.DirExists(l.fs, l.dir)
	if err != nil {
		return nil, fmt.Errorf("stat policies directory: %w", err)
	}
	if !ok {
		return []string{}, nil
	}

	var paths []string
	walk := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && filepath.Ext(path) == ".rego" {
			paths = append(paths, path)
		}
		return nil
	}
	if err := afero.Walk(l.fs, l.dir, walk); err != nil {
		return nil, fmt.Errorf("walk policies directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// moduleName keys a file by its path relative to the policies directory so
// that compiler errors stay short.
func (l *Loader) moduleName(path string) string {
	if rel, err := filepath.Rel(l.dir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func isTestFile(path string) bool {
	return strings.HasSuffix(path, "_test.rego")
}
