package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/josephgoksu/guidedmodules/internal/module"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"
)

// FileSource loads module definitions from *.yaml, *.yml and *.json files
// under a directory. Subdirectories are scanned recursively.
type FileSource struct {
	fs      afero.Fs
	baseDir string
}

// NewFileSource creates a source over the given filesystem. Use
// afero.NewOsFs() for real files or afero.NewMemMapFs() for tests.
func NewFileSource(fs afero.Fs, baseDir string) *FileSource {
	return &FileSource{fs: fs, baseDir: baseDir}
}

// NewOsFileSource creates a FileSource on the operating system filesystem.
func NewOsFileSource(baseDir string) *FileSource {
	return NewFileSource(afero.NewOsFs(), baseDir)
}

// Describe returns the directory being read.
func (s *FileSource) Describe() string { return s.baseDir }

// BaseDir returns the directory being read.
func (s *FileSource) BaseDir() string { return s.baseDir }

// Load parses every definition file, sorted by path. A missing directory
// yields no modules.
func (s *FileSource) Load(ctx context.Context) ([]*module.Module, error) {
	exists, err := afero.DirExists(s.fs, s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("check modules directory: %w", err)
	}
	if !exists {
		return []*module.Module{}, nil
	}

	var paths []string
	err = afero.Walk(s.fs, s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			if path != s.baseDir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if formatOf(path) != "" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk modules directory: %w", err)
	}
	sort.Strings(paths)

	mods := make([]*module.Module, 0, len(paths))
	for _, path := range paths {
		m, err := s.LoadFile(path)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// LoadFile parses a single definition file.
func (s *FileSource) LoadFile(path string) (*module.Module, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open module definition: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read module definition: %w", err)
	}

	m, err := module.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("module definition %s: %w", path, err)
	}
	m.Source = path
	return m, nil
}

// formatOf returns the definition format implied by the file extension, or
// "" for files that are not definitions. JSON is parsed as YAML.
func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".json":
		return formatJSON
	}
	return ""
}
