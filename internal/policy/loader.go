package policy

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

//go:embed default.rego
var defaultPolicies embed.FS

// PolicyFile is one loaded Rego module.
type PolicyFile struct {
	Path    string `json:"path"`
	Name    string `json:"name"` // file name without .rego
	Content string `json:"content"`
}

// DefaultPolicy returns the built-in acceptance policy.
func DefaultPolicy() *PolicyFile {
	b, err := defaultPolicies.ReadFile("default.rego")
	if err != nil {
		panic(fmt.Sprintf("embedded policy missing: %v", err))
	}
	return &PolicyFile{Path: "builtin/default.rego", Name: "default", Content: string(b)}
}

// Loader reads .rego files from a directory. The afero.Fs lets tests use
// an in-memory filesystem.
type Loader struct {
	fs      afero.Fs
	baseDir string
}

// NewLoader creates a loader over fs rooted at baseDir.
func NewLoader(fs afero.Fs, baseDir string) *Loader {
	return &Loader{fs: fs, baseDir: baseDir}
}

// NewOsLoader creates a loader over the real filesystem.
func NewOsLoader(baseDir string) *Loader {
	return NewLoader(afero.NewOsFs(), baseDir)
}

// Dir returns the directory the loader reads.
func (l *Loader) Dir() string { return l.baseDir }

// LoadAll loads every .rego file under the directory, recursively, sorted by
// path. A missing directory yields no policies.
func (l *Loader) LoadAll() ([]*PolicyFile, error) {
	if l.baseDir == "" {
		return nil, nil
	}
	exists, err := afero.DirExists(l.fs, l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("check policies directory: %w", err)
	}
	if !exists {
		return nil, nil
	}

	var policies []*PolicyFile
	err = afero.Walk(l.fs, l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isPolicyFile(info.Name()) {
			return nil
		}
		p, err := l.loadFile(path)
		if err != nil {
			return fmt.Errorf("load policy %s: %w", path, err)
		}
		policies = append(policies, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policies directory: %w", err)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Path < policies[j].Path })
	return policies, nil
}

func (l *Loader) loadFile(path string) (*PolicyFile, error) {
	file, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &PolicyFile{
		Path:    path,
		Name:    strings.TrimSuffix(filepath.Base(path), ".rego"),
		Content: string(content),
	}, nil
}

// isPolicyFile skips tests and editor leftovers.
func isPolicyFile(name string) bool {
	return strings.HasSuffix(name, ".rego") &&
		!strings.HasSuffix(name, "_test.rego") &&
		!strings.HasPrefix(name, ".")
}
