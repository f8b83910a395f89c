package framework

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/terra-clan/maturity-engine/internal/models"
)

// DefaultID is the identifier of the embedded default framework
const DefaultID = "devops-maturity"

// ErrDuplicateFramework is returned when a file reuses the ID of a loaded framework
var ErrDuplicateFramework = errors.New("framework id is already loaded")

//go:embed builtin/devops-maturity.yaml
var defaultDocument []byte

//go:embed builtin/template.json
var templateDocument []byte

var defaultFramework = sync.OnceValue(func() *models.Framework {
	fw, result := Parse(defaultDocument)
	if !result.Valid {
		panic(fmt.Sprintf("embedded default framework is invalid: %s", strings.Join(result.Errors, "; ")))
	}
	fw.Builtin = true
	return fw
})

// Default returns the built-in DevOps maturity framework.
// The returned value is shared and must not be modified.
func Default() *models.Framework {
	return defaultFramework()
}

// Template returns the starter document for custom frameworks
func Template() []byte {
	out := make([]byte, len(templateDocument))
	copy(out, templateDocument)
	return out
}

// Loader manages loading and caching of built-in frameworks
type Loader struct {
	mu         sync.RWMutex
	frameworks map[string]*models.Framework
}

// NewLoader creates a loader holding the default framework
func NewLoader() *Loader {
	l := &Loader{
		frameworks: make(map[string]*models.Framework),
	}
	l.Add(Default())
	return l
}

// LoadFromDir loads every YAML and JSON framework from a directory and its direct subdirectories
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading frameworks from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to stat frameworks dir: %w", err)
	}

	patterns := []string{"*.yaml", "*.yml", "*.json"}
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)

		subMatches, err := filepath.Glob(filepath.Join(dir, "*", pattern))
		if err != nil {
			continue
		}
		files = append(files, subMatches...)
	}
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load framework", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("frameworks loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single framework file.
// A file may not replace the default or an earlier file with the same ID.
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	fw, result := Parse(data)
	if !result.Valid {
		return fmt.Errorf("invalid framework: %s", strings.Join(result.Errors, "; "))
	}
	for _, w := range result.Warnings {
		slog.Warn("framework warning", "file", path, "warning", w)
	}

	if fw.ID == "" {
		base := filepath.Base(path)
		fw.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	fw.Builtin = true

	if !l.addNew(fw) {
		return fmt.Errorf("%w: %s", ErrDuplicateFramework, fw.ID)
	}
	slog.Info("framework loaded", "id", fw.ID, "name", fw.Name, "domains", len(fw.Domains))
	return nil
}

// Get retrieves a framework by ID
func (l *Loader) Get(id string) *models.Framework {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frameworks[id]
}

// List returns all loaded frameworks ordered by ID
func (l *Loader) List() []*models.Framework {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Framework, 0, len(l.frameworks))
	for _, fw := range l.frameworks {
		result = append(result, fw)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Add programmatically adds a framework
func (l *Loader) Add(fw *models.Framework) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frameworks[fw.ID] = fw
}

func (l *Loader) addNew(fw *models.Framework) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.frameworks[fw.ID]; exists {
		return false
	}
	l.frameworks[fw.ID] = fw
	return true
}

// Remove removes a framework by ID
func (l *Loader) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.frameworks, id)
}
