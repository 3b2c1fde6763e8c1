package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// Catalog maps artifact names to file paths and holds in-memory artifacts
// passed between steps of one run.
type Catalog struct {
	mu     sync.RWMutex
	paths  map[string]string
	values map[string]interface{}
}

// NewCatalog creates a catalog over the given name → path entries.
func NewCatalog(paths map[string]string) *Catalog {
	c := &Catalog{
		paths:  make(map[string]string, len(paths)),
		values: make(map[string]interface{}),
	}
	for k, v := range paths {
		c.paths[k] = v
	}
	return c
}

// Register adds or replaces a file entry.
func (c *Catalog) Register(name, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[name] = path
}

// Path returns the file path of name.
func (c *Catalog) Path(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.paths[name]
	if !ok {
		return "", scigoErrors.Wrapf(scigoErrors.ErrNotFound, "catalog entry %q", name)
	}
	return p, nil
}

// OutputPath returns the file path of name after creating its parent
// directory.
func (c *Catalog) OutputPath(name string) (string, error) {
	p, err := c.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", scigoErrors.Wrapf(err, "create directory for %s", name)
	}
	return p, nil
}

// Put stores an in-memory artifact.
func (c *Catalog) Put(name string, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = v
}

// Get returns an in-memory artifact.
func (c *Catalog) Get(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name]
	return v, ok
}

// Exists reports whether name is held in memory or its file exists.
func (c *Catalog) Exists(name string) bool {
	if _, ok := c.Get(name); ok {
		return true
	}
	p, err := c.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Names lists every file entry.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.paths))
	for k := range c.paths {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Value returns the in-memory artifact name as a T.
func Value[T any](c *Catalog, name string) (T, bool) {
	var zero T
	v, ok := c.Get(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
