package modelstore

import (
	"sync"
	"time"

	"github.com/ezoic/intelicar/pkg/log"
	"github.com/ezoic/intelicar/tabular"
)

// Cache loads predictors from a models root on first use and keeps them.
// It is safe for concurrent use.
type Cache struct {
	root string

	mu      sync.Mutex
	entries map[string]*tabular.Predictor
	logger  log.Logger
}

// NewCache creates an empty cache over root.
func NewCache(root string) *Cache {
	return &Cache{
		root:    root,
		entries: make(map[string]*tabular.Predictor),
		logger:  log.GetLoggerWithName("modelstore"),
	}
}

// Root returns the models root.
func (c *Cache) Root() string { return c.root }

// Get returns the predictor of model directory name, loading it if needed.
// An empty name selects the latest directory.
func (c *Cache) Get(name string) (*tabular.Predictor, error) {
	dir, err := Resolve(c.root, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.entries[dir]; ok {
		return p, nil
	}

	start := time.Now()
	p, err := Load(dir)
	if err != nil {
		return nil, err
	}
	c.entries[dir] = p
	c.logger.Info("Loaded predictor",
		log.OperationKey, log.OperationLoad,
		log.PathKey, dir,
		"best_model", p.BestModel,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return p, nil
}

// Len returns the number of loaded predictors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
