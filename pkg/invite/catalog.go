// Package invite spawns externally-configured CLI agents onto threads.
// The catalog of invocable agents is operator-owned JSON; the executor
// interpolates a small placeholder set and detaches the subprocess.
package invite

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"agentbus/pkg/logger"
	"agentbus/pkg/model"
)

// Catalog holds the available-agent entries loaded from disk.
type Catalog struct {
	path string
	log  *logger.Logger

	mu      sync.RWMutex
	entries map[string]*model.CatalogEntry
}

// NewCatalog creates an empty catalog bound to a file path.
func NewCatalog(path string, log *logger.Logger) *Catalog {
	return &Catalog{
		path:    path,
		log:     log,
		entries: make(map[string]*model.CatalogEntry),
	}
}

// catalogEntryJSON mirrors the on-disk entry shape. Enabled defaults to
// true when the key is absent.
type catalogEntryJSON struct {
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	Description    string `json:"description"`
	InvokeCommand  string `json:"invoke_command"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Enabled        *bool  `json:"enabled"`
}

func (e *catalogEntryJSON) toModel(name string) *model.CatalogEntry {
	if e.Name != "" {
		name = e.Name
	}
	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}
	return &model.CatalogEntry{
		Name:           name,
		DisplayName:    e.DisplayName,
		Description:    e.Description,
		InvokeCommand:  e.InvokeCommand,
		TimeoutSeconds: e.TimeoutSeconds,
		Enabled:        enabled,
	}
}

// Load reads the catalog file. Two layouts are accepted: an object
// keyed by agent name, or {"agents": [...]} with names inline. A
// missing file yields an empty catalog.
func (c *Catalog) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.mu.Lock()
			c.entries = make(map[string]*model.CatalogEntry)
			c.mu.Unlock()
			c.log.Info("Agent catalog not found, starting empty", zap.String("path", c.path))
			return nil
		}
		return model.Internal(err, "reading agent catalog")
	}

	entries, err := parseCatalog(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	c.log.Info("Agent catalog loaded",
		zap.String("path", c.path),
		zap.Int("entries", len(entries)))
	return nil
}

func parseCatalog(data []byte) (map[string]*model.CatalogEntry, error) {
	// Try the list layout first; it is unambiguous.
	var list struct {
		Agents []catalogEntryJSON `json:"agents"`
	}
	if err := json.Unmarshal(data, &list); err == nil && list.Agents != nil {
		out := make(map[string]*model.CatalogEntry, len(list.Agents))
		for i := range list.Agents {
			e := list.Agents[i].toModel("")
			if e.Name == "" || e.InvokeCommand == "" {
				continue
			}
			out[e.Name] = e
		}
		return out, nil
	}

	var dict map[string]catalogEntryJSON
	if err := json.Unmarshal(data, &dict); err != nil {
		return nil, model.InvalidInput("agent catalog is not valid JSON: %v", err)
	}
	out := make(map[string]*model.CatalogEntry, len(dict))
	for name, raw := range dict {
		e := raw.toModel(name)
		if e.InvokeCommand == "" {
			continue
		}
		out[e.Name] = e
	}
	return out, nil
}

// Get returns the entry for name, or nil.
func (c *Catalog) Get(name string) *model.CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[strings.TrimSpace(name)]
}

// List returns all entries sorted by name.
func (c *Catalog) List() []*model.CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.CatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Path returns the backing file path.
func (c *Catalog) Path() string {
	return c.path
}
