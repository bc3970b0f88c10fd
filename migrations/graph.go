// Package migrations applies the database schema as a graph of named steps.
// Each step belongs to an app and may depend on steps of other apps; the
// runner applies them in dependency order and records what has been applied.
package migrations

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"
)

var (
	ErrDuplicate         = errors.New("migrations: duplicate migration")
	ErrUnknownDependency = errors.New("migrations: unknown dependency")
	ErrCycle             = errors.New("migrations: dependency cycle")
	ErrInvalidMigration  = errors.New("migrations: invalid migration")
	ErrUnknownMigration  = errors.New("migrations: unknown migration")
)

// Key identifies a migration as app.name, e.g. talks.0005_add_kv
type Key struct {
	App  string
	Name string
}

func (k Key) String() string {
	return k.App + "." + k.Name
}

func (k Key) less(o Key) bool {
	if k.App != o.App {
		return k.App < o.App
	}
	return k.Name < o.Name
}

// ParseKey splits "app.name" at the first dot
func ParseKey(s string) (Key, error) {
	app, name, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || app == "" || name == "" {
		return Key{}, fmt.Errorf("%w: key %q must be app.name", ErrInvalidMigration, s)
	}
	return Key{App: app, Name: name}, nil
}

// ApplyFunc changes the schema inside the transaction it is given
type ApplyFunc func(tx *gorm.DB) error

// Migration is a single schema step. Revert may be nil for irreversible
// steps.
type Migration struct {
	App          string
	Name         string
	Dependencies []Key
	Apply        ApplyFunc
	Revert       ApplyFunc
}

func (m Migration) Key() Key {
	return Key{App: m.App, Name: m.Name}
}

// Graph holds registered migrations. Dependencies are checked lazily by
// Order so steps can be registered in any order.
type Graph struct {
	mu    sync.RWMutex
	nodes map[Key]Migration
}

func NewGraph() *Graph {
	return &Graph{nodes: map[Key]Migration{}}
}

// Add registers migrations, rejecting duplicates and steps without an
// apply function. A rejected batch leaves the graph unchanged.
func (g *Graph) Add(migrations ...Migration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// The batch is registered whole or not at all
	batch := make(map[Key]struct{}, len(migrations))
	for _, m := range migrations {
		key := m.Key()
		if key.App == "" || key.Name == "" || m.Apply == nil {
			return fmt.Errorf("%w: %s", ErrInvalidMigration, key)
		}
		if _, exists := g.nodes[key]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicate, key)
		}
		if _, exists := batch[key]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicate, key)
		}
		batch[key] = struct{}{}
	}
	for _, m := range migrations {
		g.nodes[m.Key()] = m
	}
	return nil
}

// Get returns a registered migration
func (g *Graph) Get(key Key) (Migration, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.nodes[key]
	return m, ok
}

// Order returns every migration in a deterministic topological order:
// among steps whose dependencies are satisfied the lowest app.name goes
// first.
func (g *Graph) Order() ([]Migration, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indegree := make(map[Key]int, len(g.nodes))
	dependents := make(map[Key][]Key, len(g.nodes))
	for key, m := range g.nodes {
		if _, ok := indegree[key]; !ok {
			indegree[key] = 0
		}
		for _, dep := range m.Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, key, dep)
			}
			indegree[key]++
			dependents[dep] = append(dependents[dep], key)
		}
	}

	var ready []Key
	for key, n := range indegree {
		if n == 0 {
			ready = append(ready, key)
		}
	}

	ordered := make([]Migration, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].less(ready[j]) })
		key := ready[0]
		ready = ready[1:]
		ordered = append(ordered, g.nodes[key])

		for _, next := range dependents[key] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(ordered) != len(g.nodes) {
		var stuck []string
		for key, n := range indegree {
			if n > 0 {
				stuck = append(stuck, key.String())
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return ordered, nil
}

// Dependents returns every migration that depends on key directly or
// transitively, not including key itself.
func (g *Graph) Dependents(key Key) []Key {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[Key]bool{}
	queue := []Key{key}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for k, m := range g.nodes {
			if seen[k] {
				continue
			}
			for _, dep := range m.Dependencies {
				if dep == current {
					seen[k] = true
					queue = append(queue, k)
					break
				}
			}
		}
	}

	out := make([]Key, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
