package module

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/josephgoksu/guidedmodules/internal/condition"
	"github.com/josephgoksu/guidedmodules/types"
)

// Parse decodes a YAML (or JSON) module definition. The result is not
// prepared; the fingerprint is the sha256 of data.
func Parse(data []byte) (*Module, error) {
	var m Module
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(false)
	if err := dec.Decode(&m); err != nil {
		return nil, types.WrapConfigurationError(err, "parse module definition")
	}
	sum := sha256.Sum256(data)
	m.Fingerprint = hex.EncodeToString(sum[:])
	return &m, nil
}

// Catalog holds every loaded module version, keyed by (key, version).
// Reads may run concurrently with Replace.
type Catalog struct {
	mu       sync.RWMutex
	versions map[string][]*Module
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{versions: map[string][]*Module{}}
}

// Replace prepares mods and swaps them in as the catalog's contents. On any
// error the catalog is left unchanged.
//
// A (key, version) already in the catalog may only be reloaded with identical
// content; published versions are immutable.
func (c *Catalog) Replace(ctx context.Context, mods []*Module) error {
	next := map[string][]*Module{}
	for _, m := range mods {
		if err := m.Prepare(ctx); err != nil {
			return err
		}
		for _, other := range next[m.Key] {
			if other.Version == m.Version {
				return types.NewConfigurationError("module %s is defined twice (%s, %s)", m.Ref(), other.Source, m.Source)
			}
		}
		next[m.Key] = append(next[m.Key], m)
	}

	c.mu.RLock()
	for key, list := range next {
		for _, m := range list {
			old := c.find(key, m.Version)
			if old != nil && old.Fingerprint != "" && m.Fingerprint != "" && old.Fingerprint != m.Fingerprint {
				c.mu.RUnlock()
				return types.NewConfigurationError("module %s changed without a version bump", m.Ref())
			}
		}
	}
	c.mu.RUnlock()

	for _, list := range next {
		sort.Slice(list, func(i, j int) bool { return list[i].Version < list[j].Version })
	}
	if err := crossCheck(next); err != nil {
		return err
	}
	for _, list := range next {
		latest := list[len(list)-1].Version
		for _, m := range list[:len(list)-1] {
			v := latest
			m.SupersededBy = &v
		}
		list[len(list)-1].SupersededBy = nil
	}

	c.mu.Lock()
	c.versions = next
	c.mu.Unlock()
	return nil
}

// Get returns a specific module version.
func (c *Catalog) Get(key string, version int) (*Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m := c.find(key, version); m != nil {
		return m, nil
	}
	return nil, types.NewNotFoundError("module %s@%d is not loaded", key, version)
}

// Latest returns the newest version of a module.
func (c *Catalog) Latest(key string) (*Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := c.versions[key]
	if len(list) == 0 {
		return nil, types.NewNotFoundError("module %q is not loaded", key)
	}
	return list[len(list)-1], nil
}

// Modules returns the latest version of every module, sorted by key.
func (c *Catalog) Modules() []*Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Module, 0, len(c.versions))
	for _, list := range c.versions {
		out = append(out, list[len(list)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Versions returns every loaded version of a module, oldest first.
func (c *Catalog) Versions(key string) []*Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Module, len(c.versions[key]))
	copy(out, c.versions[key])
	return out
}

func (c *Catalog) find(key string, version int) *Module {
	for _, m := range c.versions[key] {
		if m.Version == version {
			return m
		}
	}
	return nil
}

// crossCheck validates references between modules: answer-type modules must
// be loaded, and condition paths into a child module must name its questions.
func crossCheck(mods map[string][]*Module) error {
	latest := func(key string) *Module {
		list := mods[key]
		if len(list) == 0 {
			return nil
		}
		return list[len(list)-1]
	}

	for _, list := range mods {
		for _, m := range list {
			for _, q := range m.Questions {
				if target, ok := q.AnswerModule(); ok && latest(target) == nil {
					return m.configErr(q, fmt.Sprintf("answer-type module %q is not loaded", target))
				}
				if err := checkChildPaths(m, q, latest); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkChildPaths(m *Module, q *Question, latest func(string) *Module) error {
	check := func(src string, refs []condition.Ref) error {
		for _, r := range refs {
			if len(r.Path) == 0 {
				continue
			}
			dep, _ := m.Question(r.Key)
			if dep == nil || dep.Type != TypeModule {
				continue
			}
			target, _ := dep.AnswerModule()
			child := latest(target)
			if child == nil {
				continue
			}
			if _, ok := child.Question(r.Path[0]); !ok {
				return m.configErr(q, fmt.Sprintf("condition %q references undefined question %q of module %q", src, r.Path[0], target))
			}
		}
		return nil
	}

	if q.askIf != nil {
		if err := check(q.askIf.String(), q.askIf.Refs()); err != nil {
			return err
		}
	}
	for _, rule := range q.Impute {
		if rule.compiled == nil {
			continue
		}
		if err := check(rule.compiled.String(), rule.compiled.Refs()); err != nil {
			return err
		}
	}
	return nil
}
