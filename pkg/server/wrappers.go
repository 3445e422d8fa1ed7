package server

import (
	"sort"

	"endpointd/pkg/service"
)

type wrapperEntry struct {
	refs    int
	adapter *adapter
}

// wrapperCache maps an instance to its one shared dispatch adapter. It is
// not synchronized; every call happens under the Server's mutex.
type wrapperCache struct {
	entries    map[*service.Instance]*wrapperEntry
	newAdapter func(*service.Instance) *adapter
}

func newWrapperCache(newAdapter func(*service.Instance) *adapter) *wrapperCache {
	return &wrapperCache{
		entries:    make(map[*service.Instance]*wrapperEntry),
		newAdapter: newAdapter,
	}
}

// acquire returns the cached adapter for inst, creating it on first use,
// and takes one reference.
func (c *wrapperCache) acquire(inst *service.Instance) *adapter {
	e, ok := c.entries[inst]
	if !ok {
		e = &wrapperEntry{adapter: c.newAdapter(inst)}
		c.entries[inst] = e
	}
	e.refs++
	return e.adapter
}

// release drops one reference and evicts the entry at zero. It reports
// whether the entry was evicted.
func (c *wrapperCache) release(inst *service.Instance) bool {
	e, ok := c.entries[inst]
	if !ok {
		return false
	}
	e.refs--
	if e.refs > 0 {
		return false
	}
	delete(c.entries, inst)
	return true
}

func (c *wrapperCache) lookup(inst *service.Instance) (*adapter, bool) {
	e, ok := c.entries[inst]
	if !ok {
		return nil, false
	}
	return e.adapter, true
}

func (c *wrapperCache) refs(inst *service.Instance) int {
	if e, ok := c.entries[inst]; ok {
		return e.refs
	}
	return 0
}

func (c *wrapperCache) len() int {
	return len(c.entries)
}

func (c *wrapperCache) clear() {
	c.entries = make(map[*service.Instance]*wrapperEntry)
}

// AdapterInfo describes one cached adapter.
type AdapterInfo struct {
	Instance string `json:"instance"`
	Refs     int    `json:"refs"`
}

func (c *wrapperCache) snapshot() []AdapterInfo {
	out := make([]AdapterInfo, 0, len(c.entries))
	for inst, e := range c.entries {
		out = append(out, AdapterInfo{Instance: inst.String(), Refs: e.refs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}
