// Package transpile rewrites stylesheets so @container rules become plain
// rules gated by a synthetic attribute selector, registering one descriptor
// per rule for the evaluation engine to key on.
package transpile

import (
	"slices"
	"strconv"

	"github.com/maruel/natural"

	"github.com/devknoll/container-query-polyfill/query"
)

// Descriptor is the compiled, immutable form of one @container rule. Parent
// links the lexically enclosing rule: a nested condition only applies where
// every ancestor descriptor's condition holds, regardless of DOM ancestry.
type Descriptor struct {
	UID       string
	Names     []string // required container names, empty matches any
	Condition *query.Node
	Selector  string // comma-joined union of scoped rule prefixes
	Parent    *Descriptor
}

// Registry issues descriptor UIDs and indexes every live descriptor. UIDs
// are monotonic for the registry's lifetime; disposing a stylesheet removes
// exactly its own descriptors and never reuses their UIDs.
type Registry struct {
	next  int
	byUID map[string]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byUID: map[string]*Descriptor{}}
}

func (r *Registry) register(names []string, cond *query.Node, parent *Descriptor) *Descriptor {
	d := &Descriptor{
		UID:       "c" + strconv.Itoa(r.next),
		Names:     names,
		Condition: cond,
		Parent:    parent,
	}
	r.next++
	r.byUID[d.UID] = d
	return d
}

// Get returns the descriptor registered under uid.
func (r *Registry) Get(uid string) (*Descriptor, bool) {
	d, ok := r.byUID[uid]
	return d, ok
}

// All returns the live descriptors in natural UID order, so "c2" sorts
// before "c10".
func (r *Registry) All() []*Descriptor {
	uids := make([]string, 0, len(r.byUID))
	for uid := range r.byUID {
		uids = append(uids, uid)
	}
	slices.SortFunc(uids, func(a, b string) int {
		if a == b {
			return 0
		}
		if natural.Less(a, b) {
			return -1
		}
		return 1
	})
	out := make([]*Descriptor, len(uids))
	for i, uid := range uids {
		out[i] = r.byUID[uid]
	}
	return out
}

// Remove drops the given descriptors from the registry.
func (r *Registry) Remove(ds []*Descriptor) {
	for _, d := range ds {
		delete(r.byUID, d.UID)
	}
}
