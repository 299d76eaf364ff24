// internal/browser/jsbind/binder.go
package jsbind

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/domscript/internal/browser/dom"
)

// fallbackClass projects nodes whose native types have no configured class.
const fallbackClass = "HTMLUnknownElement"

// Binder maps DOM nodes to their script projections in one realm. Each
// projection lives in an arena; the node's script slot carries the realm id
// and arena index so repeated lookups skip the index map.
type Binder struct {
	realm *Realm

	mu    sync.Mutex
	arena []*Projection
	index map[dom.NodeID]uint32
}

func newBinder(r *Realm) *Binder {
	return &Binder{realm: r, index: make(map[dom.NodeID]uint32)}
}

func packSlot(realm, idx uint32) uint64 { return uint64(realm)<<32 | uint64(idx) }

func unpackSlot(slot uint64) (realm, idx uint32) {
	return uint32(slot >> 32), uint32(slot)
}

// ProjectionFor returns the projection of n, creating it on first use.
// Later calls return the same projection.
func (b *Binder) ProjectionFor(n *dom.Node) *Projection {
	if n == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if p := b.lookup(n); p != nil {
		return p
	}

	p := b.project(n)
	idx := uint32(len(b.arena))
	b.arena = append(b.arena, p)
	b.index[n.ID()] = idx
	// A node first bound by another realm keeps that realm's slot; this
	// realm finds it through the index.
	n.CompareAndSwapScriptSlot(0, packSlot(b.realm.id, idx))
	return p
}

// Len reports the number of projections created so far.
func (b *Binder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.arena)
}

func (b *Binder) lookup(n *dom.Node) *Projection {
	if slot := n.ScriptSlot(); slot != 0 {
		if realm, idx := unpackSlot(slot); realm == b.realm.id {
			return b.at(n, idx)
		}
	}
	if idx, ok := b.index[n.ID()]; ok {
		return b.at(n, idx)
	}
	return nil
}

func (b *Binder) at(n *dom.Node, idx uint32) *Projection {
	if int(idx) >= len(b.arena) {
		panic(&BindingError{NodeID: n.ID(), Reason: "script slot points outside the arena"})
	}
	p := b.arena[idx]
	if p.Node() != n {
		panic(&BindingError{NodeID: n.ID(), Reason: "arena entry belongs to another node"})
	}
	return p
}

// project walks the node's native type lineage to the first configured
// class. Without one the node gets the terminal fallback projection.
func (b *Binder) project(n *dom.Node) *Projection {
	r := b.realm
	for _, t := range n.Type().Lineage() {
		if class, ok := r.graph.ForDOMType(t.Name()); ok {
			return b.newProjection(n, class)
		}
	}
	if class, ok := r.graph.Lookup(fallbackClass); ok {
		return b.newProjection(n, class)
	}
	r.logger.Debug("No configured class for node, using a plain object.",
		zap.Uint64("node_id", uint64(n.ID())),
		zap.String("type", n.Type().Name()),
		zap.String("xpath", dom.XPathOf(n)))
	return r.register(r.vm.NewObject(), n, r.window)
}

func (b *Binder) newProjection(n *dom.Node, class *Prototype) *Projection {
	r := b.realm
	obj := r.vm.CreateObject(r.protos[class.Name()])
	p := r.register(obj, n, r.window)
	p.class = class
	return p
}
