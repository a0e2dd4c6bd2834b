// Package mib implements the sparse object-identifier tree that backs the
// agent: plain subtrees, scalar leaves, deferred plugins, and proxy
// delegations, plus the two traversal algorithms SNMP needs — exact
// lookup and lexicographic successor.
package mib

import (
	"sort"
	"sync"

	"github.com/geekxflood/gosnmpd/internal/oid"
)

// Kind tags which variant a Child holds.
type Kind int

const (
	// KindSubtree marks a child that is itself a plain Node.
	KindSubtree Kind = iota
	// KindScalar marks a child holding a typed leaf value.
	KindScalar
	// KindPlugin marks a child backed by a deferred producer.
	KindPlugin
	// KindProxy marks a child delegated to an upstream agent.
	KindProxy
)

// Child is the tagged union of everything a Node may hold at a sub-id:
// another subtree, a scalar leaf, a plugin, or a proxy. Exactly one field
// is meaningful, selected by Kind.
type Child struct {
	Kind    Kind
	Subtree *Node
	Scalar  any
	Plugin  *Plugin
	Proxy   ProxyHandle
}

// SubtreeChild wraps a Node as a Child.
func SubtreeChild(n *Node) Child { return Child{Kind: KindSubtree, Subtree: n} }

// ScalarChild wraps a raw scalar value as a Child.
func ScalarChild(v any) Child { return Child{Kind: KindScalar, Scalar: v} }

// PluginChild wraps a Plugin wrapper as a Child.
func PluginChild(p *Plugin) Child { return Child{Kind: KindPlugin, Plugin: p} }

// ProxyChild wraps a ProxyHandle as a Child.
func ProxyChild(p ProxyHandle) Child { return Child{Kind: KindProxy, Proxy: p} }

// Node is a sparse mapping from non-negative integer sub-id to Child. The
// zero value is an empty subtree, ready to use. Node is safe for
// concurrent lookups; mutation (registration) is expected to be
// serialised by the caller, per the core's concurrency model, but the
// embedded mutex keeps a stray concurrent registration from corrupting
// the map.
type Node struct {
	mu       sync.RWMutex
	children map[uint32]Child
}

// ResultKind classifies what Lookup found.
type ResultKind int

const (
	// ResultAbsent means no value and no node exist at the requested OID.
	ResultAbsent ResultKind = iota
	// ResultScalar means a scalar leaf was found.
	ResultScalar
	// ResultSubtree means the OID names an interior node, not a scalar.
	ResultSubtree
)

// LookupResult is the outcome of Node.Lookup.
type LookupResult struct {
	Kind    ResultKind
	Scalar  any
	Subtree *Node
}

func (n *Node) getChild(sub uint32) (Child, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.children[sub]
	return c, ok
}

// SetChild installs c at sub. It fails with ErrOccupied if a child
// already exists there.
func (n *Node) SetChild(sub uint32, c Child) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		n.children = make(map[uint32]Child)
	}
	if _, exists := n.children[sub]; exists {
		return ErrOccupied
	}
	n.children[sub] = c
	return nil
}

func (n *Node) setChildForce(sub uint32, c Child) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		n.children = make(map[uint32]Child)
	}
	n.children[sub] = c
}

// KeysAscending returns the present sub-ids in ascending numeric order.
func (n *Node) KeysAscending() []uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	keys := make([]uint32, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Place walks target's prefix from n, creating empty subtrees as needed,
// and installs leaf at target's final sub-id. It enforces the
// registration rule: a new plugin/proxy subtree may neither be nested
// inside, nor contain, an existing one.
func (n *Node) Place(target oid.ID, leaf Child) error {
	if target.Len() == 0 {
		return ErrOccupied
	}
	cur := n
	for i := 0; i < target.Len()-1; i++ {
		s := target.At(i)
		c, ok := cur.getChild(s)
		if !ok {
			child := &Node{}
			cur.setChildForce(s, SubtreeChild(child))
			cur = child
			continue
		}
		switch c.Kind {
		case KindSubtree:
			cur = c.Subtree
		case KindPlugin:
			return ErrEncroachesOnPlugin
		case KindProxy:
			return ErrCannotNestInProxy
		default: // KindScalar
			return ErrOccupied
		}
	}
	last := target.At(target.Len() - 1)
	return cur.SetChild(last, leaf)
}

// lookupAt resolves the components of id from index idx onward, starting
// at n. idx components have already been consumed. community is the
// requesting community name, threaded through so a plugin producer can
// use it (scenario: a plugin whose value depends on the caller's
// community).
func (n *Node) lookupAt(id oid.ID, idx int, community string, forbidPlugin bool) (LookupResult, error) {
	if idx == id.Len() {
		return LookupResult{Kind: ResultSubtree, Subtree: n}, nil
	}
	s := id.At(idx)
	c, ok := n.getChild(s)
	if !ok {
		return LookupResult{Kind: ResultAbsent}, nil
	}
	return lookupChild(c, id, idx+1, community, forbidPlugin)
}

// lookupChild continues a lookup through a single Child, having already
// consumed idx components of id (the child's own sub-id included).
func lookupChild(c Child, id oid.ID, idx int, community string, forbidPlugin bool) (LookupResult, error) {
	switch c.Kind {
	case KindSubtree:
		return c.Subtree.lookupAt(id, idx, community, forbidPlugin)
	case KindScalar:
		if idx != id.Len() {
			return LookupResult{Kind: ResultAbsent}, nil
		}
		return LookupResult{Kind: ResultScalar, Scalar: c.Scalar}, nil
	case KindPlugin:
		if forbidPlugin {
			return LookupResult{}, ErrTraversesPlugin
		}
		view, ok := c.Plugin.Materialise(community)
		if !ok {
			return LookupResult{Kind: ResultAbsent}, nil
		}
		return lookupChild(view, id, idx, community, forbidPlugin)
	case KindProxy:
		remainder := id.Slice(idx, id.Len())
		val, ok := c.Proxy.Lookup(remainder)
		if !ok {
			return LookupResult{Kind: ResultAbsent}, nil
		}
		return LookupResult{Kind: ResultScalar, Scalar: val}, nil
	}
	return LookupResult{Kind: ResultAbsent}, nil
}

// Lookup resolves id against the tree rooted at n for the given
// requesting community. It never mutates id.
func (n *Node) Lookup(id oid.ID, community string) (LookupResult, error) {
	return n.lookupAt(id, 0, community, false)
}

// LookupStrict is Lookup with the forbid-plugin-traversal mode flag from
// §4.2: it fails with ErrTraversesPlugin instead of materialising a
// plugin along the way. Used by callers that need to know the walk never
// invoked a producer.
func (n *Node) LookupStrict(id oid.ID, community string) (LookupResult, error) {
	return n.lookupAt(id, 0, community, true)
}

// leftmostOfChild is LeftmostPath generalised to a single Child: the
// relative suffix (not including the child's own sub-id) to its smallest
// reachable scalar, skipping empty branches entirely.
func leftmostOfChild(c Child, community string) (oid.ID, bool) {
	switch c.Kind {
	case KindScalar:
		return oid.Empty, true
	case KindSubtree:
		return c.Subtree.LeftmostPath(community)
	case KindPlugin:
		view, ok := c.Plugin.Materialise(community)
		if !ok {
			return oid.Empty, false
		}
		return leftmostOfChild(view, community)
	case KindProxy:
		return c.Proxy.Successor(oid.Empty)
	}
	return oid.Empty, false
}

// leftmostAfter scans n's keys in ascending order, optionally restricted
// to those strictly greater than after, and returns the suffix to the
// first one that reaches a scalar. Empty branches (plugins that yielded
// nothing, subtrees with only empty descendants) are skipped in favour of
// the next key.
func (n *Node) leftmostAfter(after uint32, hasAfter bool, community string) (oid.ID, bool) {
	for _, k := range n.KeysAscending() {
		if hasAfter && k <= after {
			continue
		}
		c, ok := n.getChild(k)
		if !ok {
			continue
		}
		if rest, found := leftmostOfChild(c, community); found {
			return oid.FromComponents([]uint32{k}).Concat(rest), true
		}
	}
	return oid.Empty, false
}

// LeftmostPath returns the sub-id sequence reached by repeatedly
// selecting the smallest present key until a scalar is reached, skipping
// branches that turn out to be empty. It returns ok=false for an empty
// subtree (or one with only empty descendants).
func (n *Node) LeftmostPath(community string) (oid.ID, bool) {
	return n.leftmostAfter(0, false, community)
}

// successorOfChild is Successor generalised to a single Child: the
// relative suffix (beyond the child's own sub-id) to the smallest scalar
// strictly greater than q[idx:], given that q[:idx] already selected this
// child.
func successorOfChild(c Child, q oid.ID, idx int, community string) (oid.ID, bool) {
	switch c.Kind {
	case KindSubtree:
		return c.Subtree.successorAt(q, idx, community)
	case KindPlugin:
		view, ok := c.Plugin.Materialise(community)
		if !ok {
			return oid.Empty, false
		}
		return successorOfChild(view, q, idx, community)
	case KindProxy:
		return c.Proxy.Successor(q.Slice(idx, q.Len()))
	default: // KindScalar: no deeper continuation past a leaf
		return oid.Empty, false
	}
}

// successorAt finds, relative to n, the smallest suffix strictly greater
// than q[idx:] that reaches a scalar. idx components of q have already
// placed the walk at n.
func (n *Node) successorAt(q oid.ID, idx int, community string) (oid.ID, bool) {
	if idx == q.Len() {
		return n.LeftmostPath(community)
	}
	s := q.At(idx)
	if c, ok := n.getChild(s); ok {
		if rest, found := successorOfChild(c, q, idx+1, community); found {
			return oid.FromComponents([]uint32{s}).Concat(rest), true
		}
	}
	return n.leftmostAfter(s, true, community)
}

// Successor returns the lexicographically smallest OID strictly greater
// than q that resolves to a scalar anywhere in the tree rooted at n, or
// ok=false if none exists (EndOfMibView).
func (n *Node) Successor(q oid.ID, community string) (oid.ID, bool) {
	return n.successorAt(q, 0, community)
}
