package mib

import "github.com/geekxflood/gosnmpd/internal/oid"

// ProxyHandle is the contract a registered proxy must satisfy so that the
// tree walk (Lookup, LeftmostPath, Successor) can treat a proxy node as a
// leaf-owner of its subtree without knowing anything about the manager
// client transport underneath it. internal/proxy.Proxy implements this.
//
// Both methods are expressed relative to the proxy's own base OID: the
// remainder passed in, and the suffix returned, never include the base
// OID prefix. The tree walk is responsible for prefixing results with the
// proxy's position in the tree.
type ProxyHandle interface {
	// Lookup resolves remainder against the proxy's remote subtree and
	// reports the scalar found there, or ok=false if there is none
	// (no-such-object, upstream timeout, or transport error).
	Lookup(remainder oid.ID) (value any, ok bool)

	// Successor finds the smallest suffix strictly greater than
	// remainder with a scalar value in the proxy's remote subtree, or
	// ok=false if none exists (end-of-view, timeout, or transport
	// error). Successor(oid.Empty) is the proxy's leftmost scalar.
	Successor(remainder oid.ID) (suffix oid.ID, ok bool)
}
