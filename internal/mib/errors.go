package mib

import "errors"

// Registration and traversal errors. These mirror the error table in the
// core's error handling design: registration failures fail the call that
// produced them; TraversesPlugin is returned only by LookupStrict.
var (
	// ErrOccupied is returned when a registration target already maps to
	// a subtree, scalar, plugin, or proxy.
	ErrOccupied = errors.New("mib: oid already occupied")

	// ErrEncroachesOnPlugin is returned when a registration target falls
	// within another plugin's subtree. The proxy equivalent is
	// ErrCannotNestInProxy; a target that would contain an existing plugin
	// already maps to a subtree and fails with ErrOccupied.
	ErrEncroachesOnPlugin = errors.New("mib: oid encroaches on an existing plugin")

	// ErrTraversesPlugin is raised internally by a strict lookup (the
	// forbid-plugin-traversal mode) when the walk would have to descend
	// through a plugin to continue. Registration reports
	// ErrEncroachesOnPlugin directly instead of surfacing this.
	ErrTraversesPlugin = errors.New("mib: lookup traverses a plugin")

	// ErrCannotNestInProxy is returned when a caller attempts to add a
	// child beneath a proxy node.
	ErrCannotNestInProxy = errors.New("mib: cannot nest a child inside a proxy subtree")

	// ErrBadPluginShape is returned by shape coercion when a mapping
	// returned by a producer has a non-integer or negative key.
	ErrBadPluginShape = errors.New("mib: plugin returned a non-integer mapping key")

	// ErrBadOid is returned by the agent façade when a registration base
	// OID is empty.
	ErrBadOid = errors.New("mib: malformed base oid")
)
