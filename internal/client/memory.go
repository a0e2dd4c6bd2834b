package client

import (
	"context"

	"github.com/geekxflood/gosnmpd/internal/mib"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

// MemoryClient is an in-memory substitute for UDPClient that answers
// directly from a local MIB tree instead of a real upstream agent. It
// exists to let a Proxy be exercised in tests without opening a socket.
type MemoryClient struct {
	Root      *mib.Node
	Community string
}

// NewMemoryClient returns a MemoryClient backed by root, answering every
// call as if it came from the given community.
func NewMemoryClient(root *mib.Node, community string) *MemoryClient {
	return &MemoryClient{Root: root, Community: community}
}

// Get implements Client by looking up id directly in Root.
func (m *MemoryClient) Get(_ context.Context, id oid.ID) (mib.Value, bool, error) {
	res, err := m.Root.Lookup(id, m.Community)
	if err != nil {
		return nil, false, err
	}
	if res.Kind != mib.ResultScalar {
		return nil, false, nil
	}
	return mib.Typed(res.Scalar), true, nil
}

// GetNext implements Client by walking the successor of id directly in
// Root.
func (m *MemoryClient) GetNext(_ context.Context, id oid.ID) (oid.ID, mib.Value, bool, error) {
	next, ok := m.Root.Successor(id, m.Community)
	if !ok {
		return oid.Empty, nil, false, nil
	}
	res, err := m.Root.Lookup(next, m.Community)
	if err != nil {
		return oid.Empty, nil, false, err
	}
	return next, mib.TypedFromLookup(res, nil), true, nil
}
