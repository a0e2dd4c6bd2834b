// Package proxy adapts a manager-side client.Client into the
// mib.ProxyHandle contract the tree engine delegates to, translating
// between absolute upstream OIDs and the base-relative suffixes the tree
// engine works in.
package proxy

import (
	"context"
	"time"

	"github.com/geekxflood/common/logging"
	"github.com/geekxflood/gosnmpd/internal/client"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

// Proxy delegates Lookup and Successor calls for everything under Base
// to an upstream agent reachable through Client.
type Proxy struct {
	Base    oid.ID
	Client  client.Client
	Logger  logging.Logger
	Timeout time.Duration
}

// New constructs a Proxy rooted at base, delegating through c. logger may
// be nil, in which case upstream failures are swallowed silently rather
// than logged.
func New(base oid.ID, c client.Client, logger logging.Logger) *Proxy {
	return &Proxy{Base: base, Client: c, Logger: logger, Timeout: 2 * time.Second}
}

func (p *Proxy) logWarn(msg string, kv ...any) {
	if p.Logger == nil {
		return
	}
	p.Logger.Warn(msg, kv...)
}

func (p *Proxy) context() (context.Context, context.CancelFunc) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Lookup implements mib.ProxyHandle. remainder is relative to Base; the
// absolute OID sent upstream is Base concatenated with remainder.
func (p *Proxy) Lookup(remainder oid.ID) (any, bool) {
	ctx, cancel := p.context()
	defer cancel()

	v, ok, err := p.Client.Get(ctx, p.Base.Concat(remainder))
	if err != nil {
		p.logWarn("proxy lookup failed", "base", p.Base.String(), "remainder", remainder.String(), "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return v, true
}

// Successor implements mib.ProxyHandle. The upstream's absolute successor
// OID is stripped of the Base prefix before being returned, so it
// composes with the tree engine's relative-suffix convention; a
// successor the upstream reports outside Base's subtree is treated as
// EndOfMibView, since the proxy cannot represent a leaf it does not own.
func (p *Proxy) Successor(remainder oid.ID) (oid.ID, bool) {
	ctx, cancel := p.context()
	defer cancel()

	absolute := p.Base.Concat(remainder)
	next, _, ok, err := p.Client.GetNext(ctx, absolute)
	if err != nil {
		p.logWarn("proxy successor failed", "base", p.Base.String(), "remainder", remainder.String(), "error", err)
		return oid.Empty, false
	}
	if !ok {
		return oid.Empty, false
	}
	if !next.HasPrefix(p.Base) {
		return oid.Empty, false
	}
	return next.Slice(p.Base.Len(), next.Len()), true
}
