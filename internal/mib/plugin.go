package mib

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/geekxflood/common/logging"
)

// Producer is a user-supplied value producer registered at a base OID.
// It is handed the requesting community name (a plugin's value may
// legitimately depend on who is asking) and returns the raw shape
// described in §3: a scalar, nil, a []any (ordered sequence), a
// map[uint32]any (sparse mapping), or — only meaningfully at the top
// level — a Cache wrapping one of the above with a TTL.
type Producer func(community string) (any, error)

// Cache wraps a producer's return value together with the number of
// seconds the materialised result should be reused before the producer
// is invoked again. Only meaningful when returned as the outermost value;
// Cache nested inside a sequence or mapping is treated as an ordinary
// opaque scalar.
type Cache struct {
	TTL   int
	Value any
}

// errorCacheWindow bounds how long a failing producer's absence is
// cached before the next Materialise call re-invokes it. Without this, a
// wedged or erroring plugin would be retried on every single request
// that happens to land on its subtree.
const errorCacheWindow = 30 * time.Second

// Plugin wraps a Producer with a single-entry cache: materialising it
// invokes the producer at most once per cache window, isolates producer
// panics/errors, and coerces the raw return value into a tree-shaped
// Child on every miss.
type Plugin struct {
	mu       sync.Mutex
	producer Producer
	logger   logging.Logger
	oidText  string

	cached     Child
	haveCached bool
	absent     bool
	expiry     time.Time

	now func() time.Time
}

// NewPlugin wraps producer for registration at the given OID (used only
// for log context). logger may be nil, in which case producer failures
// are swallowed silently rather than logged — callers should generally
// supply one.
func NewPlugin(oidText string, producer Producer, logger logging.Logger) *Plugin {
	return &Plugin{
		producer: producer,
		logger:   logger,
		oidText:  oidText,
		now:      time.Now,
		// expiry zero value (time.Time{}) is before any wall-clock time,
		// so the first Materialise call always misses the cache.
	}
}

// Materialise returns the plugin's current tree-shaped Child, invoking
// the producer if the cache has expired. On producer error (or a
// producer return value that fails shape coercion) it caches "absent"
// for errorCacheWindow and logs at warning level, so a single bad
// producer doesn't get re-invoked on every request landing on its
// subtree; the request that triggered the call proceeds and simply sees
// no value.
func (p *Plugin) Materialise(community string) (Child, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.haveCached && p.now().Before(p.expiry) {
		if p.absent {
			return Child{}, false
		}
		return p.cached, true
	}

	raw, err := p.invoke(community)
	if err != nil {
		p.logWarn("plugin producer failed", "error", err)
		p.cacheAbsent()
		return Child{}, false
	}

	ttl := 0
	if c, ok := raw.(Cache); ok {
		ttl = c.TTL
		raw = c.Value
	}

	child, err := Coerce(raw)
	if err != nil {
		p.logWarn("plugin returned an unshapeable value", "error", err)
		p.cacheAbsent()
		return Child{}, false
	}

	p.cached = child
	p.haveCached = true
	p.absent = false
	if ttl > 0 {
		p.expiry = p.now().Add(time.Duration(ttl) * time.Second)
	} else {
		// Not cached beyond this call: the next Materialise re-invokes.
		p.expiry = p.now()
	}
	return child, true
}

// cacheAbsent marks the plugin as having no value for errorCacheWindow,
// so a failing producer is treated as absent for the remainder of the
// current window rather than retried on every lookup through it.
func (p *Plugin) cacheAbsent() {
	p.haveCached = true
	p.absent = true
	p.expiry = p.now().Add(errorCacheWindow)
}

// invoke calls the producer, converting a panic into an error so a
// misbehaving plugin can never take the serving loop down with it.
func (p *Plugin) invoke(community string) (raw any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin panicked: %v", r)
		}
	}()
	return p.producer(community)
}

func (p *Plugin) logWarn(msg string, kv ...any) {
	if p.logger == nil {
		return
	}
	kv = append([]any{"oid", p.oidText}, kv...)
	p.logger.Warn(msg, kv...)
}

// Coerce converts a producer's raw return value into a tree-shaped Child:
// a scalar becomes ScalarChild, an ordered sequence or sparse mapping
// becomes SubtreeChild with one child per index/key, nil becomes an empty
// subtree. A nested nil inside a sequence/mapping leaves that slot
// absent rather than an empty branch. A mapping with a non-integer key
// fails with ErrBadPluginShape (the whole plugin is then treated as
// empty by the caller).
func Coerce(raw any) (Child, error) {
	switch v := raw.(type) {
	case nil:
		return SubtreeChild(&Node{}), nil
	case []any:
		n := &Node{}
		for i, item := range v {
			if item == nil {
				continue
			}
			child, err := Coerce(item)
			if err != nil {
				return Child{}, err
			}
			n.setChildForce(uint32(i), child)
		}
		return SubtreeChild(n), nil
	case map[uint32]any:
		n := &Node{}
		for k, item := range v {
			if item == nil {
				continue
			}
			child, err := Coerce(item)
			if err != nil {
				return Child{}, err
			}
			n.setChildForce(k, child)
		}
		return SubtreeChild(n), nil
	case map[int]any:
		// Convenience shape for producers written without the uint32
		// map key in hand; negative keys are a shape error.
		converted := make(map[uint32]any, len(v))
		for k, item := range v {
			if k < 0 {
				return Child{}, ErrBadPluginShape
			}
			converted[uint32(k)] = item
		}
		return Coerce(converted)
	case Child:
		return v, nil
	default:
		if rt := reflect.TypeOf(v); rt.Kind() == reflect.Map {
			switch rt.Key().Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
				reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			default:
				return Child{}, ErrBadPluginShape
			}
		}
		return ScalarChild(v), nil
	}
}
