// Package agent implements the façade the serving loop and the plugin
// loader drive: registration of plugins and proxies against the MIB
// tree, and translation between decoded request PDUs and the tree's
// Lookup/Successor algorithms.
package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/geekxflood/common/logging"
	"github.com/geekxflood/gosnmpd/internal/client"
	"github.com/geekxflood/gosnmpd/internal/codec"
	"github.com/geekxflood/gosnmpd/internal/mib"
	"github.com/geekxflood/gosnmpd/internal/oid"
	"github.com/geekxflood/gosnmpd/internal/pluginfile"
	"github.com/geekxflood/gosnmpd/internal/proxy"
)

// Config holds the enumerated settings §6 requires of an agent instance.
type Config struct {
	Port        int
	MaxPacket   int
	Communities []string
	SysContact  string
	SysName     string
	SysLocation string
	HostIdent   string
}

// DefaultConfig mirrors §6's defaults.
func DefaultConfig() Config {
	return Config{
		Port:        161,
		MaxPacket:   8000,
		Communities: []string{"public"},
	}
}

var sysGroupBase = oid.MustParse("1.3.6.1.2.1.1")

// Agent is the MIB-serving façade: a tree root, the auto-registered
// system group, and the registration operations plugins and proxies are
// added through.
type Agent struct {
	root      *mib.Node
	cfg       Config
	logger    logging.Logger
	startTime time.Time

	mu sync.RWMutex
}

// New constructs an Agent and auto-registers the system group at
// 1.3.6.1.2.1.1 per §6. logger may be nil.
func New(cfg Config, logger logging.Logger) *Agent {
	a := &Agent{
		root:      &mib.Node{},
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
	}
	a.registerSystemGroup()
	return a
}

// Communities reports the set of community strings this agent accepts.
// The dispatch boundary (internal/server) consults this, not the core
// request-handling path.
func (a *Agent) Communities() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.cfg.Communities))
	copy(out, a.cfg.Communities)
	return out
}

// SetCommunities replaces the set of accepted community strings, for
// callers that re-read configuration live (internal/reload).
func (a *Agent) SetCommunities(communities []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.Communities = append([]string(nil), communities...)
}

func (a *Agent) logWarn(msg string, kv ...any) {
	if a.logger == nil {
		return
	}
	a.logger.Warn(msg, kv...)
}

func (a *Agent) logInfo(msg string, kv ...any) {
	if a.logger == nil {
		return
	}
	a.logger.Info(msg, kv...)
}

// AddPlugin registers producer at base, enforcing the tree's
// registration rule. Matches §4.7's add_plugin.
func (a *Agent) AddPlugin(base oid.ID, producer mib.Producer) error {
	if base.Len() == 0 {
		return mib.ErrBadOid
	}
	p := mib.NewPlugin(base.String(), producer, a.logger)
	return a.root.Place(base, mib.PluginChild(p))
}

// AddProxy registers a delegation to an upstream agent reachable at
// address (host:port) at base, enforcing the same registration rule.
// Matches §4.7's add_proxy.
func (a *Agent) AddProxy(base oid.ID, address, community string) error {
	if base.Len() == 0 {
		return mib.ErrBadOid
	}
	cfg := client.DefaultConfig()
	cfg.Address = address
	if community != "" {
		cfg.Community = community
	}
	c := client.NewUDPClient(cfg)
	p := proxy.New(base, c, a.logger)
	return a.root.Place(base, mib.ProxyChild(p))
}

// AddProxyClient registers a delegation through an already-constructed
// client.Client, letting tests and the in-memory harness substitute a
// transport without opening a socket.
func (a *Agent) AddProxyClient(base oid.ID, c client.Client) error {
	if base.Len() == 0 {
		return mib.ErrBadOid
	}
	p := proxy.New(base, c, a.logger)
	return a.root.Place(base, mib.ProxyChild(p))
}

// typedLookup resolves id for the given community and returns the typed
// SNMP value per §4.8, never propagating a tree error to the caller.
func (a *Agent) typedLookup(id oid.ID, community string) mib.Value {
	res, err := a.root.Lookup(id, community)
	if err != nil {
		a.logWarn("lookup failed", "oid", id.String(), "error", err)
	}
	return mib.TypedFromLookup(res, err)
}

// endOfMibViewOID is the "0" sentinel name §4.7 rewrites a GetNext
// varbind to once a request walks off the end of the MIB.
var endOfMibViewOID = oid.MustParse("0")

// ProcessGetRequest resolves every varbind in msg against the tree,
// returning a GetResponse with each name's typed value filled in.
func (a *Agent) ProcessGetRequest(msg *codec.Message) *codec.Message {
	resp := &codec.Message{
		Community:   msg.Community,
		PDUType:     codec.GetResponse,
		RequestID:   msg.RequestID,
		ErrorStatus: codec.ErrorStatusNoError,
		Varbinds:    make([]codec.Varbind, len(msg.Varbinds)),
	}
	for i, vb := range msg.Varbinds {
		resp.Varbinds[i] = codec.Varbind{
			Name:  vb.Name,
			Value: a.typedLookup(vb.Name, msg.Community),
		}
	}
	return resp
}

// ProcessGetNextRequest computes the successor of every varbind's name.
// A varbind whose successor search runs off the end of the MIB is
// rewritten per §4.7: name becomes the "0" sentinel, and the response's
// error-status/error-index are set to noSuchName/i — whichever varbind
// triggered it first wins, matching a manager's expectation of a single
// error per response.
func (a *Agent) ProcessGetNextRequest(msg *codec.Message) *codec.Message {
	resp := &codec.Message{
		Community:   msg.Community,
		PDUType:     codec.GetResponse,
		RequestID:   msg.RequestID,
		ErrorStatus: codec.ErrorStatusNoError,
		Varbinds:    make([]codec.Varbind, len(msg.Varbinds)),
	}
	for i, vb := range msg.Varbinds {
		next, ok := a.root.Successor(vb.Name, msg.Community)
		if !ok {
			resp.Varbinds[i] = codec.Varbind{Name: endOfMibViewOID, Value: mib.EndOfMibView}
			if resp.ErrorStatus == codec.ErrorStatusNoError {
				resp.ErrorStatus = codec.ErrorStatusNoSuchName
				resp.ErrorIndex = i
			}
			continue
		}
		resp.Varbinds[i] = codec.Varbind{
			Name:  next,
			Value: a.typedLookup(next, msg.Community),
		}
	}
	return resp
}

// AddPluginFile implements pluginfile.Registerer: it loads a compiled Go
// plugin (-buildmode=plugin, a ".so") from path and registers the
// Producer its "Produce" symbol exposes at id.
func (a *Agent) AddPluginFile(id oid.ID, path string) error {
	producer, err := loadProducer(path)
	if err != nil {
		return fmt.Errorf("agent: loading plugin file %s: %w", path, err)
	}
	return a.AddPlugin(id, producer)
}

// AddPluginDir enumerates dir per §4.7's add_plugin_dir: every file whose
// name matches the OID filename convention is registered at the OID its
// name encodes, with per-file errors logged and skipped rather than
// aborting the scan. When watch is true, the directory continues to be
// watched for later additions for the lifetime of the returned Loader.
func (a *Agent) AddPluginDir(dir string, watch bool) (*pluginfile.Loader, error) {
	loader := pluginfile.New(dir, a, a.logger)
	loader.Watch = watch
	if err := loader.ScanOnce(); err != nil {
		return nil, err
	}
	if watch {
		if err := loader.StartWatching(); err != nil {
			return nil, err
		}
	}
	return loader, nil
}

// WatchPluginDir scans dir once and keeps watching it for the lifetime
// of the returned Loader, registering newly-dropped plugin files as
// they appear. Equivalent to AddPluginDir(dir, true).
func (a *Agent) WatchPluginDir(dir string) (*pluginfile.Loader, error) {
	return a.AddPluginDir(dir, true)
}
