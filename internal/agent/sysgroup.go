package agent

import (
	"time"

	"github.com/geekxflood/gosnmpd/internal/mib"
)

// registerSystemGroup installs the standard MIB values §6 requires at
// startup: a plugin at 1.3.6.1.2.1.1 producing the host identification
// string, uptime, and the configured sysContact/sysName/sysLocation.
// Sub-ids 2 and 7 (sysObjectID, sysServices) are intentionally absent;
// nothing in this agent's scope defines them.
func (a *Agent) registerSystemGroup() {
	producer := func(string) (any, error) {
		return map[uint32]any{
			1: []any{a.hostIdent()},
			3: []any{mib.TimeTicks(a.uptimeTicks())},
			4: []any{a.cfg.SysContact},
			5: []any{a.cfg.SysName},
			6: []any{a.cfg.SysLocation},
		}, nil
	}
	if err := a.AddPlugin(sysGroupBase, producer); err != nil {
		a.logWarn("failed to register system group", "error", err)
	}
}

func (a *Agent) hostIdent() string {
	if a.cfg.HostIdent != "" {
		return a.cfg.HostIdent
	}
	return "gosnmpd"
}

// uptimeTicks returns centiseconds elapsed since the agent started, the
// unit sysUpTime's TimeTicks variant is defined in.
func (a *Agent) uptimeTicks() uint32 {
	return uint32(time.Since(a.startTime).Milliseconds() / 10)
}
