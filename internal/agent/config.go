package agent

import (
	"fmt"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
)

// ConfigFromProvider overlays cfg's agent.* keys onto DefaultConfig, the
// same "read with a default, never panic on a missing key" style the
// teacher applies throughout its constructors.
func ConfigFromProvider(cfg config.Provider) (Config, error) {
	out := DefaultConfig()
	if cfg == nil {
		return out, nil
	}
	var err error
	if out.Port, err = cfg.GetInt("agent.port", out.Port); err != nil {
		return Config{}, fmt.Errorf("agent: agent.port: %w", err)
	}
	if out.MaxPacket, err = cfg.GetInt("agent.max_packet", out.MaxPacket); err != nil {
		return Config{}, fmt.Errorf("agent: agent.max_packet: %w", err)
	}
	if out.Communities, err = cfg.GetStringSlice("agent.community", out.Communities); err != nil {
		return Config{}, fmt.Errorf("agent: agent.community: %w", err)
	}
	if out.SysContact, err = cfg.GetString("agent.sys_contact", out.SysContact); err != nil {
		return Config{}, fmt.Errorf("agent: agent.sys_contact: %w", err)
	}
	if out.SysName, err = cfg.GetString("agent.sys_name", out.SysName); err != nil {
		return Config{}, fmt.Errorf("agent: agent.sys_name: %w", err)
	}
	if out.SysLocation, err = cfg.GetString("agent.sys_location", out.SysLocation); err != nil {
		return Config{}, fmt.Errorf("agent: agent.sys_location: %w", err)
	}
	if out.HostIdent, err = cfg.GetString("agent.host_ident", out.HostIdent); err != nil {
		return Config{}, fmt.Errorf("agent: agent.host_ident: %w", err)
	}
	return out, nil
}

// NewFromConfig builds an Agent by reading agent.* out of cfg, matching
// the teacher's NewStorage(cfg config.Provider)-style constructor instead
// of taking an already-built Config struct.
func NewFromConfig(cfg config.Provider, logger logging.Logger) (*Agent, error) {
	agentCfg, err := ConfigFromProvider(cfg)
	if err != nil {
		return nil, err
	}
	return New(agentCfg, logger), nil
}
