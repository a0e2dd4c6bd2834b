// Package validate screens an incoming request before it reaches
// internal/agent: packet size, source-address allow/block lists, and
// varbind-count/OID-length limits, the same defence-in-depth checks the
// teacher's packet validator applies ahead of its trap listener.
package validate

import (
	"fmt"
	"net"
	"strings"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/gosnmpd/internal/codec"
)

// Config holds the limits a Validator enforces.
type Config struct {
	MaxPacketSize   int
	MaxVarbinds     int
	MaxOIDLength    int
	BlockedSources  []string
	AllowedSources  []string
}

// DefaultConfig leaves the source allow/block lists empty (everyone
// allowed) and caps packet/varbind shape at generous defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPacketSize:  8000,
		MaxVarbinds:    100,
		MaxOIDLength:   128,
		BlockedSources: []string{},
		AllowedSources: []string{},
	}
}

// ConfigFromProvider overlays cfg's agent.validate.* keys onto DefaultConfig.
func ConfigFromProvider(cfg config.Provider) (*Config, error) {
	def := DefaultConfig()
	if cfg == nil {
		return def, nil
	}
	var err error
	if def.MaxPacketSize, err = cfg.GetInt("agent.validate.max_packet_size", def.MaxPacketSize); err != nil {
		return nil, fmt.Errorf("validate: agent.validate.max_packet_size: %w", err)
	}
	if def.MaxVarbinds, err = cfg.GetInt("agent.validate.max_varbinds", def.MaxVarbinds); err != nil {
		return nil, fmt.Errorf("validate: agent.validate.max_varbinds: %w", err)
	}
	if def.MaxOIDLength, err = cfg.GetInt("agent.validate.max_oid_length", def.MaxOIDLength); err != nil {
		return nil, fmt.Errorf("validate: agent.validate.max_oid_length: %w", err)
	}
	if def.BlockedSources, err = cfg.GetStringSlice("agent.validate.blocked_sources", def.BlockedSources); err != nil {
		return nil, fmt.Errorf("validate: agent.validate.blocked_sources: %w", err)
	}
	if def.AllowedSources, err = cfg.GetStringSlice("agent.validate.allowed_sources", def.AllowedSources); err != nil {
		return nil, fmt.Errorf("validate: agent.validate.allowed_sources: %w", err)
	}
	return def, nil
}

// Error reports which field of a request failed validation.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator screens decoded requests ahead of community-string auth and
// dispatch to internal/agent.
type Validator struct {
	config *Config
}

// New constructs a Validator. cfg may be nil, in which case DefaultConfig
// applies.
func New(cfg *Config) *Validator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Validator{config: cfg}
}

// ValidateRequest checks rawData's size, sourceAddr against the
// allow/block lists, and msg's varbind count and OID lengths.
func (v *Validator) ValidateRequest(msg *codec.Message, sourceAddr string, rawData []byte) error {
	if err := v.validatePacketSize(rawData); err != nil {
		return err
	}
	if err := v.validateSourceAddress(sourceAddr); err != nil {
		return err
	}
	if err := v.validateVarbinds(msg); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validatePacketSize(rawData []byte) error {
	if len(rawData) > v.config.MaxPacketSize {
		return &Error{Field: "packet_size", Message: fmt.Sprintf("packet size %d exceeds maximum %d", len(rawData), v.config.MaxPacketSize)}
	}
	return nil
}

func (v *Validator) validateSourceAddress(sourceAddr string) error {
	if sourceAddr == "" {
		return &Error{Field: "source_address", Message: "source address is empty"}
	}

	host, _, err := net.SplitHostPort(sourceAddr)
	if err != nil {
		host = sourceAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return &Error{Field: "source_address", Message: "invalid source address"}
	}

	for _, blocked := range v.config.BlockedSources {
		if matchesIPPattern(ip.String(), blocked) {
			return &Error{Field: "source_address", Message: fmt.Sprintf("source address %s is blocked", ip.String())}
		}
	}

	if len(v.config.AllowedSources) > 0 {
		allowed := false
		for _, pattern := range v.config.AllowedSources {
			if matchesIPPattern(ip.String(), pattern) {
				allowed = true
				break
			}
		}
		if !allowed {
			return &Error{Field: "source_address", Message: fmt.Sprintf("source address %s is not in allowed list", ip.String())}
		}
	}

	return nil
}

// matchesIPPattern supports an exact match, a CIDR range, or a simple
// "192.168.*" prefix wildcard.
func matchesIPPattern(ip, pattern string) bool {
	if ip == pattern {
		return true
	}
	if strings.Contains(pattern, "/") {
		_, network, err := net.ParseCIDR(pattern)
		if err == nil {
			if addr := net.ParseIP(ip); addr != nil && network.Contains(addr) {
				return true
			}
		}
	}
	if strings.Contains(pattern, "*") {
		prefix := strings.ReplaceAll(pattern, "*", "")
		return strings.HasPrefix(ip, prefix)
	}
	return false
}

func (v *Validator) validateVarbinds(msg *codec.Message) error {
	if len(msg.Varbinds) > v.config.MaxVarbinds {
		return &Error{Field: "varbinds", Message: fmt.Sprintf("too many varbinds: %d (max %d)", len(msg.Varbinds), v.config.MaxVarbinds)}
	}
	for i, vb := range msg.Varbinds {
		if vb.Name.Len() > v.config.MaxOIDLength {
			return &Error{Field: fmt.Sprintf("varbind[%d].oid", i), Message: fmt.Sprintf("OID too long: %d components (max %d)", vb.Name.Len(), v.config.MaxOIDLength)}
		}
	}
	return nil
}
