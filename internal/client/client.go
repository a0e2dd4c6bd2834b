// Package client provides the manager-side transport a Proxy uses to
// delegate Get and GetNext requests to an upstream SNMP agent.
package client

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/gosnmpd/internal/codec"
	"github.com/geekxflood/gosnmpd/internal/mib"
	"github.com/geekxflood/gosnmpd/internal/oid"
	"github.com/geekxflood/gosnmpd/internal/retry"
)

// Client is the delegation contract a Proxy drives: one round trip per
// call, addressed by an OID relative to nothing in particular (callers
// supply the full, absolute upstream OID).
type Client interface {
	Get(ctx context.Context, id oid.ID) (mib.Value, bool, error)
	GetNext(ctx context.Context, id oid.ID) (oid.ID, mib.Value, bool, error)
}

// Config holds configuration for the UDP manager client, in the same
// shape as the agent's other client-style configs: a struct of tunables
// plus a DefaultConfig constructor, here populated from config.Provider
// rather than JSON.
type Config struct {
	Address    string
	Community  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns the values ConfigFromProvider falls back to when
// proxy.* keys are absent; agent.AddProxy builds its client from these
// defaults directly.
func DefaultConfig() *Config {
	return &Config{
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Community:  "public",
	}
}

// ConfigFromProvider builds a Config for one upstream address, reading
// retry and timeout tunables from cfg under the proxy.* path with
// DefaultConfig's values as fallbacks.
func ConfigFromProvider(cfg config.Provider, address, community string) (*Config, error) {
	def := DefaultConfig()
	timeout, err := cfg.GetDuration("proxy.timeout", def.Timeout)
	if err != nil {
		return nil, fmt.Errorf("client: proxy.timeout: %w", err)
	}
	maxRetries, err := cfg.GetInt("proxy.max_retries", def.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("client: proxy.max_retries: %w", err)
	}
	retryDelay, err := cfg.GetDuration("proxy.retry_delay", def.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("client: proxy.retry_delay: %w", err)
	}
	return &Config{
		Address:    address,
		Community:  community,
		Timeout:    timeout,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
	}, nil
}

// UDPClient is the real transport: it encodes a GetRequest or
// GetNextRequest with internal/codec, sends it over a UDP socket to the
// configured upstream address, and decodes the GetResponse. Retries and
// a circuit breaker against a wedged upstream are handled by
// internal/retry.Retryer.
type UDPClient struct {
	cfg       *Config
	requestID atomic.Int32
	retryer   *retry.Retryer
}

// NewUDPClient constructs a client bound to a single upstream address.
func NewUDPClient(cfg *Config) *UDPClient {
	retryer, err := retry.NewRetryer(retryProviderFromConfig(cfg))
	if err != nil {
		// retryProviderFromConfig never returns a nil provider, so
		// NewRetryer only fails this way on a programmer error.
		panic(fmt.Sprintf("client: building retryer: %v", err))
	}
	return &UDPClient{cfg: cfg, retryer: retryer}
}

func (c *UDPClient) nextRequestID() int32 {
	return c.requestID.Add(1)
}

// roundTrip sends msg to the upstream address and returns its decoded
// GetResponse, retrying through the retryer's backoff and circuit
// breaker on timeout or a transport error.
func (c *UDPClient) roundTrip(ctx context.Context, msg *codec.Message) (*codec.Message, error) {
	encoded, err := codec.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("client: encode: %w", err)
	}

	var resp *codec.Message
	result := c.retryer.Retry(ctx, func(ctx context.Context, attempt int) error {
		r, err := c.roundTripOnce(ctx, encoded)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if !result.Success {
		return nil, fmt.Errorf("client: upstream %s unreachable after %d attempts: %w", c.cfg.Address, result.Attempts, result.LastError)
	}
	return resp, nil
}

func (c *UDPClient) roundTripOnce(ctx context.Context, encoded []byte) (*codec.Message, error) {
	conn, err := net.Dial("udp", c.cfg.Address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := conn.Write(encoded); err != nil {
		return nil, err
	}

	buf := make([]byte, 65507)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return codec.Decode(buf[:n])
}

// Get issues a single-varbind GetRequest for id and returns the bound
// value. ok is false when the upstream returned NoSuchObject.
func (c *UDPClient) Get(ctx context.Context, id oid.ID) (mib.Value, bool, error) {
	req := &codec.Message{
		Community: c.cfg.Community,
		PDUType:   codec.GetRequest,
		RequestID: c.nextRequestID(),
		Varbinds:  []codec.Varbind{{Name: id}},
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if len(resp.Varbinds) != 1 {
		return nil, false, fmt.Errorf("client: upstream returned %d varbinds, want 1", len(resp.Varbinds))
	}
	v := resp.Varbinds[0].Value
	if mib.IsNoSuchObject(v) {
		return nil, false, nil
	}
	return v, true, nil
}

// GetNext issues a single-varbind GetNextRequest for id and returns the
// successor OID and its bound value. ok is false when the upstream
// returned EndOfMibView.
func (c *UDPClient) GetNext(ctx context.Context, id oid.ID) (oid.ID, mib.Value, bool, error) {
	req := &codec.Message{
		Community: c.cfg.Community,
		PDUType:   codec.GetNextRequest,
		RequestID: c.nextRequestID(),
		Varbinds:  []codec.Varbind{{Name: id}},
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return oid.Empty, nil, false, err
	}
	if len(resp.Varbinds) != 1 {
		return oid.Empty, nil, false, fmt.Errorf("client: upstream returned %d varbinds, want 1", len(resp.Varbinds))
	}
	vb := resp.Varbinds[0]
	if mib.IsEndOfMibView(vb.Value) {
		return oid.Empty, nil, false, nil
	}
	return vb.Name, vb.Value, true, nil
}

// retryConfigProvider bridges a client Config's MaxRetries/RetryDelay
// into the config.Provider shape retry.NewRetryer expects, so the
// proxy's retry/backoff/circuit-breaker behaviour is driven by the same
// Retryer the rest of the agent would use for any other upstream call,
// rather than a bespoke loop. Every key it doesn't recognise returns the
// caller's default (or "not found" when none is given), so
// retry.DefaultRetryConfig's values apply.
type retryConfigProvider struct {
	maxAttempts  int
	initialDelay time.Duration
}

func retryProviderFromConfig(cfg *Config) config.Provider {
	return &retryConfigProvider{
		maxAttempts:  cfg.MaxRetries + 1,
		initialDelay: cfg.RetryDelay,
	}
}

func (p *retryConfigProvider) Get(key string) (any, error) {
	return nil, fmt.Errorf("client: key not found: %s", key)
}

func (p *retryConfigProvider) GetString(key string, defaultValue ...string) (string, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return "", fmt.Errorf("client: key not found: %s", key)
}

func (p *retryConfigProvider) GetInt(key string, defaultValue ...int) (int, error) {
	if key == "retry.max_attempts" {
		return p.maxAttempts, nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("client: key not found: %s", key)
}

func (p *retryConfigProvider) GetBool(key string, defaultValue ...bool) (bool, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return false, fmt.Errorf("client: key not found: %s", key)
}

func (p *retryConfigProvider) GetDuration(key string, defaultValue ...time.Duration) (time.Duration, error) {
	if key == "retry.initial_delay" {
		return p.initialDelay, nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("client: key not found: %s", key)
}

func (p *retryConfigProvider) GetFloat(key string, defaultValue ...float64) (float64, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("client: key not found: %s", key)
}

func (p *retryConfigProvider) GetStringSlice(key string, defaultValue ...[]string) ([]string, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return nil, fmt.Errorf("client: key not found: %s", key)
}

func (p *retryConfigProvider) GetMap(key string) (map[string]any, error) {
	return nil, fmt.Errorf("client: key not found: %s", key)
}

func (p *retryConfigProvider) Exists(key string) bool {
	return key == "retry.max_attempts" || key == "retry.initial_delay"
}

func (p *retryConfigProvider) Validate() error {
	return nil
}
