// Package server implements the UDP receive loop that pairs an
// internal/agent.Agent with the wire: decode an incoming request,
// authenticate its community string, dispatch to the agent, encode and
// send the response. Community mismatches and decode failures are
// dropped silently per §6 and §7; only a closed socket or a cancelled
// context ends the loop.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
	"github.com/geekxflood/gosnmpd/internal/agent"
	"github.com/geekxflood/gosnmpd/internal/codec"
	"github.com/geekxflood/gosnmpd/internal/stats"
	"github.com/geekxflood/gosnmpd/internal/validate"
)

// Config holds the listener-level settings §6 enumerates: port,
// max_packet, and the read timeout used to notice a closed socket
// promptly without busy-polling.
type Config struct {
	Host       string
	Port       int
	MaxPacket  int
	ReadTimeout time.Duration
}

// DefaultConfig mirrors §6's defaults.
func DefaultConfig() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        161,
		MaxPacket:   8000,
		ReadTimeout: 30 * time.Second,
	}
}

// ConfigFromProvider overlays cfg's agent.* keys onto DefaultConfig.
func ConfigFromProvider(cfg config.Provider) (Config, error) {
	out := DefaultConfig()
	var err error
	if out.Host, err = cfg.GetString("agent.host", out.Host); err != nil {
		return Config{}, fmt.Errorf("server: agent.host: %w", err)
	}
	if out.Port, err = cfg.GetInt("agent.port", out.Port); err != nil {
		return Config{}, fmt.Errorf("server: agent.port: %w", err)
	}
	if out.MaxPacket, err = cfg.GetInt("agent.max_packet", out.MaxPacket); err != nil {
		return Config{}, fmt.Errorf("server: agent.max_packet: %w", err)
	}
	if out.ReadTimeout, err = cfg.GetDuration("agent.read_timeout", out.ReadTimeout); err != nil {
		return Config{}, fmt.Errorf("server: agent.read_timeout: %w", err)
	}
	return out, nil
}

// Server owns the UDP socket and drives one Agent from it.
type Server struct {
	cfg       Config
	agent     *agent.Agent
	logger    logging.Logger
	stats     *stats.Log
	validator *validate.Validator

	mu      sync.RWMutex
	conn    *net.UDPConn
	running bool
	wg      sync.WaitGroup
}

// New constructs a Server over a. logger may be nil.
func New(cfg Config, a *agent.Agent, logger logging.Logger) *Server {
	return &Server{cfg: cfg, agent: a, logger: logger, validator: validate.New(nil)}
}

// WithValidator overrides the request validator (packet size, source
// allow/block lists, varbind/OID limits). v may be nil to disable
// screening entirely.
func (s *Server) WithValidator(v *validate.Validator) *Server {
	s.validator = v
	return s
}

// WithStats attaches a request log. l may be nil, in which case
// recording is a no-op.
func (s *Server) WithStats(l *stats.Log) *Server {
	s.stats = l
	return s
}

func (s *Server) logWarn(msg string, kv ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, kv...)
}

func (s *Server) logInfo(msg string, kv ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Info(msg, kv...)
}

func (s *Server) logError(msg string, kv ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Error(msg, kv...)
}

// Start binds the UDP socket and begins serving. It returns once the
// socket is bound; the receive loop runs in a background goroutine until
// ctx is cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server: already running")
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("server: resolving %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("server: binding udp socket: %w", err)
	}

	s.conn = conn
	s.running = true
	s.wg.Add(1)
	go s.serve(ctx)

	s.logInfo("agent listening", "address", conn.LocalAddr().String())
	return nil
}

// Shutdown closes the UDP socket and waits for the receive loop to exit
// cleanly. Matches §5's contract: closing the socket is how the loop is
// told to stop, and it must not surface as a fatal error.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()
}

func (s *Server) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// serve is the blocking receive loop: one request handled at a time, in
// arrival order, per §5's single-threaded scheduling model.
func (s *Server) serve(ctx context.Context) {
	defer s.wg.Done()

	buf := make([]byte, s.cfg.MaxPacket)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if !s.isRunning() {
				return
			}
			s.logError("udp read failed", "error", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.handle(data, addr)
	}
}

func (s *Server) handle(data []byte, addr *net.UDPAddr) {
	msg, err := codec.Decode(data)
	if err != nil {
		s.logWarn("dropping malformed packet", "from", addr.String(), "error", err)
		return
	}

	if s.validator != nil {
		if err := s.validator.ValidateRequest(msg, addr.String(), data); err != nil {
			s.logWarn("dropping request that failed validation", "from", addr.String(), "error", err)
			return
		}
	}

	if !s.authorized(msg.Community) {
		s.logInfo("dropping request with unrecognised community", "from", addr.String())
		return
	}

	s.stats.Record(stats.Entry{
		Timestamp:    time.Now(),
		SourceAddr:   addr.String(),
		Community:    msg.Community,
		PDUType:      int(msg.PDUType),
		RequestID:    msg.RequestID,
		VarbindCount: len(msg.Varbinds),
	})

	var resp *codec.Message
	switch msg.PDUType {
	case codec.GetRequest:
		resp = s.agent.ProcessGetRequest(msg)
	case codec.GetNextRequest:
		resp = s.agent.ProcessGetNextRequest(msg)
	default:
		s.logError("unsupported PDU type, no response sent", "from", addr.String(), "pdu_type", msg.PDUType)
		return
	}

	encoded, err := codec.Encode(resp)
	if err != nil {
		s.logError("failed to encode response", "from", addr.String(), "error", err)
		return
	}
	if _, err := s.conn.WriteToUDP(encoded, addr); err != nil {
		s.logError("failed to send response", "to", addr.String(), "error", err)
	}
}

func (s *Server) authorized(community string) bool {
	for _, c := range s.agent.Communities() {
		if c == community {
			return true
		}
	}
	return false
}
