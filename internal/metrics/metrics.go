// Package metrics exposes Prometheus counters for the agent's request
// path: requests served, plugin cache hits/misses, producer errors, and
// proxy timeouts, served over HTTP alongside a health endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config defines the configuration for the metrics HTTP server.
type Config struct {
	Enabled       bool
	ListenAddress string
	MetricsPath   string
	HealthPath    string
	Namespace     string
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		ListenAddress: ":9090",
		MetricsPath:   "/metrics",
		HealthPath:    "/health",
		Namespace:     "gosnmpd",
	}
}

// RequestMetrics counts GetRequest/GetNextRequest outcomes.
type RequestMetrics struct {
	RequestsReceived *prometheus.CounterVec
	ResponsesSent    prometheus.Counter
	NoSuchObject     prometheus.Counter
	EndOfMibView     prometheus.Counter
	ProcessingTime   prometheus.Histogram
	DroppedPackets   *prometheus.CounterVec
}

// PluginMetrics counts plugin materialisation outcomes.
type PluginMetrics struct {
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ProducerErrors  prometheus.Counter
	ProducerPanics  prometheus.Counter
}

// ProxyMetrics counts upstream delegation outcomes.
type ProxyMetrics struct {
	UpstreamErrors  prometheus.Counter
	UpstreamTimeout prometheus.Counter
}

// Manager owns the metrics registry and the HTTP server exposing it.
type Manager struct {
	config   *Config
	logger   logging.Logger
	registry *prometheus.Registry
	server   *http.Server

	Requests *RequestMetrics
	Plugins  *PluginMetrics
	Proxies  *ProxyMetrics

	mu      sync.RWMutex
	healthy bool

	wg sync.WaitGroup
}

// NewManager builds a Manager and registers every metric with a fresh
// registry. logger may be nil.
func NewManager(cfg config.Provider, logger logging.Logger) (*Manager, error) {
	metricsConfig, err := loadConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("metrics: loading config: %w", err)
	}

	m := &Manager{
		config:   metricsConfig,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		healthy:  true,
	}
	m.initialise()
	return m, nil
}

func (m *Manager) initialise() {
	ns := m.config.Namespace

	m.Requests = &RequestMetrics{
		RequestsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "requests_received_total",
			Help:      "Total number of GetRequest/GetNextRequest PDUs received, by PDU type.",
		}, []string{"pdu_type"}),
		ResponsesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "responses_sent_total",
			Help:      "Total number of GetResponse PDUs sent.",
		}),
		NoSuchObject: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "no_such_object_total",
			Help:      "Total number of varbinds resolved to NoSuchObject.",
		}),
		EndOfMibView: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "end_of_mib_view_total",
			Help:      "Total number of GetNext varbinds that walked off the end of the MIB.",
		}),
		ProcessingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "request_processing_duration_seconds",
			Help:      "Time spent resolving one request's varbinds.",
			Buckets:   prometheus.DefBuckets,
		}),
		DroppedPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "dropped_packets_total",
			Help:      "Total number of packets dropped before dispatch, by reason.",
		}, []string{"reason"}),
	}

	m.Plugins = &PluginMetrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "plugin_cache_hits_total",
			Help:      "Total number of plugin materialisations served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "plugin_cache_misses_total",
			Help:      "Total number of plugin materialisations that invoked the producer.",
		}),
		ProducerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "plugin_producer_errors_total",
			Help:      "Total number of producer invocations that returned an error.",
		}),
		ProducerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "plugin_producer_panics_total",
			Help:      "Total number of producer invocations that panicked.",
		}),
	}

	m.Proxies = &ProxyMetrics{
		UpstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "proxy_upstream_errors_total",
			Help:      "Total number of proxy delegations that failed with a transport error.",
		}),
		UpstreamTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "proxy_upstream_timeouts_total",
			Help:      "Total number of proxy delegations that timed out.",
		}),
	}

	m.registry.MustRegister(
		m.Requests.RequestsReceived, m.Requests.ResponsesSent, m.Requests.NoSuchObject,
		m.Requests.EndOfMibView, m.Requests.ProcessingTime, m.Requests.DroppedPackets,
		m.Plugins.CacheHits, m.Plugins.CacheMisses, m.Plugins.ProducerErrors, m.Plugins.ProducerPanics,
		m.Proxies.UpstreamErrors, m.Proxies.UpstreamTimeout,
	)
}

// Start begins serving /metrics and /health in the background.
func (m *Manager) Start() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.MetricsPath, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc(m.config.HealthPath, m.healthHandler)

	m.server = &http.Server{Addr: m.config.ListenAddress, Handler: mux}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if m.logger != nil {
				m.logger.Error("metrics server error", "error", err.Error())
			}
		}
	}()
	return nil
}

// Stop shuts the metrics HTTP server down cleanly.
func (m *Manager) Stop() error {
	if m.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.server.Shutdown(ctx)
	m.wg.Wait()
	return err
}

func (m *Manager) healthHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	healthy := m.healthy
	m.mu.RUnlock()
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// SetHealthy sets the health endpoint's reported status.
func (m *Manager) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
}

func loadConfig(cfg config.Provider) (*Config, error) {
	def := DefaultConfig()
	if cfg == nil {
		return def, nil
	}
	var err error
	if def.Enabled, err = cfg.GetBool("metrics.enabled", def.Enabled); err != nil {
		return nil, err
	}
	if def.ListenAddress, err = cfg.GetString("metrics.listen_address", def.ListenAddress); err != nil {
		return nil, err
	}
	if def.MetricsPath, err = cfg.GetString("metrics.metrics_path", def.MetricsPath); err != nil {
		return nil, err
	}
	if def.HealthPath, err = cfg.GetString("metrics.health_path", def.HealthPath); err != nil {
		return nil, err
	}
	return def, nil
}
