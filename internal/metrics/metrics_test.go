package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// MockConfigProvider implements config.Provider for testing.
type MockConfigProvider struct {
	data map[string]any
}

func NewMockConfigProvider() *MockConfigProvider {
	return &MockConfigProvider{data: make(map[string]any)}
}

func (m *MockConfigProvider) Set(key string, value any) {
	m.data[key] = value
}

func (m *MockConfigProvider) Get(key string) (any, error) {
	if value, exists := m.data[key]; exists {
		return value, nil
	}
	return nil, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetString(key string, defaultValue ...string) (string, error) {
	if value, exists := m.data[key]; exists {
		if str, ok := value.(string); ok {
			return str, nil
		}
		return fmt.Sprintf("%v", value), nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return "", fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetInt(key string, defaultValue ...int) (int, error) {
	if value, exists := m.data[key]; exists {
		if i, ok := value.(int); ok {
			return i, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetBool(key string, defaultValue ...bool) (bool, error) {
	if value, exists := m.data[key]; exists {
		if b, ok := value.(bool); ok {
			return b, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return false, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetDuration(key string, defaultValue ...time.Duration) (time.Duration, error) {
	if value, exists := m.data[key]; exists {
		if d, ok := value.(time.Duration); ok {
			return d, nil
		}
		if str, ok := value.(string); ok {
			return time.ParseDuration(str)
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetFloat(key string, defaultValue ...float64) (float64, error) {
	if value, exists := m.data[key]; exists {
		if f, ok := value.(float64); ok {
			return f, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetStringSlice(key string, defaultValue ...[]string) ([]string, error) {
	if value, exists := m.data[key]; exists {
		if slice, ok := value.([]string); ok {
			return slice, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return nil, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) GetMap(key string) (map[string]any, error) {
	if value, exists := m.data[key]; exists {
		if mapVal, ok := value.(map[string]any); ok {
			return mapVal, nil
		}
	}
	return nil, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigProvider) Exists(key string) bool {
	_, exists := m.data[key]
	return exists
}

func (m *MockConfigProvider) Validate() error {
	return nil
}

func TestNewManagerDefaults(t *testing.T) {
	m, err := NewManager(NewMockConfigProvider(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.config.ListenAddress != ":9090" {
		t.Errorf("ListenAddress = %s, want :9090", m.config.ListenAddress)
	}
	if m.Requests == nil || m.Plugins == nil || m.Proxies == nil {
		t.Fatal("metric groups not initialised")
	}
}

func TestManagerHealthEndpoint(t *testing.T) {
	m, err := NewManager(NewMockConfigProvider(), nil)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	m.healthHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}

	m.SetHealthy(false)
	rec = httptest.NewRecorder()
	m.healthHandler(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health status after SetHealthy(false) = %d, want 503", rec.Code)
	}
}

func TestManagerCountersIncrement(t *testing.T) {
	m, err := NewManager(NewMockConfigProvider(), nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Requests.RequestsReceived.WithLabelValues("get").Inc()
	m.Plugins.CacheMisses.Inc()
	m.Proxies.UpstreamTimeout.Inc()

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "gosnmpd_plugin_cache_misses_total" {
			found = true
			if got := f.Metric[0].Counter.GetValue(); got != 1 {
				t.Errorf("plugin_cache_misses_total = %v, want 1", got)
			}
		}
	}
	if !found {
		t.Fatal("plugin_cache_misses_total not found in registry")
	}
}

func TestLoadConfigDisabled(t *testing.T) {
	cfg := NewMockConfigProvider()
	cfg.Set("metrics.enabled", false)
	loaded, err := loadConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Enabled {
		t.Errorf("Enabled = true, want false after metrics.enabled=false override")
	}
}
