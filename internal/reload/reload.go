// Package reload watches the agent's configuration file and re-applies
// it without a restart: on a write or create event it waits out a
// debounce delay, then calls a Handler with a freshly-loaded
// config.Provider for the file. Adapted from the teacher's hot-reload
// manager, scoped down to the one thing this agent actually reloads
// live: its own config file.
package reload

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
)

// Handler is invoked with the config.Provider built from the reloaded
// file. An error is logged but never torn down the watcher.
type Handler func(cfg config.Provider) error

// Config controls debounce timing and whether watching is enabled at all.
type Config struct {
	Enabled     bool
	ReloadDelay time.Duration
}

// DefaultConfig enables watching with a short debounce, matching the
// teacher's default of coalescing rapid successive writes (editors that
// write a file in several chunks) into one reload.
func DefaultConfig() *Config {
	return &Config{Enabled: true, ReloadDelay: 500 * time.Millisecond}
}

// ConfigFromProvider overlays cfg's reload.* keys onto DefaultConfig.
func ConfigFromProvider(cfg config.Provider) (*Config, error) {
	def := DefaultConfig()
	if cfg == nil {
		return def, nil
	}
	var err error
	if def.Enabled, err = cfg.GetBool("reload.enabled", def.Enabled); err != nil {
		return nil, fmt.Errorf("reload: reload.enabled: %w", err)
	}
	if def.ReloadDelay, err = cfg.GetDuration("reload.reload_delay", def.ReloadDelay); err != nil {
		return nil, fmt.Errorf("reload: reload.reload_delay: %w", err)
	}
	return def, nil
}

// Stats tracks how many reloads the watcher has attempted.
type Stats struct {
	Successful int64
	Failed     int64
}

// Watcher watches one configuration file and calls Handler whenever it
// changes, rebuilding a config.Provider from the file each time.
type Watcher struct {
	config     *Config
	configPath string
	schemaPath string
	handler    Handler
	logger     logging.Logger

	mu      sync.Mutex
	stats   Stats
	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Watcher over configPath/schemaPath. logger may be nil.
func New(cfg *Config, configPath, schemaPath string, handler Handler, logger logging.Logger) *Watcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Watcher{config: cfg, configPath: configPath, schemaPath: schemaPath, handler: handler, logger: logger}
}

func (w *Watcher) logWarn(msg string, kv ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Warn(msg, kv...)
}

func (w *Watcher) logInfo(msg string, kv ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Info(msg, kv...)
}

// Start begins watching the config file. A no-op if disabled or the
// config path is empty (nothing to watch, e.g. running on defaults).
func (w *Watcher) Start() error {
	if !w.config.Enabled || w.configPath == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reload: creating watcher: %w", err)
	}
	if err := watcher.Add(w.configPath); err != nil {
		watcher.Close()
		return fmt.Errorf("reload: watching %s: %w", w.configPath, err)
	}

	w.watcher = watcher
	w.stop = make(chan struct{})
	w.wg.Add(1)
	go w.watchLoop()

	w.logInfo("watching configuration file", "file", w.configPath)
	return nil
}

// Stop ends watching. Safe to call even if Start was never called.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	close(w.stop)
	w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-w.stop:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.config.ReloadDelay)
			debounceC = debounce.C
		case <-debounceC:
			debounceC = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logWarn("config watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := config.NewManager(config.Options{SchemaPath: w.schemaPath, ConfigPath: w.configPath})
	if err != nil {
		w.recordFailure()
		w.logWarn("reload: failed to load configuration", "file", w.configPath, "error", err)
		return
	}
	defer cfg.Close()

	if err := w.handler(cfg); err != nil {
		w.recordFailure()
		w.logWarn("reload: handler failed", "file", w.configPath, "error", err)
		return
	}
	w.recordSuccess()
	w.logInfo("configuration reloaded", "file", w.configPath)
}

func (w *Watcher) recordSuccess() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Successful++
}

func (w *Watcher) recordFailure() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Failed++
}

// GetStats returns a snapshot of reload counts.
func (w *Watcher) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
