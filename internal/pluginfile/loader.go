// Package pluginfile scans a directory for plugin files and registers
// each one against an OID derived from its filename, per the
// add_plugin_dir convention: a file named "1.3.6.1.4.1.27068.2.2.7.so"
// registers at that OID once loaded. It optionally watches the directory
// with fsnotify so later file drops are picked up without a restart.
package pluginfile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/geekxflood/common/logging"
	"github.com/geekxflood/gosnmpd/internal/oid"
)

// oidFilename matches a dotted OID optionally followed by any extension,
// e.g. "1.3.6.1.4.1.27068.2.2.7.so" or "1.3.6.1.2.1.1".
var oidFilename = regexp.MustCompile(`^(\d+(?:\.\d+)*)(\.[A-Za-z0-9_]+)?$`)

// Registerer is the subset of Agent this loader drives: installing a
// plugin at an OID parsed out of a file's name. The loader is generic
// over how a file's contents become a Producer: that is left to the
// Registerer's AddPluginFile.
type Registerer interface {
	AddPluginFile(id oid.ID, path string) error
}

// Loader scans Dir for plugin files, registering each with Target, and
// can watch Dir for later additions when Watch is true.
type Loader struct {
	Dir    string
	Target Registerer
	Watch  bool
	Logger logging.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// New constructs a Loader over dir, registering discovered plugins
// against target. logger may be nil.
func New(dir string, target Registerer, logger logging.Logger) *Loader {
	return &Loader{Dir: dir, Target: target, Logger: logger}
}

// ScanOnce walks Dir non-recursively, registering every file whose name
// parses as an OID. Per-file errors are isolated: one bad file is logged
// and skipped rather than aborting the scan.
func (l *Loader) ScanOnce() error {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return fmt.Errorf("pluginfile: reading %s: %w", l.Dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		l.registerFile(entry.Name())
	}
	return nil
}

func (l *Loader) registerFile(name string) {
	id, ok := parseOIDFilename(name)
	if !ok {
		l.logWarn("skipping non-OID plugin filename", "file", name)
		return
	}
	path := filepath.Join(l.Dir, name)
	if err := l.Target.AddPluginFile(id, path); err != nil {
		l.logWarn("failed to register plugin file", "file", name, "error", err)
	}
}

// parseOIDFilename extracts the OID component of a plugin filename,
// ignoring a single trailing extension if present.
func parseOIDFilename(name string) (oid.ID, bool) {
	m := oidFilename.FindStringSubmatch(name)
	if m == nil {
		return oid.Empty, false
	}
	id, err := oid.Parse(m[1])
	if err != nil {
		return oid.Empty, false
	}
	return id, true
}

func (l *Loader) logWarn(msg string, kv ...any) {
	if l.Logger == nil {
		return
	}
	l.Logger.Warn(msg, kv...)
}

func (l *Loader) logInfo(msg string, kv ...any) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info(msg, kv...)
}

// StartWatching begins watching Dir for new or changed files, registering
// each as it appears. It returns immediately; call Stop to end watching.
func (l *Loader) StartWatching() error {
	if !l.Watch {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("pluginfile: creating watcher: %w", err)
	}
	if err := watcher.Add(l.Dir); err != nil {
		watcher.Close()
		return fmt.Errorf("pluginfile: watching %s: %w", l.Dir, err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.stop = make(chan struct{})
	l.mu.Unlock()

	go l.watchLoop(watcher, l.stop)
	return nil
}

func (l *Loader) watchLoop(watcher *fsnotify.Watcher, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				name := filepath.Base(event.Name)
				l.logInfo("plugin file changed", "file", name)
				l.registerFile(name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logWarn("plugin directory watch error", "error", err)
		}
	}
}

// Stop ends directory watching started by StartWatching. Safe to call
// even if watching was never started.
func (l *Loader) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	if l.watcher != nil {
		l.watcher.Close()
		l.watcher = nil
	}
}

// IsPluginFilename reports whether name matches the OID-derived plugin
// filename convention, ignoring dotfiles and backup-style suffixes the
// way the directory scan should.
func IsPluginFilename(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return false
	}
	_, ok := parseOIDFilename(name)
	return ok
}
