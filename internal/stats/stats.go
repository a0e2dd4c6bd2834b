// Package stats provides an optional, off-by-default SQLite-backed log
// of served requests: timestamp, source address, community, PDU type,
// request ID, and varbind count. It exists for operators who want a
// local audit trail of who polled the agent and when; the hot request
// path never blocks on it when disabled.
package stats

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Config controls whether and where served requests are logged.
type Config struct {
	Enabled          bool
	ConnectionString string
	RetentionDays    int
	FlushInterval    time.Duration
	BatchSize        int
}

// DefaultConfig returns the logger disabled, pointed at a local file it
// will never open unless Enabled is turned on.
func DefaultConfig() *Config {
	return &Config{
		Enabled:          false,
		ConnectionString: "./gosnmpd_requests.db",
		RetentionDays:    7,
		FlushInterval:    5 * time.Second,
		BatchSize:        50,
	}
}

// ConfigFromProvider overlays cfg's stats.* keys onto DefaultConfig.
func ConfigFromProvider(cfg config.Provider) (*Config, error) {
	def := DefaultConfig()
	if cfg == nil {
		return def, nil
	}
	var err error
	if def.Enabled, err = cfg.GetBool("stats.enabled", def.Enabled); err != nil {
		return nil, err
	}
	if def.ConnectionString, err = cfg.GetString("stats.connection_string", def.ConnectionString); err != nil {
		return nil, err
	}
	if def.RetentionDays, err = cfg.GetInt("stats.retention_days", def.RetentionDays); err != nil {
		return nil, err
	}
	if def.FlushInterval, err = cfg.GetDuration("stats.flush_interval", def.FlushInterval); err != nil {
		return nil, err
	}
	if def.BatchSize, err = cfg.GetInt("stats.batch_size", def.BatchSize); err != nil {
		return nil, err
	}
	return def, nil
}

// Entry is one served request.
type Entry struct {
	Timestamp   time.Time
	SourceAddr  string
	Community   string
	PDUType     int
	RequestID   int32
	VarbindCount int
}

// Log records served requests to SQLite in small batches. A nil *Log is
// valid and Record is a no-op on it, so callers on the hot path can
// hold a possibly-nil *Log without branching on whether stats are
// enabled.
type Log struct {
	config *Config
	db     *sql.DB

	mu    sync.Mutex
	batch []Entry

	stop chan struct{}
	wg   sync.WaitGroup
}

// Open returns nil, nil if cfg is disabled. Otherwise it opens the
// SQLite database, creates the schema, and starts the background
// flush/cleanup workers.
func Open(cfg *Config) (*Log, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	db, err := sql.Open("sqlite3", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("stats: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: pinging database: %w", err)
	}

	l := &Log{
		config: cfg,
		db:     db,
		batch:  make([]Entry, 0, cfg.BatchSize),
		stop:   make(chan struct{}),
	}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: initialising schema: %w", err)
	}

	l.wg.Add(2)
	go l.flushWorker()
	go l.cleanupWorker()

	return l, nil
}

func (l *Log) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		source_addr TEXT NOT NULL,
		community TEXT NOT NULL,
		pdu_type INTEGER NOT NULL,
		request_id INTEGER NOT NULL,
		varbind_count INTEGER NOT NULL
	);`
	if _, err := l.db.Exec(schema); err != nil {
		return err
	}
	_, err := l.db.Exec("CREATE INDEX IF NOT EXISTS idx_requests_timestamp ON requests(timestamp);")
	return err
}

// Record queues e for the next flush. Safe to call on a nil *Log.
func (l *Log) Record(e Entry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batch = append(l.batch, e)
	if len(l.batch) >= l.config.BatchSize {
		l.flushLocked()
	}
}

func (l *Log) flushLocked() {
	if len(l.batch) == 0 {
		return
	}
	tx, err := l.db.Begin()
	if err != nil {
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO requests
		(timestamp, source_addr, community, pdu_type, request_id, varbind_count)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return
	}
	defer stmt.Close()

	for _, e := range l.batch {
		if _, err := stmt.Exec(e.Timestamp, e.SourceAddr, e.Community, e.PDUType, e.RequestID, e.VarbindCount); err != nil {
			return
		}
	}
	if err := tx.Commit(); err != nil {
		return
	}
	l.batch = l.batch[:0]
}

func (l *Log) flushWorker() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			l.mu.Lock()
			l.flushLocked()
			l.mu.Unlock()
			return
		case <-ticker.C:
			l.mu.Lock()
			l.flushLocked()
			l.mu.Unlock()
		}
	}
}

func (l *Log) cleanupWorker() {
	defer l.wg.Done()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Log) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -l.config.RetentionDays)
	l.db.Exec("DELETE FROM requests WHERE timestamp < ?", cutoff)
}

// Count returns the number of rows currently in the requests table.
// Intended for tests and operator diagnostics.
func (l *Log) Count() (int, error) {
	if l == nil {
		return 0, nil
	}
	var n int
	err := l.db.QueryRow("SELECT COUNT(*) FROM requests").Scan(&n)
	return n, err
}

// Close flushes any pending batch, stops the background workers, and
// closes the database. Safe to call on a nil *Log.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	close(l.stop)
	l.wg.Wait()
	return l.db.Close()
}
