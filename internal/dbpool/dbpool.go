// Package dbpool keeps one pooled MySQL handle per project and closes the
// handles nobody has used for a while.
package dbpool

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/sync/singleflight"

	"github.com/tenantdb/tenantdb/internal/observability"
	"github.com/tenantdb/tenantdb/internal/tenant"
)

type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	IdleEvictAfter  time.Duration
	EvictInterval   time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// OpenFunc opens a database handle for a DSN without connecting.
type OpenFunc func(dsn string) (*sql.DB, error)

type Manager struct {
	cfg    Config
	logger *slog.Logger
	open   OpenFunc
	clock  func() time.Time

	mu    sync.Mutex
	pools map[string]*pool
	group singleflight.Group
}

type pool struct {
	projectID   string
	db          *sql.DB
	fingerprint string
	leases      int
	lastUsed    time.Time
	retired     bool
}

func New(cfg Config, logger *slog.Logger) *Manager {
	return NewWithOpener(cfg, logger, func(dsn string) (*sql.DB, error) {
		return sql.Open("mysql", dsn)
	})
}

func NewWithOpener(cfg Config, logger *slog.Logger, open OpenFunc) *Manager {
	if cfg.EvictInterval <= 0 {
		cfg.EvictInterval = time.Minute
	}
	if cfg.IdleEvictAfter <= 0 {
		cfg.IdleEvictAfter = 10 * time.Minute
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		open:   open,
		clock:  time.Now,
		pools:  map[string]*pool{},
	}
}

// DSN renders the go-sql-driver DSN for a tenant database. Values come back
// in text form so that results keep the server's own formatting.
func DSN(target tenant.Database, cfg Config) string {
	mc := mysql.NewConfig()
	mc.User = target.Username
	mc.Passwd = target.Password
	mc.Net = "tcp"
	mc.Addr = target.Address()
	mc.DBName = target.DatabaseName
	mc.Timeout = cfg.DialTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	mc.Collation = "utf8mb4_unicode_ci"
	mc.ParseTime = false
	mc.MultiStatements = false
	mc.Loc = time.UTC
	return mc.FormatDSN()
}

// Acquire returns the pooled handle for target. The caller must invoke
// release exactly once when it no longer uses the handle. A changed
// credential set retires the old handle, which closes after its last lease.
func (m *Manager) Acquire(ctx context.Context, target tenant.Database) (*sql.DB, func(), error) {
	fp := fingerprint(target)
	for attempt := 0; attempt < 3; attempt++ {
		if p := m.lease(target.ProjectID, fp); p != nil {
			return p.db, m.releaser(p), nil
		}

		opened, err, _ := m.group.Do(target.ProjectID+"\x00"+fp, func() (any, error) {
			return m.openPool(ctx, target, fp)
		})
		if err != nil {
			return nil, nil, err
		}
		p := opened.(*pool)

		m.mu.Lock()
		if !p.retired {
			p.leases++
			p.lastUsed = m.clock()
			m.mu.Unlock()
			return p.db, m.releaser(p), nil
		}
		m.mu.Unlock()
	}
	return nil, nil, fmt.Errorf("acquire pool for project %s: credentials changed concurrently", target.ProjectID)
}

func (m *Manager) lease(projectID, fp string) *pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[projectID]
	if !ok || p.fingerprint != fp {
		return nil
	}
	p.leases++
	p.lastUsed = m.clock()
	return p
}

func (m *Manager) openPool(ctx context.Context, target tenant.Database, fp string) (*pool, error) {
	m.mu.Lock()
	if p, ok := m.pools[target.ProjectID]; ok && p.fingerprint == fp {
		m.mu.Unlock()
		return p, nil
	}
	m.mu.Unlock()

	db, err := m.open(DSN(target, m.cfg))
	if err != nil {
		return nil, fmt.Errorf("open tenant database %s: %w", target.DatabaseName, err)
	}
	if m.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(m.cfg.MaxOpenConns)
	}
	if m.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(m.cfg.MaxIdleConns)
	}
	if m.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping tenant database %s: %w", target.DatabaseName, err)
	}

	created := &pool{
		projectID:   target.ProjectID,
		db:          db,
		fingerprint: fp,
		lastUsed:    m.clock(),
	}

	m.mu.Lock()
	if previous, ok := m.pools[target.ProjectID]; ok {
		m.retireLocked(previous)
	}
	m.pools[target.ProjectID] = created
	open := len(m.pools)
	m.mu.Unlock()

	observability.SetTenantPoolsOpen(open)
	if m.logger != nil {
		m.logger.DebugContext(ctx, "tenant pool opened",
			slog.String("project_id", target.ProjectID),
			slog.String("database", target.DatabaseName),
		)
	}
	return created, nil
}

func (m *Manager) releaser(p *pool) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			p.leases--
			p.lastUsed = m.clock()
			closeNow := p.retired && p.leases <= 0
			m.mu.Unlock()
			if closeNow {
				_ = p.db.Close()
			}
		})
	}
}

// retireLocked removes p from the registry. The handle closes now if idle,
// otherwise on its last release.
func (m *Manager) retireLocked(p *pool) {
	if current, ok := m.pools[p.projectID]; ok && current == p {
		delete(m.pools, p.projectID)
	}
	p.retired = true
	if p.leases <= 0 {
		_ = p.db.Close()
	}
}

// Run evicts idle pools until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if evicted := m.EvictIdle(); evicted > 0 && m.logger != nil {
				m.logger.InfoContext(ctx, "tenant pools evicted", slog.Int("count", evicted))
			}
		}
	}
}

// EvictIdle closes pools without leases that have been idle for at least
// IdleEvictAfter and returns how many were closed.
func (m *Manager) EvictIdle() int {
	now := m.clock()
	m.mu.Lock()
	evicted := 0
	for _, p := range m.pools {
		if p.leases > 0 || now.Sub(p.lastUsed) < m.cfg.IdleEvictAfter {
			continue
		}
		m.retireLocked(p)
		evicted++
	}
	open := len(m.pools)
	m.mu.Unlock()

	observability.SetTenantPoolsOpen(open)
	return evicted
}

// Forget retires the pool of a project, for example after its database was
// dropped or its credentials rotated.
func (m *Manager) Forget(projectID string) {
	m.mu.Lock()
	if p, ok := m.pools[projectID]; ok {
		m.retireLocked(p)
	}
	open := len(m.pools)
	m.mu.Unlock()
	observability.SetTenantPoolsOpen(open)
}

func (m *Manager) OpenPools() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pools)
}

// Close retires every pool. Leased handles close on release.
func (m *Manager) Close() {
	m.mu.Lock()
	for _, p := range m.pools {
		m.retireLocked(p)
	}
	m.mu.Unlock()
	observability.SetTenantPoolsOpen(0)
}

func fingerprint(target tenant.Database) string {
	sum := sha256.Sum256([]byte(target.Address() + "\x00" + target.DatabaseName + "\x00" + target.Username + "\x00" + target.Password))
	return hex.EncodeToString(sum[:])
}
