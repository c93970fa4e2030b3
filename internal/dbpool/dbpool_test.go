package dbpool

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/tenantdb/tenantdb/internal/tenant"
)

func TestDSNUsesTenantCredentials(t *testing.T) {
	dsn := DSN(tenant.Database{
		ProjectID:    "p1",
		Host:         "paas-mysql",
		Port:         3306,
		DatabaseName: "proj_p1",
		Username:     "proj_p1",
		Password:     "pw",
	}, Config{DialTimeout: 5 * time.Second})

	if !strings.HasPrefix(dsn, "proj_p1:pw@tcp(paas-mysql:3306)/proj_p1") {
		t.Fatalf("DSN() = %q", dsn)
	}
	if !strings.Contains(dsn, "timeout=5s") {
		t.Fatalf("DSN() missing dial timeout: %q", dsn)
	}
}

func TestAcquireReusesPoolForSameCredentials(t *testing.T) {
	opener := &mockOpener{t: t}
	m := NewWithOpener(Config{}, nil, opener.open)

	db1, release1, err := m.Acquire(context.Background(), target("pw"))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	db2, release2, err := m.Acquire(context.Background(), target("pw"))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release1()
	release2()
	release2()

	if db1 != db2 {
		t.Fatal("expected the same pooled handle")
	}
	if opener.calls() != 1 {
		t.Fatalf("opener calls = %d, want 1", opener.calls())
	}
	if m.OpenPools() != 1 {
		t.Fatalf("OpenPools() = %d", m.OpenPools())
	}
}

func TestAcquireRotatesPoolWhenCredentialsChange(t *testing.T) {
	opener := &mockOpener{t: t}
	m := NewWithOpener(Config{}, nil, opener.open)

	oldDB, releaseOld, err := m.Acquire(context.Background(), target("old"))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	newDB, releaseNew, err := m.Acquire(context.Background(), target("new"))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer releaseNew()

	if oldDB == newDB {
		t.Fatal("expected a new handle after credential change")
	}
	if err := oldDB.PingContext(context.Background()); err != nil {
		t.Fatalf("old handle closed while leased: %v", err)
	}
	releaseOld()
	if err := oldDB.PingContext(context.Background()); err == nil {
		t.Fatal("expected old handle to be closed after last release")
	}
	if m.OpenPools() != 1 {
		t.Fatalf("OpenPools() = %d", m.OpenPools())
	}
}

func TestEvictIdleClosesUnleasedPools(t *testing.T) {
	opener := &mockOpener{t: t}
	m := NewWithOpener(Config{IdleEvictAfter: time.Minute}, nil, opener.open)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.clock = func() time.Time { return now }

	db, release, err := m.Acquire(context.Background(), target("pw"))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	now = now.Add(2 * time.Minute)
	if evicted := m.EvictIdle(); evicted != 0 {
		t.Fatalf("EvictIdle() with lease = %d, want 0", evicted)
	}

	release()
	now = now.Add(30 * time.Second)
	if evicted := m.EvictIdle(); evicted != 0 {
		t.Fatalf("EvictIdle() before timeout = %d, want 0", evicted)
	}

	now = now.Add(time.Minute)
	if evicted := m.EvictIdle(); evicted != 1 {
		t.Fatalf("EvictIdle() = %d, want 1", evicted)
	}
	if m.OpenPools() != 0 {
		t.Fatalf("OpenPools() = %d", m.OpenPools())
	}
	if err := db.PingContext(context.Background()); err == nil {
		t.Fatal("expected evicted handle to be closed")
	}
}

func TestAcquireReturnsOpenError(t *testing.T) {
	m := NewWithOpener(Config{}, nil, func(string) (*sql.DB, error) {
		return nil, errors.New("boom")
	})
	_, _, err := m.Acquire(context.Background(), target("pw"))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Acquire() error = %v", err)
	}
	if m.OpenPools() != 0 {
		t.Fatalf("OpenPools() = %d", m.OpenPools())
	}
}

func TestForgetAndClose(t *testing.T) {
	opener := &mockOpener{t: t}
	m := NewWithOpener(Config{}, nil, opener.open)

	if _, release, err := m.Acquire(context.Background(), target("pw")); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	} else {
		release()
	}
	m.Forget("p1")
	if m.OpenPools() != 0 {
		t.Fatalf("OpenPools() after Forget = %d", m.OpenPools())
	}

	if _, release, err := m.Acquire(context.Background(), target("pw")); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	} else {
		release()
	}
	m.Close()
	if m.OpenPools() != 0 {
		t.Fatalf("OpenPools() after Close = %d", m.OpenPools())
	}
	if opener.calls() != 2 {
		t.Fatalf("opener calls = %d, want 2", opener.calls())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	m := NewWithOpener(Config{EvictInterval: time.Millisecond}, nil, (&mockOpener{t: t}).open)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

type mockOpener struct {
	t     *testing.T
	mu    sync.Mutex
	count int
}

func (o *mockOpener) open(string) (*sql.DB, error) {
	o.mu.Lock()
	o.count++
	o.mu.Unlock()
	db, _, err := sqlmock.New()
	if err != nil {
		o.t.Fatalf("sqlmock.New() error = %v", err)
	}
	return db, nil
}

func (o *mockOpener) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

func target(password string) tenant.Database {
	return tenant.Database{
		ProjectID:    "p1",
		Host:         "paas-mysql",
		Port:         3306,
		DatabaseName: "proj_p1",
		Username:     "proj_p1",
		Password:     password,
	}
}
