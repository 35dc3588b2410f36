package postgres

import (
	"bizdesk/internal/infra/persistence/memory"
	"bizdesk/internal/infra/persistence/postgres/testutil"
	"bizdesk/pkg/domain"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("expected pgx driver, got %s", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresStateTable(t *testing.T) {
	store, conn := openStub(t)
	if store.DB() == nil {
		t.Fatalf("expected db handle")
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS state") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got %v", conn.Execs)
	}
}

func TestRunInTransactionPersistsEveryBucket(t *testing.T) {
	store, conn := openStub(t)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateClient(domain.Client{Name: "Alice"})
		return err
	})
	if err != nil {
		t.Fatalf("run tx: %v", err)
	}
	rows := conn.Tables["state"]
	if len(rows) != len(memory.Buckets) {
		t.Fatalf("expected %d buckets, got %d", len(memory.Buckets), len(rows))
	}
	for _, row := range rows {
		if row["bucket"] != "clients" {
			continue
		}
		var clients []domain.Client
		if err := json.Unmarshal(row["payload"].([]byte), &clients); err != nil {
			t.Fatalf("decode clients: %v", err)
		}
		if len(clients) != 1 || clients[0].Name != "Alice" {
			t.Fatalf("unexpected clients payload %+v", clients)
		}
	}
	if conn.Commits != 1 {
		t.Fatalf("expected one commit, got %d", conn.Commits)
	}
}

func TestNewStoreHydratesFromSnapshot(t *testing.T) {
	db, conn := testutil.NewStubDB()
	payload, _ := json.Marshal([]domain.Project{{ID: 3, ProjectName: "Site", ClientID: 1}})
	conn.Tables["state"] = []map[string]any{
		{"bucket": "projects", "payload": payload},
		{"bucket": "legacy", "payload": []byte(`{}`)},
	}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore(context.Background(), "postgres://example", nil, memory.WithTransitiveCascade(true))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	projects := store.ExportState().Projects
	if len(projects) != 1 || projects[0].ID != 3 {
		t.Fatalf("expected hydrated project, got %+v", projects)
	}
	if !store.TransitiveCascade() {
		t.Fatalf("expected options forwarded to memory store")
	}
}

func TestNewStoreErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("dial") })
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}

	db, conn = testutil.NewStubDB()
	conn.Tables["state"] = []map[string]any{{"bucket": "clients", "payload": []byte(`{not json`)}}
	restoreBad := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restoreBad()
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "decode clients") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRunInTransactionLogsPersistFailuresAndRetries(t *testing.T) {
	store, conn := openStub(t)
	var logs bytes.Buffer
	store.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	ctx := context.Background()

	conn.FailCommit = true
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateService(domain.Service{Name: "Hosting"})
		return err
	})
	if err != nil {
		t.Fatalf("expected the in-memory commit to succeed, got %v", err)
	}
	if conn.Commits != 0 {
		t.Fatalf("expected no successful commit")
	}
	if !strings.Contains(logs.String(), "postgres snapshot failed") || !strings.Contains(logs.String(), "commit fail") {
		t.Fatalf("expected the failure to be logged, got %q", logs.String())
	}
	if services := store.ExportState().Services; len(services) != 1 {
		t.Fatalf("expected the service to stay committed, got %+v", services)
	}

	conn.FailCommit = false
	conn.Execs = nil
	if _, err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); err != nil {
		t.Fatalf("no-op tx: %v", err)
	}
	if len(conn.Execs) != len(memory.Buckets) || conn.Commits != 1 {
		t.Fatalf("expected the next commit to write every pending bucket, got %d execs", len(conn.Execs))
	}

	conn.Execs = nil
	_, err = store.RunInTransaction(ctx, func(domain.Transaction) error {
		return errors.New("user abort")
	})
	if err == nil || len(conn.Execs) != 0 {
		t.Fatalf("expected no snapshot writes after user error")
	}
}

func TestPersistWritesOnlyChangedBuckets(t *testing.T) {
	store, conn := openStub(t)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateClient(domain.Client{Name: "Alice"})
		return err
	}); err != nil {
		t.Fatalf("first tx: %v", err)
	}

	conn.Execs = nil
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateTask(domain.Task{Name: "Wireframes", ProjectID: 9})
		return err
	}); err != nil {
		t.Fatalf("second tx: %v", err)
	}
	if len(conn.Execs) != 1 || !strings.Contains(conn.Execs[0], "INSERT INTO state") {
		t.Fatalf("expected a single upsert for tasks, got %v", conn.Execs)
	}

	conn.Execs = nil
	commits := conn.Commits
	if _, err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); err != nil {
		t.Fatalf("no-op tx: %v", err)
	}
	if len(conn.Execs) != 0 || conn.Commits != commits {
		t.Fatalf("expected unchanged state to skip the database, got %v", conn.Execs)
	}
}
