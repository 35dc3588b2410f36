package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubConnUpsertsAndQueries(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	upsert := "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"
	for _, payload := range []string{"[1]", "[1,2]"} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "clients"}, {Value: []byte(payload)}}); err != nil {
			t.Fatalf("ExecContext: %v", err)
		}
	}
	if len(conn.Tables["state"]) != 1 {
		t.Fatalf("expected upsert to replace the row, got %v", conn.Tables["state"])
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "clients" || string(dest[1].([]byte)) != "[1,2]" {
		t.Fatalf("unexpected row values: %v", dest)
	}
}

func TestStubConnFailureKnobs(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailExec = true
	if _, err := conn.ExecContext(ctx, "CREATE TABLE x (a TEXT)", nil); err == nil {
		t.Fatalf("expected exec failure")
	}
	conn.FailBegin = true
	if _, err := conn.BeginTx(ctx, driver.TxOptions{}); err == nil {
		t.Fatalf("expected begin failure")
	}
	if _, _, err := parseSelect("DELETE FROM state"); err == nil {
		t.Fatalf("expected select parse error")
	}
}
