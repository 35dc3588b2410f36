package fs

import (
	"bizdesk/internal/blob/core"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Root() != root || s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected identity %s %s", s.Root(), s.Driver())
	}

	info, err := s.Put(ctx, "exports/2024/a.json.gz", strings.NewReader("hello"), core.PutOptions{ContentType: "application/gzip", Metadata: map[string]string{"k": "v"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	// sha256("hello")
	if info.ETag != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" || info.Size != 5 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "exports", "2024", "a.json.gz"+metaSuffix)); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	if _, err := s.Put(ctx, "exports/2024/a.json.gz", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := s.Get(ctx, "exports/2024/a.json.gz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "hello" || got.Metadata["k"] != "v" || got.ContentType != "application/gzip" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}

	if _, err := s.Put(ctx, "other.txt", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := s.List(ctx, "exports/")
	if err != nil || len(list) != 1 || list[0].Key != "exports/2024/a.json.gz" {
		t.Fatalf("unexpected list %+v %v", list, err)
	}

	if ok, err := s.Delete(ctx, "exports/2024/a.json.gz"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "exports/2024/a.json.gz"); ok {
		t.Fatalf("expected missing on second delete")
	}
	if _, _, err := s.Get(ctx, "exports/2024/a.json.gz"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRejectsUnsafeKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "/abs", "../escape", "x.meta"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}
