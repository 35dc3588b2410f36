package blob

import (
	"context"
	"testing"

	"bizdesk/internal/infra/blob/fs"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	store, err := Open(ctx, Config{FSRoot: root})
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	fsStore, ok := store.(*fs.Store)
	if !ok || fsStore.Root() != root {
		t.Fatalf("expected fs store at %s, got %T", root, store)
	}

	store, err = Open(ctx, Config{Driver: DriverMemory})
	if err != nil || store.Driver() != DriverMemory {
		t.Fatalf("open memory: %v %v", store, err)
	}

	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected s3 without bucket to fail")
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
