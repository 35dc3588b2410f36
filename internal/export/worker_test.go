package export

import (
	"bizdesk/internal/blob"
	"bizdesk/internal/infra/blob/memory"
	"bizdesk/pkg/domain"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type staticSource struct{ snapshot domain.Snapshot }

func (s staticSource) ExportState() domain.Snapshot { return s.snapshot }

type failingStore struct{ blob.Store }

func (failingStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, errors.New("disk full")
}

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Users:   []domain.User{{ID: 1, Username: "admin", PasswordHash: "$2a$10$secret", Role: domain.RoleAdmin}},
		Clients: []domain.Client{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Globex"}},
		Tasks:   []domain.Task{{ID: 1, ProjectID: 1, Name: "Design"}},
	}
}

func fixedClock() time.Time { return time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC) }

func TestRunWritesArchive(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	w := NewWorker(staticSource{sampleSnapshot()}, store, WithClock(fixedClock))

	record, err := w.Run(ctx, "admin")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if record.Status != StatusSucceeded || record.Artifact == nil || record.CompletedAt == nil {
		t.Fatalf("unexpected record %+v", record)
	}
	wantKey := "exports/20240309T140506Z-" + record.ID + ".json.gz"
	if record.Artifact.Key != wantKey {
		t.Fatalf("key = %s, want %s", record.Artifact.Key, wantKey)
	}
	if record.Artifact.Metadata["records"] != "4" || record.Artifact.Metadata["requested_by"] != "admin" {
		t.Fatalf("unexpected metadata %+v", record.Artifact.Metadata)
	}

	info, rc, err := store.Get(ctx, wantKey)
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	defer rc.Close()
	if info.ContentType != ContentType {
		t.Fatalf("content type = %s", info.ContentType)
	}
	doc, err := Decode(rc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !doc.ExportedAt.Equal(fixedClock()) || len(doc.Data.Clients) != 2 || doc.Data.Clients[1].Name != "Globex" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.Data.Users[0].PasswordHash != "" {
		t.Fatalf("password hash leaked into archive")
	}
}

func TestRunReportsStoreFailure(t *testing.T) {
	w := NewWorker(staticSource{sampleSnapshot()}, failingStore{memory.New()})
	record, err := w.Run(context.Background(), "admin")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected store failure, got %v", err)
	}
	if record.Status != StatusFailed || record.Artifact != nil {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestWorkerProcessesQueue(t *testing.T) {
	store := memory.New()
	w := NewWorker(staticSource{sampleSnapshot()}, store)
	w.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := w.Stop(ctx); err != nil {
			t.Errorf("stop: %v", err)
		}
	})

	queued, err := w.Enqueue(context.Background(), "admin")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != StatusQueued {
		t.Fatalf("expected queued status, got %s", queued.Status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		record, ok := w.Get(queued.ID)
		if !ok {
			t.Fatalf("record %s missing", queued.ID)
		}
		if record.Status == StatusSucceeded {
			break
		}
		if record.Status == StatusFailed {
			t.Fatalf("export failed: %s", record.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("export did not finish, status %s", record.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	list, err := store.List(context.Background(), KeyPrefix)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one archive, got %d (%v)", len(list), err)
	}
}

func TestEnqueueQueueFull(t *testing.T) {
	w := NewWorker(staticSource{}, memory.New(), WithQueueSize(1))
	first, err := w.Enqueue(context.Background(), "admin")
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := w.Enqueue(context.Background(), "admin"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if _, ok := w.Get(first.ID); !ok {
		t.Fatalf("queued record dropped")
	}
	if _, ok := w.Get("missing"); ok {
		t.Fatalf("unexpected record for unknown id")
	}
}

func TestStopHonoursContext(t *testing.T) {
	w := NewWorker(staticSource{}, memory.New())
	w.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func tickingClock() func() time.Time {
	t := fixedClock()
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func TestOpenStreamsArchive(t *testing.T) {
	ctx := context.Background()
	w := NewWorker(staticSource{sampleSnapshot()}, memory.New())
	record, err := w.Run(ctx, "admin")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	info, rc, err := w.Open(ctx, record.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	if info.Key != record.Artifact.Key {
		t.Fatalf("key = %s, want %s", info.Key, record.Artifact.Key)
	}
	doc, err := Decode(rc)
	if err != nil || len(doc.Data.Clients) != 2 {
		t.Fatalf("decode archive: %+v %v", doc, err)
	}
	if _, _, err := w.Open(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetentionDeletesOldestArchives(t *testing.T) {
	ctx := context.Background()
	w := NewWorker(staticSource{sampleSnapshot()}, memory.New(), WithClock(tickingClock()), WithRetention(2))
	var ids []string
	for range 3 {
		record, err := w.Run(ctx, "admin")
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		ids = append(ids, record.ID)
	}
	archives, err := w.Archives(ctx)
	if err != nil {
		t.Fatalf("archives: %v", err)
	}
	if len(archives) != 2 || !strings.Contains(archives[0].Key, ids[1]) || !strings.Contains(archives[1].Key, ids[2]) {
		t.Fatalf("expected the two newest archives, got %+v", archives)
	}
	if _, _, err := w.Open(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected pruned archive to be gone, got %v", err)
	}
}
