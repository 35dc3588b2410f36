// Package export writes compressed snapshots of every collection to a blob
// store, either synchronously or through a background worker.
package export

import (
	"bizdesk/internal/blob"
	"bizdesk/pkg/domain"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status describes the lifecycle stage of an export.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// KeyPrefix is prepended to every archive key.
const KeyPrefix = "exports/"

var (
	// ErrQueueFull is returned by Enqueue when the backlog is saturated.
	ErrQueueFull = errors.New("export queue full")
	// ErrNotFound reports an unknown export or one without an archive.
	ErrNotFound = errors.New("export not found")
)

// Record tracks an export request and the archive it produced.
type Record struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifact    *blob.Info `json:"artifact,omitempty"`
	RequestedBy string     `json:"requested_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	if r.Artifact != nil {
		a := *r.Artifact
		a.Metadata = blob.CloneMetadata(a.Metadata)
		r.Artifact = &a
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		r.CompletedAt = &t
	}
	return r
}

// Source yields the state to export.
type Source interface {
	ExportState() domain.Snapshot
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithQueueSize sets the backlog capacity.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithRetention keeps only the newest n archives after each successful
// export. Zero keeps everything.
func WithRetention(n int) Option {
	return func(w *Worker) {
		if n >= 0 {
			w.retain = n
		}
	}
}

// Worker executes exports asynchronously.
type Worker struct {
	source    Source
	store     blob.Store
	logger    *slog.Logger
	now       func() time.Time
	queueSize int
	retain    int

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker over source and store.
func NewWorker(source Source, store blob.Store, opts ...Option) *Worker {
	w := &Worker{
		source:    source,
		store:     store,
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		queueSize: 32,
		jobs:      make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.queue = make(chan string, w.queueSize)
	w.ctx, w.cancel = context.WithCancel(context.Background())
	return w
}

// Start begins processing queued exports.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the current export.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(w.ctx, id)
		}
	}
}

// Enqueue schedules an export and returns the queued record.
func (w *Worker) Enqueue(_ context.Context, requestedBy string) (Record, error) {
	record := w.register(requestedBy)
	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	return record, nil
}

// Run performs one export in the calling goroutine.
func (w *Worker) Run(ctx context.Context, requestedBy string) (Record, error) {
	record := w.register(requestedBy)
	w.process(ctx, record.ID)
	done, _ := w.Get(record.ID)
	if done.Status == StatusFailed {
		return done, errors.New(done.Error)
	}
	return done, nil
}

// Get returns a copy of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

// Archives lists the stored archives, oldest first.
func (w *Worker) Archives(ctx context.Context) ([]blob.Info, error) {
	list, err := w.store.List(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	return list, nil
}

// Open returns a reader over the archive written by export id. The caller
// closes it.
func (w *Worker) Open(ctx context.Context, id string) (blob.Info, io.ReadCloser, error) {
	record, ok := w.Get(id)
	if !ok || record.Artifact == nil {
		return blob.Info{}, nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	info, rc, err := w.store.Get(ctx, record.Artifact.Key)
	if errors.Is(err, blob.ErrNotFound) {
		return blob.Info{}, nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return blob.Info{}, nil, err
	}
	return info, rc, nil
}

// prune deletes the oldest archives beyond the retention limit. Keys start
// with the export timestamp, so key order is age order.
func (w *Worker) prune(ctx context.Context) {
	if w.retain == 0 {
		return
	}
	list, err := w.store.List(ctx, KeyPrefix)
	if err != nil {
		w.logger.WarnContext(ctx, "export retention skipped", "error", err)
		return
	}
	for _, info := range list[:max(len(list)-w.retain, 0)] {
		if _, err := w.store.Delete(ctx, info.Key); err != nil {
			w.logger.WarnContext(ctx, "delete old export failed", "key", info.Key, "error", err)
			continue
		}
		w.logger.InfoContext(ctx, "old export deleted", "key", info.Key)
	}
}

func (w *Worker) register(requestedBy string) Record {
	now := w.now().UTC()
	record := Record{
		ID:          uuid.NewString(),
		Status:      StatusQueued,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()
	return queued
}

// Key names the archive for an export started at t.
func Key(id string, t time.Time) string {
	return fmt.Sprintf("%s%s-%s.json.gz", KeyPrefix, t.UTC().Format("20060102T150405Z"), id)
}

func (w *Worker) process(ctx context.Context, id string) {
	record, ok := w.Get(id)
	if !ok {
		return
	}
	w.updateStatus(id, StatusRunning)

	started := w.now()
	doc := NewDocument(w.source.ExportState(), started)
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		w.fail(id, err.Error())
		return
	}
	info, err := w.store.Put(ctx, Key(id, started), &buf, blob.PutOptions{
		ContentType: ContentType,
		Metadata: map[string]string{
			"requested_by": record.RequestedBy,
			"records":      strconv.Itoa(doc.Records()),
		},
	})
	if err != nil {
		w.fail(id, fmt.Sprintf("store archive failed: %v", err))
		return
	}
	w.complete(id, info)
	w.logger.InfoContext(ctx, "export written", "id", id, "key", info.Key, "size_bytes", info.Size)
	w.prune(ctx)
}

func (w *Worker) updateStatus(id string, status Status) {
	now := w.now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = now
	}
}

func (w *Worker) complete(id string, info blob.Info) {
	now := w.now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifact = &info
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
}

func (w *Worker) fail(id, reason string) {
	now := w.now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Error("export failed", "id", id, "error", reason)
}
