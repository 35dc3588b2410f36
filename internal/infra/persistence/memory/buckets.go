package memory

import (
	"bizdesk/pkg/domain"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
)

// Buckets lists the snapshot buckets written by the persistence backends, one
// per collection.
var Buckets = []string{
	domain.EntityUser.Collection(),
	domain.EntityClient.Collection(),
	domain.EntityService.Collection(),
	domain.EntityQuote.Collection(),
	domain.EntityProject.Collection(),
	domain.EntityInvoice.Collection(),
	domain.EntityTask.Collection(),
	domain.EntityBug.Collection(),
}

func bucketTarget(s *Snapshot, bucket string) (any, bool) {
	switch bucket {
	case "users":
		return &s.Users, true
	case "clients":
		return &s.Clients, true
	case "services":
		return &s.Services, true
	case "quotes":
		return &s.Quotes, true
	case "projects":
		return &s.Projects, true
	case "invoices":
		return &s.Invoices, true
	case "tasks":
		return &s.Tasks, true
	case "bugs":
		return &s.Bugs, true
	}
	return nil, false
}

// EncodeBuckets marshals each collection of the snapshot into its bucket.
func EncodeBuckets(snapshot Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		target, _ := bucketTarget(&snapshot, bucket)
		data, err := json.Marshal(target)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBuckets rebuilds a snapshot from bucket payloads. Unknown buckets are
// ignored so older tables keep loading.
func DecodeBuckets(payloads map[string][]byte) (Snapshot, error) {
	var snapshot Snapshot
	for bucket, payload := range payloads {
		target, ok := bucketTarget(&snapshot, bucket)
		if !ok {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	return snapshot, nil
}

// BucketDigests remembers what each bucket held when it was last written so
// the snapshot backends only rewrite collections that changed.
type BucketDigests struct {
	mu   sync.Mutex
	last map[string][sha256.Size]byte
}

// Changed returns the subset of payloads that differ from the last Mark.
func (d *BucketDigests) Changed(payloads map[string][]byte) map[string][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string][]byte, len(payloads))
	for bucket, payload := range payloads {
		if prev, ok := d.last[bucket]; ok && prev == sha256.Sum256(payload) {
			continue
		}
		out[bucket] = payload
	}
	return out
}

// Mark records payloads as persisted.
func (d *BucketDigests) Mark(payloads map[string][]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		d.last = make(map[string][sha256.Size]byte, len(Buckets))
	}
	for bucket, payload := range payloads {
		d.last[bucket] = sha256.Sum256(payload)
	}
}
