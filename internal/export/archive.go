package export

import (
	"bizdesk/pkg/domain"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ContentType is the media type of an archive.
const ContentType = "application/gzip"

// Document is the JSON body of an archive.
type Document struct {
	ExportedAt time.Time       `json:"exported_at"`
	Data       domain.Snapshot `json:"data"`
}

// Records counts every record in the document.
func (d Document) Records() int {
	s := d.Data
	return len(s.Users) + len(s.Clients) + len(s.Services) + len(s.Quotes) +
		len(s.Projects) + len(s.Invoices) + len(s.Tasks) + len(s.Bugs)
}

// NewDocument wraps a snapshot for export. Password hashes are dropped.
func NewDocument(snapshot domain.Snapshot, at time.Time) Document {
	users := make([]domain.User, len(snapshot.Users))
	for i, u := range snapshot.Users {
		users[i] = u.Public()
	}
	snapshot.Users = users
	return Document{ExportedAt: at.UTC(), Data: snapshot}
}

// Encode writes doc to w as gzip-compressed JSON.
func Encode(w io.Writer, doc Document) error {
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress archive: %w", err)
	}
	return nil
}

// Decode reads an archive produced by Encode.
func Decode(r io.Reader) (Document, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return Document{}, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()
	var doc Document
	if err := json.NewDecoder(zr).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode archive: %w", err)
	}
	return doc, nil
}
