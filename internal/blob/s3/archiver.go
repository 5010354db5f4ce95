package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

const (
	// multipartThreshold is the payload size above which uploads go through
	// the multipart manager.
	multipartThreshold = 8 << 20

	jsonLinesType = "application/x-ndjson"
)

// Archiver implements domain.Archiver by serialising ledger snapshots and
// spread points to JSONL and uploading them under
//
//	archive/ledger/<yyyy-mm-dd>/<hhmmss>.jsonl
//	archive/spread/<yyyy-mm-dd>/<hhmmss>.jsonl
//
// Objects are never overwritten in place; each run writes a new key.
type Archiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, audit: audit}
}

// ArchiveLedger uploads one line per order snapshot.
func (a *Archiver) ArchiveLedger(ctx context.Context, at time.Time, snaps []domain.OrderSnapshot) (string, error) {
	return archive(ctx, a, "ledger", at, snaps)
}

// ArchiveSpread uploads one line per spread point.
func (a *Archiver) ArchiveSpread(ctx context.Context, at time.Time, points []domain.SpreadPoint) (string, error) {
	return archive(ctx, a, "spread", at, points)
}

func archive[T any](ctx context.Context, a *Archiver, kind string, at time.Time, records []T) (string, error) {
	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, at)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonLinesType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
			"path":  path,
			"count": len(records),
			"at":    at.UTC().Format(time.RFC3339),
		}); err != nil {
			return path, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
		}
	}
	return path, nil
}

// archivePath builds the object key, partitioned by UTC day.
//
//	archive/ledger/2026-01-02/150405.jsonl
func archivePath(kind string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, at.Format("2006-01-02"), at.Format("150405"))
}

// marshalJSONL encodes each record as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
