package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/avelez/dexscan/internal/domain"
)

// ScanArchiveStore is the slice of the scan store the archiver needs: read
// access to expired records and the ability to delete them once archived.
type ScanArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ScanRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver moves scan records older than the retention window out of the
// primary store and into object storage as JSONL files, one object per
// calendar day per pass.
// Records are deleted from the primary store only after every upload for the
// pass has succeeded, so a failed upload leaves the rows in place for the
// next pass.
type Archiver struct {
	writer    domain.BlobWriter
	scans     ScanArchiveStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, scans ScanArchiveStore, retention, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		scans:     scans,
		retention: retention,
		interval:  interval,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run executes one archival pass immediately, then one per interval until
// the context is cancelled. Pass failures are logged, never fatal.
func (a *Archiver) Run(ctx context.Context) error {
	if _, err := a.ArchiveOnce(ctx); err != nil {
		a.logger.Warn("archive pass failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.ArchiveOnce(ctx); err != nil {
				a.logger.Warn("archive pass failed", slog.Any("error", err))
			}
		}
	}
}

// ArchiveOnce archives and deletes every scan record older than the
// retention window. It returns the number of records archived.
func (a *Archiver) ArchiveOnce(ctx context.Context) (int64, error) {
	return a.archiveAt(ctx, time.Now().UTC().Add(-a.retention))
}

// archiveAt runs one pass against an explicit cutoff. Object keys embed the
// cutoff, so two passes whose cutoffs split the same calendar day write
// distinct objects; a day-keyed object would be overwritten by the later
// pass after the earlier pass already deleted its rows.
func (a *Archiver) archiveAt(ctx context.Context, cutoff time.Time) (int64, error) {
	recs, err := a.scans.ListBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	for day, dayRecs := range groupByDay(recs) {
		buf, err := marshalJSONL(dayRecs)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive marshal %s: %w", day, err)
		}

		path := archivePath(day, cutoff)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return 0, fmt.Errorf("s3blob: archive upload %s: %w", path, err)
		}

		a.logger.Info("archived scan records",
			slog.String("path", path),
			slog.Int("count", len(dayRecs)))
	}

	deleted, err := a.scans.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive delete: %w", err)
	}

	return deleted, nil
}

// groupByDay buckets records by the UTC calendar date of their timestamp,
// keeping each bucket in timestamp order.
func groupByDay(recs []domain.ScanRecord) map[string][]domain.ScanRecord {
	groups := make(map[string][]domain.ScanRecord)
	for _, rec := range recs {
		day := rec.Timestamp.UTC().Format("2006-01-02")
		groups[day] = append(groups[day], rec)
	}
	for _, dayRecs := range groups {
		sort.Slice(dayRecs, func(i, j int) bool {
			return dayRecs[i].Timestamp.Before(dayRecs[j].Timestamp)
		})
	}
	return groups
}

// archivePath builds the S3 key for one day's slice of an archival pass,
// e.g. scans/2026/08/27/20260828T120000Z.jsonl. The cutoff suffix keeps
// passes from clobbering each other's objects.
func archivePath(day string, cutoff time.Time) string {
	t, _ := time.Parse("2006-01-02", day)
	return fmt.Sprintf("scans/%s/%s.jsonl",
		t.Format("2006/01/02"), cutoff.UTC().Format("20060102T150405Z"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL(recs []domain.ScanRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
