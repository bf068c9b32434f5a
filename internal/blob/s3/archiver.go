package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/intellidex/cryptobot/internal/domain"
)

// ArchiveImpl implements domain.Archiver: records pruned from the
// in-memory retention caps are serialized to JSONL and uploaded, one
// object per batch, so history survives past the caps.
type ArchiveImpl struct {
	writer domain.BlobWriter
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// NewArchiver creates an archiver writing through the given blob
// writer.
func NewArchiver(writer domain.BlobWriter, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// ArchiveTrades uploads a batch of pruned trades to
// archive/trades/<timestamp>.jsonl.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := a.archivePath("trades")
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	a.logger.Info("archived trades",
		slog.Int("count", len(trades)), slog.String("path", path))
	return nil
}

// ArchivePredictions uploads a batch of pruned predictions to
// archive/predictions/<timestamp>.jsonl.
func (a *ArchiveImpl) ArchivePredictions(ctx context.Context, preds []domain.Prediction) error {
	if len(preds) == 0 {
		return nil
	}

	buf, err := marshalJSONL(preds)
	if err != nil {
		return fmt.Errorf("s3blob: archive predictions marshal: %w", err)
	}

	path := a.archivePath("predictions")
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive predictions upload: %w", err)
	}

	a.logger.Info("archived predictions",
		slog.Int("count", len(preds)), slog.String("path", path))
	return nil
}

// archivePath keys each batch by its upload time so batches never
// collide.
//
//	archive/trades/20260830T110500.123456789.jsonl
func (a *ArchiveImpl) archivePath(kind string) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, a.now().UTC().Format("20060102T150405.000000000"))
}

// marshalJSONL serialises records as newline-delimited JSON.
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
