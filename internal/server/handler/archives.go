package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/intellidex/cryptobot/internal/domain"
)

// ArchivesHandler serves the trade and prediction archives written to
// object storage when the in-memory retention caps are exceeded.
type ArchivesHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchivesHandler creates an ArchivesHandler backed by reader.
func NewArchivesHandler(reader domain.BlobReader, logger *slog.Logger) *ArchivesHandler {
	return &ArchivesHandler{
		reader: reader,
		logger: logHandler(logger, "archives"),
	}
}

// archiveEntry is the listing item returned by List.
type archiveEntry struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}

// List enumerates archived batches, optionally narrowed by prefix
// ("archive/trades/" or "archive/predictions/").
// GET /api/archives?prefix=
func (h *ArchivesHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "archive/"
	}

	infos, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		h.logger.Error("list archives", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "archive storage unavailable")
		return
	}

	entries := make([]archiveEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, archiveEntry{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"archives": entries,
		"count":    len(entries),
	})
}

// Download streams one archived batch back as JSON lines.
// GET /api/archives/{key...}
func (h *ArchivesHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := pathParam(r, "key")
	if key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "invalid archive key")
		return
	}

	rc, err := h.reader.Get(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream archive", slog.String("key", key), slog.Any("error", err))
	}
}
