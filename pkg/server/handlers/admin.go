package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mnohosten/laura-db/pkg/compression"
	"github.com/mnohosten/laura-db/pkg/storage"
)

// Health returns a health check handler.
func (h *Handlers) Health(startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := time.Since(startTime)
		result := map[string]interface{}{
			"status": "healthy",
			"uptime": uptime.String(),
			"time":   time.Now().Format(time.RFC3339),
		}
		writeSuccess(w, result)
	}
}

// GetStats returns buffer pool, disk manager, and hash index statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	result := map[string]interface{}{
		"store":       h.store.Stats(),
		"global_depth": h.table.GlobalDepth(),
		"metrics":     h.collector.GetMetrics(),
	}
	writeSuccess(w, result)
}

// lookupRequest is the body for POST /lookup.
type lookupRequest struct {
	Key uint64 `json:"key"`
}

// Lookup handles POST /lookup: return every value stored under key.
func (h *Handlers) Lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.collector.RecordLookup()
	values := h.table.GetValue(req.Key)
	writeSuccess(w, map[string]interface{}{"key": req.Key, "values": values})
}

// insertRequest is the body for POST /insert and POST /remove.
type insertRequest struct {
	Key   uint64 `json:"key"`
	Value uint64 `json:"value"`
}

// Insert handles POST /insert.
func (h *Handlers) Insert(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ok, err := h.table.Insert(req.Key, req.Value)
	h.collector.RecordInsert(ok)
	if err != nil {
		writeError(w, &BadRequestError{Message: err.Error()})
		return
	}
	writeSuccess(w, map[string]interface{}{"inserted": ok})
}

// Remove handles POST /remove.
func (h *Handlers) Remove(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.collector.RecordRemove()
	removed := h.table.Remove(req.Key, req.Value)
	writeSuccess(w, map[string]interface{}{"removed": removed})
}

// ExportPage handles GET /_pages/{id}/export: fetches a page's raw frame
// image through the buffer pool, compresses it, and returns compression
// statistics alongside the compressed payload size. This is the only place
// in the repo that invokes pkg/compression — the hot disk-manager path
// cannot use it, since compressed output has variable length and the disk
// manager addresses pages at a fixed pageID*PageSize offset.
func (h *Handlers) ExportPage(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idParam, 10, 32)
	if err != nil {
		writeError(w, &BadRequestError{Message: "invalid page id"})
		return
	}
	pageID := storage.PageID(int32(id))

	frame, ok := h.store.BufferPool.FetchPage(pageID)
	if !ok {
		writeError(w, &NotFoundError{Message: fmt.Sprintf("page %d is not resident", pageID)})
		return
	}

	frame.Latch.RLock()
	snapshot := make([]byte, storage.PageSize)
	copy(snapshot, frame.Data[:])
	frame.Latch.RUnlock()
	h.store.BufferPool.UnpinPage(pageID, false)

	cf, err := compression.NewCompressedFrame(compression.DefaultConfig())
	if err != nil {
		writeError(w, &InternalError{Message: err.Error()})
		return
	}
	defer cf.Close()

	stats, err := cf.GetFrameCompressionStats(pageID, snapshot)
	if err != nil {
		writeError(w, &InternalError{Message: err.Error()})
		return
	}

	writeSuccess(w, stats)
}
