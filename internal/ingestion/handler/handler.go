// Package handler serves the write side of the catalog search API: document
// ingestion, bulk and single-product sync from the catalog source, source
// inspection and index reset.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/logger"
)

const maxBodyBytes = 2 << 20

type Publisher interface {
	Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error)
}

type Syncer interface {
	SyncAll(ctx context.Context, batchSize int, clearExisting bool) ingestion.SyncReport
	SyncOne(ctx context.Context, sku string) (*ingestion.SingleSyncResult, error)
	Status(ctx context.Context) ingestion.SyncStatus
	Source() source.Source
}

// Index is the destructive part of the engine plus the cache to drop with it.
type Index interface {
	ClearAll(ctx context.Context) error
}

type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	publisher Publisher
	syncer    Syncer
	index     Index
	cache     Invalidator
	syncCfg   config.SyncConfig
	logger    *slog.Logger
}

// New builds the handler; cache may be nil. syncCfg supplies the default and
// maximum batch size of POST /api/v1/sync.
func New(pub Publisher, syncer Syncer, index Index, cache Invalidator, syncCfg config.SyncConfig) *Handler {
	return &Handler{
		publisher: pub,
		syncer:    syncer,
		index:     index,
		cache:     cache,
		syncCfg:   syncCfg,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("POST /api/v1/sync", h.SyncAll)
	mux.HandleFunc("GET /api/v1/sync/status", h.SyncStatus)
	mux.HandleFunc("POST /api/v1/sync/{sku}", h.SyncOne)
	mux.HandleFunc("GET /api/v1/source/info", h.SourceInfo)
	mux.HandleFunc("GET /api/v1/source/products", h.SourceProducts)
	mux.HandleFunc("POST /api/v1/index/clear", h.ClearIndex)
}

// Ingest serves POST /api/v1/documents. The document is queued for the
// indexer and 202 is returned.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		h.writeValidation(w, err)
		return
	}
	resp, err := h.publisher.Ingest(ctx, &req)
	if err != nil {
		log.Error("ingestion failed", "doc_id", req.ID, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "ingestion failed")
		return
	}
	log.Info("document queued", "doc_id", resp.DocumentID)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// SyncAll serves POST /api/v1/sync with an optional body
// {"batch_size": 100, "clear_existing": true}.
func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ingestion.SyncRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	batchSize, clearExisting, err := validator.SyncOptions(req, h.syncCfg)
	if err != nil {
		h.writeValidation(w, err)
		return
	}
	if err := h.syncer.Source().Ping(ctx); err != nil {
		logger.FromContext(ctx).Error("catalog source unreachable", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"error":   "catalog source connection failed, check the source configuration",
		})
		return
	}

	report := h.syncer.SyncAll(ctx, batchSize, clearExisting)
	status, message := http.StatusOK, "synced "+strconv.Itoa(report.IndexedProducts)+" products from "+h.syncer.Source().Name()
	if !report.Success {
		status, message = http.StatusInternalServerError, "sync completed with errors"
	}
	h.writeJSON(w, status, map[string]any{
		"success": report.Success,
		"message": message,
		"stats":   report,
	})
}

// SyncOne serves POST /api/v1/sync/{sku}.
func (h *Handler) SyncOne(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.syncer.SyncOne(ctx, r.PathValue("sku"))
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= 500 {
			logger.FromContext(ctx).Error("single sync failed", "sku", r.PathValue("sku"), "error", err)
		}
		h.writeError(w, status, apperrors.Message(err, http.StatusText(status)))
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	h.writeJSON(w, status, result)
}

// SyncStatus serves GET /api/v1/sync/status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.syncer.Status(r.Context()))
}

// SourceInfo serves GET /api/v1/source/info.
func (h *Handler) SourceInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, err := h.syncer.Source().TableInfo(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("source info failed", "error", err)
		h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]any{
			"error":     "catalog source query failed",
			"connected": false,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// SourceProducts serves GET /api/v1/source/products?limit=&offset=.
func (h *Handler) SourceProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := 10, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "offset must be >= 0")
			return
		}
		offset = n
	}

	src := h.syncer.Source()
	products, err := src.FetchRecords(ctx, limit, offset)
	if err == nil && products == nil {
		products = []source.Product{}
	}
	var total int
	if err == nil {
		total, err = src.Count(ctx)
	}
	if err != nil {
		logger.FromContext(ctx).Error("source products failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "catalog source query failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"products":       products,
		"total_count":    total,
		"returned_count": len(products),
		"limit":          limit,
		"offset":         offset,
	})
}

// ClearIndex serves POST /api/v1/index/clear: documents, postings and
// suggestions are all removed and cached results dropped.
func (h *Handler) ClearIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.index.ClearAll(ctx)
	if h.cache != nil {
		if cerr := h.cache.Invalidate(ctx); cerr != nil {
			h.logger.Warn("query cache invalidation failed", "error", cerr)
		}
	}
	if err != nil {
		logger.FromContext(ctx).Error("index clear failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "index clear incomplete")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "index cleared"})
}

func (h *Handler) writeValidation(w http.ResponseWriter, err error) {
	var ve *validator.ValidationError
	if errors.As(err, &ve) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": ve.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
