// Package ingestion defines the request, response and event types of the
// document ingestion pipeline and the catalog sync job.
package ingestion

import "time"

// IngestRequest is the JSON body of POST /api/v1/documents.
type IngestRequest struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Tags     []string          `json:"tags"`
	Metadata map[string]string `json:"metadata"`
}

type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// IngestEvent is published to the document-ingest topic and applied by the
// indexer.
type IngestEvent struct {
	DocumentID string            `json:"document_id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Tags       []string          `json:"tags"`
	Metadata   map[string]string `json:"metadata"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// SyncRequest is the JSON body of POST /api/v1/sync.
type SyncRequest struct {
	BatchSize     *int  `json:"batch_size"`
	ClearExisting *bool `json:"clear_existing"`
}

// SyncReport summarises one bulk sync run.
type SyncReport struct {
	RunID           string   `json:"run_id"`
	Success         bool     `json:"success"`
	TotalProducts   int      `json:"total_products"`
	IndexedProducts int      `json:"indexed_products"`
	FailedProducts  int      `json:"failed_products"`
	Suggestions     int      `json:"suggestions_added"`
	Errors          []string `json:"errors"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// SingleSyncResult is returned by POST /api/v1/sync/{sku}.
type SingleSyncResult struct {
	Success bool     `json:"success"`
	SKU     string   `json:"sku"`
	Indexed []string `json:"indexed_ids"`
	Message string   `json:"message"`
}

// SyncStatus compares the catalog source with the index.
type SyncStatus struct {
	Source struct {
		Name          string `json:"name"`
		Connected     bool   `json:"connected"`
		TotalProducts int    `json:"total_products"`
	} `json:"source"`
	Index struct {
		Documents   int   `json:"documents_count"`
		Suggestions int64 `json:"suggestions_count"`
	} `json:"index"`
	Difference int      `json:"difference"`
	Errors     []string `json:"errors,omitempty"`
}
