// Package validator checks ingestion and sync requests and reports every
// failing field at once.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
)

const (
	maxIDLength      = 512
	maxTitleLength   = 1024
	maxContentLength = 1 << 20
	maxTags          = 64
	maxMetadataKeys  = 64

	// fallbackMaxBatchSize bounds sync batches when no maximum is configured.
	fallbackMaxBatchSize = 1000
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest trims id and title in place and checks the document
// limits. Content may be empty; a document is searchable by title alone.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	req.ID = strings.TrimSpace(req.ID)
	switch {
	case req.ID == "":
		errs["id"] = "id is required"
	case utf8.RuneCountInString(req.ID) > maxIDLength:
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	}

	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.Title == "":
		errs["title"] = "title is required"
	case utf8.RuneCountInString(req.Title) > maxTitleLength:
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}

	if len(req.Content) > maxContentLength {
		errs["content"] = fmt.Sprintf("content must be at most %d bytes", maxContentLength)
	}
	if len(req.Tags) > maxTags {
		errs["tags"] = fmt.Sprintf("at most %d tags are allowed", maxTags)
	}
	for _, tag := range req.Tags {
		if strings.Contains(tag, ",") {
			errs["tags"] = "tags must not contain commas"
			break
		}
	}
	if len(req.Metadata) > maxMetadataKeys {
		errs["metadata"] = fmt.Sprintf("at most %d metadata keys are allowed", maxMetadataKeys)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// SyncOptions resolves a sync request against cfg. An omitted batch_size
// takes sync.batchSize; an explicit one must lie in 1..sync.maxBatchSize.
// clear_existing defaults to true.
func SyncOptions(req ingestion.SyncRequest, cfg config.SyncConfig) (batchSize int, clearExisting bool, err error) {
	clearExisting = true
	if req.ClearExisting != nil {
		clearExisting = *req.ClearExisting
	}
	if req.BatchSize == nil {
		return cfg.BatchSize, clearExisting, nil
	}
	limit := cfg.MaxBatchSize
	if limit <= 0 {
		limit = fallbackMaxBatchSize
	}
	batchSize = *req.BatchSize
	if batchSize < 1 || batchSize > limit {
		return 0, false, &ValidationError{Fields: map[string]string{
			"batch_size": fmt.Sprintf("batch_size must be an integer between 1 and %d", limit),
		}}
	}
	return batchSize, clearExisting, nil
}
