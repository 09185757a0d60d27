// Package syncer copies the catalog source into the search index: documents
// for full-text search plus suggestion phrases from product names.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/resilience"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxReportedErrors caps SyncReport.Errors; the counts stay exact.
const maxReportedErrors = 100

// Indexer is the part of the search engine a sync writes to.
type Indexer interface {
	IndexDocument(ctx context.Context, doc docstore.Document) error
	IndexSuggestions(ctx context.Context, text string, multiplier float64) (int, error)
	AddSuggestion(ctx context.Context, term string, weight float64) (float64, error)
	ClearAll(ctx context.Context) error
	DocumentCount(ctx context.Context) (int, error)
	SuggestionCount(ctx context.Context) (int64, error)
}

// Invalidator drops cached query results after the index changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Syncer struct {
	src     source.Source
	engine  Indexer
	cache   Invalidator
	breaker *resilience.CircuitBreaker
	cfg     config.SyncConfig
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// New builds a Syncer. cache and m may be nil.
func New(src source.Source, engine Indexer, cache Invalidator, cfg config.SyncConfig, m *metrics.Metrics) *Syncer {
	return &Syncer{
		src:    src,
		engine: engine,
		cache:  cache,
		breaker: resilience.NewCircuitBreaker("catalog-source", resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(name string, _, to resilience.State) {
				m.SetCircuitState(name, int(to))
			},
		}),
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
		logger:  slog.Default().With("component", "syncer", "source", src.Name()),
	}
}

// DocumentID pairs sku and image because one sku can have several images.
func DocumentID(p source.Product) string {
	return p.SKU + ":" + p.Image
}

// ToDocument maps a catalog row to its search document.
func ToDocument(p source.Product, sourceName string, at time.Time) docstore.Document {
	return docstore.Document{
		ID:      DocumentID(p),
		Title:   strings.TrimSpace(p.SKU + " " + p.Names),
		Content: strings.TrimSpace(p.SKU + " " + p.Names + " " + p.Image),
		Tags:    []string{p.SKU},
		Metadata: map[string]string{
			"sku":        p.SKU,
			"image":      p.Image,
			"names":      p.Names,
			"source":     sourceName,
			"indexed_at": at.UTC().Format(time.DateTime),
		},
	}
}

// fromSource runs a source call through the breaker, retrying transient
// failures.
func (s *Syncer) fromSource(ctx context.Context, op string, fn func() error) error {
	return resilience.Retry(ctx, op, resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond}, func() error {
		err := s.breaker.Execute(fn)
		if err != nil && !errors.Is(err, apperrors.ErrSourceUnavailable) && !errors.Is(err, resilience.ErrCircuitOpen) {
			return resilience.Permanent(err)
		}
		return err
	})
}

// indexProduct writes one product; the returned count is the number of
// suggestion entries touched.
func (s *Syncer) indexProduct(ctx context.Context, p source.Product) (int, error) {
	if p.SKU == "" {
		return 0, fmt.Errorf("product with image %q has no sku", p.Image)
	}
	doc := ToDocument(p, s.src.Name(), s.now())
	if err := s.engine.IndexDocument(ctx, doc); err != nil {
		s.metrics.DocIndexed(false)
		return 0, fmt.Errorf("indexing product %s: %w", p.SKU, err)
	}
	s.metrics.DocIndexed(true)

	added, err := s.engine.IndexSuggestions(ctx, p.Names, 1.0)
	if err != nil {
		s.logger.Warn("suggestion indexing failed", "sku", p.SKU, "error", err)
	}
	if _, err := s.engine.AddSuggestion(ctx, tokenizer.Normalize(p.SKU), s.cfg.SKUWeight); err != nil {
		s.logger.Warn("sku suggestion failed", "sku", p.SKU, "error", err)
	} else {
		added++
	}
	s.metrics.SuggestionsIndexed(added)
	return added, nil
}

// SyncAll pages through the source and indexes every product. Per-product
// failures are counted and reported; only a source failure stops the run.
// The run succeeds when at least one product was indexed.
func (s *Syncer) SyncAll(ctx context.Context, batchSize int, clearExisting bool) ingestion.SyncReport {
	start := s.now()
	report := ingestion.SyncReport{RunID: uuid.NewString(), Errors: []string{}}
	log := s.logger.With("run_id", report.RunID)
	fail := func(msg string) {
		if len(report.Errors) < maxReportedErrors {
			report.Errors = append(report.Errors, msg)
		}
	}
	defer func() {
		elapsed := s.now().Sub(start)
		report.DurationSeconds = math.Round(elapsed.Seconds()*100) / 100
		status := "failed"
		if report.Success {
			status = "success"
		}
		s.metrics.ObserveSync(status, elapsed)
		log.Info("sync completed",
			"indexed", report.IndexedProducts,
			"failed", report.FailedProducts,
			"duration_seconds", report.DurationSeconds,
		)
	}()

	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}
	if err := s.fromSource(ctx, "source-ping", func() error { return s.src.Ping(ctx) }); err != nil {
		fail(fmt.Sprintf("catalog source unavailable: %v", err))
		return report
	}

	if clearExisting {
		log.Info("clearing existing index")
		if err := s.engine.ClearAll(ctx); err != nil {
			fail(fmt.Sprintf("clearing index: %v", err))
		}
	}
	defer s.invalidate(ctx)

	var total int
	if err := s.fromSource(ctx, "source-count", func() (err error) {
		total, err = s.src.Count(ctx)
		return err
	}); err != nil {
		fail(fmt.Sprintf("counting products: %v", err))
		return report
	}
	report.TotalProducts = total
	if total == 0 {
		fail("no products found in catalog source")
		return report
	}
	log.Info("starting sync", "total", total, "batch_size", batchSize)

	for offset, batchNum := 0, 1; offset < total; offset, batchNum = offset+batchSize, batchNum+1 {
		if err := ctx.Err(); err != nil {
			fail(fmt.Sprintf("sync cancelled: %v", err))
			break
		}
		var batch []source.Product
		err := s.fromSource(ctx, "source-fetch", func() (err error) {
			batch, err = s.src.FetchRecords(ctx, batchSize, offset)
			return err
		})
		if err != nil {
			fail(fmt.Sprintf("fetching batch %d: %v", batchNum, err))
			break
		}
		if len(batch) == 0 {
			break
		}
		for _, p := range batch {
			added, err := s.indexProduct(ctx, p)
			if err != nil {
				report.FailedProducts++
				fail(err.Error())
				log.Error("product failed", "sku", p.SKU, "error", err)
				continue
			}
			report.IndexedProducts++
			report.Suggestions += added
		}
		if s.cfg.ProgressInterval > 0 && batchNum%s.cfg.ProgressInterval == 0 {
			log.Info("sync progress", "indexed", report.IndexedProducts, "total", total)
		}
	}
	report.Success = report.IndexedProducts > 0
	return report
}

// SyncOne indexes every row for sku. A sku with no rows is ErrDocumentNotFound.
func (s *Syncer) SyncOne(ctx context.Context, sku string) (*ingestion.SingleSyncResult, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, apperrors.Invalid("sku is required")
	}
	var products []source.Product
	err := s.fromSource(ctx, "source-fetch-sku", func() (err error) {
		products, err = s.src.FetchBySKU(ctx, sku)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "product %s not found in catalog source", sku)
	}
	defer s.invalidate(ctx)

	result := &ingestion.SingleSyncResult{SKU: sku, Indexed: []string{}}
	var errs []error
	for _, p := range products {
		if _, err := s.indexProduct(ctx, p); err != nil {
			errs = append(errs, err)
			continue
		}
		result.Indexed = append(result.Indexed, DocumentID(p))
	}
	result.Success = len(result.Indexed) > 0
	if result.Success {
		result.Message = fmt.Sprintf("product %s indexed successfully (%d of %d rows)", sku, len(result.Indexed), len(products))
	} else {
		result.Message = fmt.Sprintf("product %s failed to index: %v", sku, errors.Join(errs...))
	}
	return result, nil
}

// Status compares the source row count with the indexed document count. The
// probes run concurrently and a failing side is reported, not fatal.
func (s *Syncer) Status(ctx context.Context) ingestion.SyncStatus {
	var (
		status  ingestion.SyncStatus
		srcErr  error
		docErr  error
		suggErr error
	)
	status.Source.Name = s.src.Name()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if srcErr = s.src.Ping(gctx); srcErr != nil {
			return nil
		}
		status.Source.Connected = true
		status.Source.TotalProducts, srcErr = s.src.Count(gctx)
		return nil
	})
	g.Go(func() error {
		status.Index.Documents, docErr = s.engine.DocumentCount(gctx)
		return nil
	})
	g.Go(func() error {
		status.Index.Suggestions, suggErr = s.engine.SuggestionCount(gctx)
		return nil
	})
	g.Wait()

	for _, err := range []error{srcErr, docErr, suggErr} {
		if err != nil {
			status.Errors = append(status.Errors, err.Error())
		}
	}
	status.Difference = status.Source.TotalProducts - status.Index.Documents
	return status
}

// Source exposes the catalog for the read-only source endpoints.
func (s *Syncer) Source() source.Source {
	return s.src
}

func (s *Syncer) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("query cache invalidation failed", "error", err)
	}
}
