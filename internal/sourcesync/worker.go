package sourcesync

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/metrics"
	"github.com/prisma-glow/deepsearch/internal/storage/models"
	"github.com/prisma-glow/deepsearch/internal/storage/sqlite"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

// Worker periodically refreshes sync-enabled catalog sources by probing their
// base URL and recording the sync timestamps. A source that fails to sync is
// retried on the next cycle; failures never disable it.
type Worker struct {
	db         *sqlite.Client
	httpClient *http.Client
	interval   time.Duration
}

func NewWorker(db *sqlite.Client, interval time.Duration, fetchTimeout time.Duration) *Worker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}

	return &Worker{
		db: db,
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
		interval: interval,
	}
}

// Run blocks until ctx is cancelled, syncing due sources every interval.
func (w *Worker) Run(ctx context.Context) {
	logger.Info("Source sync worker started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.SyncDue(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Source sync worker stopped")
			return
		case <-ticker.C:
			w.SyncDue(ctx)
		}
	}
}

// SyncDue syncs every source whose next_sync_at has passed.
func (w *Worker) SyncDue(ctx context.Context) {
	sources, err := w.db.ListSyncDueSources(ctx, time.Now())
	if err != nil {
		logger.Error("Failed to list sync-due sources", zap.Error(err))
		return
	}

	if len(sources) == 0 {
		return
	}

	logger.Info("Syncing due sources", zap.Int("count", len(sources)))

	for _, source := range sources {
		if err := w.syncSource(ctx, source); err != nil {
			metrics.SourcesSynced.WithLabelValues("error").Inc()
			logger.Warn("Source sync failed",
				zap.String("source_id", source.ID),
				zap.String("name", source.Name),
				zap.Error(err),
			)
			continue
		}
		metrics.SourcesSynced.WithLabelValues("success").Inc()
	}
}

func (w *Worker) syncSource(ctx context.Context, source models.AuthoritativeSource) error {
	if source.BaseURL == "" {
		return fmt.Errorf("source has no base url")
	}

	description, err := w.fetchDescription(ctx, source.BaseURL)
	if err != nil {
		return err
	}

	now := time.Now()
	frequency := time.Duration(source.SyncFrequencyHours) * time.Hour
	if frequency <= 0 {
		frequency = 24 * time.Hour
	}

	if err := w.db.UpdateSourceSync(ctx, source.ID, description, now, now.Add(frequency)); err != nil {
		return err
	}

	logger.Debug("Source synced",
		zap.String("source_id", source.ID),
		zap.Time("next_sync_at", now.Add(frequency)),
	)

	return nil
}

// fetchDescription probes the source landing page and extracts its title or
// meta description as a freshness signal.
func (w *Worker) fetchDescription(ctx context.Context, baseURL string) (string, error) {
	target := baseURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; deepsearch-sync/1.0)")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	if description, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && description != "" {
		return strings.TrimSpace(description), nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "", fmt.Errorf("no title or description found")
	}

	return title, nil
}
