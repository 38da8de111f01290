package sources

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"radar/internal/logging"
	"radar/internal/queue"
	"radar/internal/types"
)

const (
	DefaultArxivURL = "http://export.arxiv.org/api/query"
	arxivPageSize   = 100
)

type ArxivConfig struct {
	BaseURL    string
	Query      string
	MaxResults int
	DaysBack   int
	// PageDelay is the pause between API pages; arXiv asks for three seconds.
	PageDelay time.Duration
}

// ArxivSource pulls recent papers from the arXiv query API and turns them into
// envelopes for the pending queue.
type ArxivSource struct {
	config ArxivConfig
	parser *gofeed.Parser
	now    func() time.Time
	logger *slog.Logger
}

func NewArxivSource(config ArxivConfig, logger *slog.Logger) *ArxivSource {
	if config.BaseURL == "" {
		config.BaseURL = DefaultArxivURL
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 50
	}
	if config.DaysBack <= 0 {
		config.DaysBack = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	parser := gofeed.NewParser()
	parser.UserAgent = "radar/1.0 (+https://arxiv.org/help/api)"

	return &ArxivSource{
		config: config,
		parser: parser,
		now:    time.Now,
		logger: logger.With("source", "arxiv"),
	}
}

func (a *ArxivSource) Name() string {
	return "arxiv"
}

// Fetch returns papers newest first, stopping at MaxResults or at the first
// paper older than DaysBack.
func (a *ArxivSource) Fetch(ctx context.Context) ([]types.Envelope, error) {
	cutoff := a.now().Add(-time.Duration(a.config.DaysBack) * 24 * time.Hour)
	docs := make([]types.Envelope, 0, a.config.MaxResults)

	for start := 0; len(docs) < a.config.MaxResults; {
		if start > 0 && a.config.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return docs, ctx.Err()
			case <-time.After(a.config.PageDelay):
			}
		}

		pageSize := min(arxivPageSize, a.config.MaxResults-len(docs))
		a.logger.Info("Fetching arXiv page", "start", start, "size", pageSize)

		feed, err := a.parser.ParseURLWithContext(a.pageURL(start, pageSize), ctx)
		if err != nil {
			return docs, fmt.Errorf("failed to fetch arXiv page at %d: %w", start, err)
		}
		if len(feed.Items) == 0 {
			break
		}

		for _, item := range feed.Items {
			doc := a.convert(item)
			if item.PublishedParsed != nil && item.PublishedParsed.Before(cutoff) {
				a.logger.Info("Reached date limit", "fetched", len(docs))
				return docs, nil
			}
			if doc.ID == "" || doc.Title == "" {
				a.logger.Warn("Skipping arXiv entry without id or title", "guid", item.GUID)
				continue
			}
			docs = append(docs, doc)
			if len(docs) >= a.config.MaxResults {
				break
			}
		}
		start += len(feed.Items)
	}

	return docs, nil
}

func (a *ArxivSource) pageURL(start, size int) string {
	params := url.Values{}
	params.Set("search_query", a.config.Query)
	params.Set("start", fmt.Sprint(start))
	params.Set("max_results", fmt.Sprint(size))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	return a.config.BaseURL + "?" + params.Encode()
}

func (a *ArxivSource) convert(item *gofeed.Item) types.Envelope {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	// http://arxiv.org/abs/2401.00001v1 -> 2401.00001v1
	id = path.Base(strings.TrimRight(id, "/"))
	if id == "." || id == "/" {
		id = ""
	}

	published := ""
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC().Format(time.RFC3339)
	}

	authors := make([]string, 0, len(item.Authors))
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			authors = append(authors, author.Name)
		}
	}

	metadata := map[string]interface{}{
		"authors": authors,
	}
	if len(item.Categories) > 0 {
		metadata["categories"] = item.Categories
	}

	return types.Envelope{
		ID:          id,
		Title:       collapse(stripHTML(item.Title)),
		Body:        collapse(stripHTML(item.Description)),
		Source:      "arxiv",
		PublishedAt: published,
		URL:         item.Link,
		Metadata:    metadata,
	}
}

// Source yields candidate papers for the pending queue.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]types.Envelope, error)
}

// Ingest fetches papers and appends each to topic. It returns how many were
// queued; a failed append stops the run.
func Ingest(ctx context.Context, src Source, q queue.Queue, topic string, audit *logging.Audit, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", src.Name())

	docs, err := src.Fetch(ctx)
	if err != nil && len(docs) == 0 {
		audit.Event(ctx, slog.LevelError, "INGESTION_ERROR", "", "error", err.Error())
		return 0, err
	}
	if err != nil {
		logger.Warn("Partial fetch, queueing what arrived", "count", len(docs), "error", err)
	}

	queued := 0
	for _, doc := range docs {
		values, encErr := queue.Encode(doc)
		if encErr != nil {
			logger.Warn("Skipping unencodable paper", "id", doc.ID, "error", encErr)
			continue
		}
		if _, appendErr := q.Append(ctx, topic, values); appendErr != nil {
			audit.Event(ctx, slog.LevelError, "INGESTION_ERROR", "", "doc_id", doc.ID, "error", appendErr.Error())
			return queued, fmt.Errorf("failed to queue %s: %w", doc.ID, appendErr)
		}
		audit.Event(ctx, slog.LevelInfo, "JOB_PUBLISHED", doc.Title, "doc_id", doc.ID)
		logger.Debug("Queued paper", "id", doc.ID, "title", doc.Title)
		queued++
	}

	logger.Info("Ingestion complete", "queued", queued)
	return queued, nil
}

var htmlStripper = bluemonday.StrictPolicy()

// stripHTML removes HTML tags and decodes entities from text
func stripHTML(s string) string {
	s = htmlStripper.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
