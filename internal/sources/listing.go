package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"radar/internal/types"
)

const arxivSite = "https://arxiv.org"

type ListingConfig struct {
	// URLs are category listing pages, e.g. https://arxiv.org/list/cs.CR/new.
	URLs       []string
	MaxResults int
	PageSize   int
	PageDelay  time.Duration
}

// ListingSource scrapes arXiv category listing pages. It sees papers the
// query API has not indexed yet, at the cost of depending on page markup.
type ListingSource struct {
	config ListingConfig
	client *http.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewListingSource(config ListingConfig, client *http.Client, logger *slog.Logger) *ListingSource {
	if config.MaxResults <= 0 {
		config.MaxResults = 50
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingSource{
		config: config,
		client: client,
		now:    time.Now,
		logger: logger.With("source", "arxiv-listing"),
	}
}

func (l *ListingSource) Name() string {
	return "arxiv-listing"
}

func (l *ListingSource) Fetch(ctx context.Context) ([]types.Envelope, error) {
	if len(l.config.URLs) == 0 {
		return nil, fmt.Errorf("no listing urls configured")
	}

	docs := make([]types.Envelope, 0, l.config.MaxResults)
	seen := make(map[string]struct{})
	requests := 0

	for _, base := range l.config.URLs {
		for skip := 0; len(docs) < l.config.MaxResults; skip += l.config.PageSize {
			if requests > 0 && l.config.PageDelay > 0 {
				select {
				case <-ctx.Done():
					return docs, ctx.Err()
				case <-time.After(l.config.PageDelay):
				}
			}
			requests++

			pageURL, err := listingPageURL(base, skip, l.config.PageSize)
			if err != nil {
				return docs, err
			}
			page, err := l.fetchDocument(ctx, pageURL)
			if err != nil {
				return docs, fmt.Errorf("listing %s: %w", base, err)
			}

			entries := 0
			page.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
				entries++
				doc := l.parseEntry(dt, dt.Next())
				if doc.ID == "" || doc.Title == "" {
					return true
				}
				if _, dup := seen[doc.ID]; dup {
					return true
				}
				seen[doc.ID] = struct{}{}
				docs = append(docs, doc)
				return len(docs) < l.config.MaxResults
			})

			l.logger.Info("Scraped listing page", "url", pageURL, "entries", entries)
			if entries < l.config.PageSize {
				break
			}
		}
	}

	return docs, nil
}

func (l *ListingSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "radar/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

func (l *ListingSource) parseEntry(dt, dd *goquery.Selection) types.Envelope {
	link := dt.Find(`a[href*="/abs/"]`).First()
	href, _ := link.Attr("href")

	id := strings.TrimPrefix(strings.TrimSpace(link.Text()), "arXiv:")
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if href != "" && !strings.HasPrefix(href, "http") {
		href = arxivSite + href
	}

	title := collapse(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := collapse(dd.Find("p.mathjax").First().Text())
	abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract:"))

	authors := make([]string, 0)
	dd.Find(".list-authors a").Each(func(i int, a *goquery.Selection) {
		if name := collapse(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	return types.Envelope{
		ID:          id,
		Title:       title,
		Body:        abstract,
		Source:      "arxiv",
		PublishedAt: l.now().UTC().Format(time.RFC3339),
		URL:         href,
		Metadata:    map[string]interface{}{"authors": authors},
	}
}

func listingPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
