// Package feed serves the agent's operational surface: health, status and
// queue depth, manual triggers, rejection lookups and the digest feeds.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/feeds"

	"radar/internal/cache"
	"radar/internal/queue"
	"radar/internal/status"
	"radar/internal/storage"
	"radar/internal/types"
)

type Config struct {
	Name          string
	Port          string
	BaseURL       string
	FeedSize      int
	CacheTTL      time.Duration
	PendingTopic  string
	AnalyzedTopic string
}

// Publisher sends a control message to every listening consumer.
type Publisher interface {
	Publish(ctx context.Context, msg string) error
}

type Deps struct {
	Status     *status.Status
	Queue      queue.Queue
	Rejections storage.RejectionStore
	Digests    storage.DigestStore
	Publisher  Publisher
	Logger     *slog.Logger
}

type Server struct {
	config Config
	deps   Deps
	feeds  *cache.Cache[string]
	logger *slog.Logger
	server *http.Server
}

func New(config Config, deps Deps) *Server {
	if config.Name == "" {
		config.Name = "radar"
	}
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:" + config.Port
	}
	if config.FeedSize <= 0 {
		config.FeedSize = 20
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Minute
	}
	if config.PendingTopic == "" {
		config.PendingTopic = queue.PendingTopic
	}
	if config.AnalyzedTopic == "" {
		config.AnalyzedTopic = queue.AnalyzedTopic
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config: config,
		deps:   deps,
		feeds:  NewCache(cache.CacheConfig{TTL: config.CacheTTL}),
		logger: logger.With("component", "server"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/trigger", s.handleTrigger)
	r.Get("/rejections/{id}", s.handleRejection)
	r.Get("/digests", s.handleDigests)
	r.Get("/digest.rss", s.handleFeed(TypeRSS))
	r.Get("/digest.atom", s.handleFeed(TypeAtom))
	r.Get("/digest.json", s.handleFeed(TypeJSON))
	return r
}

// Start listens in the background; it returns once the port is bound.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", ":"+s.config.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Port, err)
	}

	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("Server listening", "addr", listener.Addr().String())
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Server shutdown error", "error", err)
	}
	return nil
}

// InvalidateFeeds drops rendered feeds so the next request sees new digests.
func (s *Server) InvalidateFeeds() {
	s.feeds.InvalidatePrefix("digest:")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"name":   s.config.Name,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type statusResponse struct {
	State           status.State `json:"state"`
	Pending         int64        `json:"pending"`
	Analyzed        int64        `json:"analyzed"`
	Rejections      int          `json:"rejections"`
	LastDocID       string       `json:"last_doc_id,omitempty"`
	LastProcessedAt *time.Time   `json:"last_processed_at,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := statusResponse{State: s.deps.Status.Current(ctx)}

	var err error
	if resp.Pending, err = s.deps.Queue.Len(ctx, s.config.PendingTopic); err != nil {
		s.fail(w, "queue length", err)
		return
	}
	if resp.Analyzed, err = s.deps.Queue.Len(ctx, s.config.AnalyzedTopic); err != nil {
		s.fail(w, "queue length", err)
		return
	}
	if resp.Rejections, err = s.deps.Rejections.Count(ctx); err != nil {
		s.fail(w, "rejection count", err)
		return
	}

	if progress, err := s.deps.Status.LastProcessed(ctx); err == nil && progress.DocID != "" {
		resp.LastDocID = progress.DocID
		at := progress.At
		resp.LastProcessedAt = &at
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	kind := status.ParseKind(r.URL.Query().Get("kind"))
	if err := s.deps.Publisher.Publish(r.Context(), string(kind)); err != nil {
		s.fail(w, "publish trigger", err)
		return
	}
	s.logger.Info("Trigger published", "kind", kind)
	writeJSON(w, http.StatusAccepted, map[string]string{"triggered": string(kind)})
}

func (s *Server) handleRejection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rejection, err := s.deps.Rejections.Get(r.Context(), id)
	if err != nil {
		s.fail(w, "rejection lookup", err)
		return
	}
	if rejection == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no rejection for " + id})
		return
	}

	writeJSON(w, http.StatusOK, rejection)
}

func (s *Server) handleDigests(w http.ResponseWriter, r *http.Request) {
	limit := s.config.FeedSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	digests, err := s.deps.Digests.ListRecent(r.Context(), limit)
	if err != nil {
		s.fail(w, "list digests", err)
		return
	}
	writeJSON(w, http.StatusOK, digests)
}

func (s *Server) handleFeed(feedType string) http.HandlerFunc {
	contentType := map[string]string{
		TypeRSS:  "application/rss+xml; charset=utf-8",
		TypeAtom: "application/atom+xml; charset=utf-8",
		TypeJSON: "application/feed+json; charset=utf-8",
	}[feedType]

	return func(w http.ResponseWriter, r *http.Request) {
		key := NewCacheKey(feedType, s.config.FeedSize).String()
		body, ok := s.feeds.Get(key)
		if !ok {
			digests, err := s.deps.Digests.ListRecent(r.Context(), s.config.FeedSize)
			if err != nil {
				s.fail(w, "list digests", err)
				return
			}

			body, err = render(s.buildFeed(digests), feedType)
			if err != nil {
				s.fail(w, "render "+feedType, err)
				return
			}
			s.feeds.SetWithTTL(key, body, 0)
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=300")
		fmt.Fprint(w, body)
	}
}

func render(feed *feeds.Feed, feedType string) (string, error) {
	switch feedType {
	case TypeAtom:
		return feed.ToAtom()
	case TypeJSON:
		return feed.ToJSON()
	default:
		return feed.ToRss()
	}
}

func (s *Server) buildFeed(digests []types.Digest) *feeds.Feed {
	items := make([]*feeds.Item, 0, len(digests))
	for _, d := range digests {
		description := d.Summary
		if d.Caveat != "" {
			description += "\n\n_" + d.Caveat + "_"
		}
		items = append(items, &feeds.Item{
			Id:          d.ID,
			Title:       d.Headline,
			Link:        &feeds.Link{Href: s.config.BaseURL + "/digests#" + d.ID},
			Description: description,
			Created:     d.CreatedAt,
		})
	}

	updated := time.Now().UTC()
	if len(digests) > 0 {
		updated = digests[0].CreatedAt
	}

	return &feeds.Feed{
		Title:       fmt.Sprintf("%s threat digest", s.config.Name),
		Link:        &feeds.Link{Href: s.config.BaseURL + "/"},
		Description: "Curated adversarial ML research digests",
		Author:      &feeds.Author{Name: s.config.Name},
		Created:     updated,
		Items:       items,
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.logger.Error("Request failed", "op", op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
