// Package web serves the agenda JSON API, the kiosk page and the last kiosk
// capture.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	"confguide/internal/config"
	appLog "confguide/internal/log"
	"confguide/internal/model"
	"confguide/internal/social"
)

// Store is the persistence the handlers read and write.
type Store interface {
	Items(ctx context.Context) ([]model.AgendaItem, error)
	FavoriteItems(ctx context.Context) ([]model.AgendaItem, error)
	Item(ctx context.Context, id string) (model.AgendaItem, error)
	Speakers(ctx context.Context) ([]model.Speaker, error)
	SpeakersByIDs(ctx context.Context, ids []string) ([]model.Speaker, error)
	Sponsors(ctx context.Context) ([]model.Sponsor, error)

	AddFavorite(ctx context.Context, itemID string) error
	RemoveFavorite(ctx context.Context, itemID string) error
	Favorites(ctx context.Context) ([]string, error)
	IsFavorite(ctx context.Context, itemID string) (bool, error)

	AddFeedback(ctx context.Context, fb *model.Feedback) error
	Feedback(ctx context.Context, itemID string) ([]model.Feedback, error)
}

// Refresher runs the sync pipeline on demand.
type Refresher interface {
	Trigger() error
}

// SocialFeed is the hashtag feed shown on the kiosk.
type SocialFeed interface {
	Recent(ctx context.Context, limit int) ([]social.Post, error)
}

// Options wires a Server. Refresher and Social are optional.
type Options struct {
	Config    *config.Config
	Store     Store
	Refresher Refresher
	Social    SocialFeed
	Now       func() time.Time
}

// Server provides the HTTP API over the stored snapshot.
type Server struct {
	cfgMu sync.RWMutex
	cfg   *config.Config
	loc   *time.Location

	store   Store
	refresh Refresher
	social  SocialFeed
	now     func() time.Time
	mux     *http.ServeMux

	// Encoded organizer responses keyed by route, parameters and reference.
	responses *otter.Cache[string, []byte]
}

const responseCacheTTL = 30 * time.Second

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		store:   opts.Store,
		refresh: opts.Refresher,
		social:  opts.Social,
		now:     now,
		mux:     http.NewServeMux(),
		responses: otter.Must(&otter.Options[string, []byte]{
			MaximumSize:      512,
			ExpiryCalculator: otter.ExpiryWriting[string, []byte](responseCacheTTL),
		}),
	}
	s.UpdateConfig(cfg)
	s.registerRoutes()
	return s
}

// UpdateConfig swaps in a reloaded configuration and drops cached responses.
func (s *Server) UpdateConfig(cfg *config.Config) {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("invalid timezone; using UTC", err, "timezone", cfg.Timezone)
	}

	s.cfgMu.Lock()
	s.cfg = cfg
	s.loc = loc
	s.cfgMu.Unlock()

	s.InvalidateCache()
}

// InvalidateCache drops every cached organizer response.
func (s *Server) InvalidateCache() {
	s.responses.InvalidateAll()
}

func (s *Server) config() (*config.Config, *time.Location) {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg, s.loc
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.basicAuthMiddleware(s.mux)
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic
// Auth whenever the current config enables it.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg, _ := s.config()
		if r.URL.Path == "/health" || !cfg.BasicAuthEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, cfg.BasicAuth.Username) || !secureCompare(p, cfg.BasicAuth.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="confguide", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves s on listen until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, listen string, s *Server) error {
	cfg, _ := s.config()
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen, "basic_auth", cfg.BasicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("GET /api/now", s.handleNow)
	s.mux.HandleFunc("GET /api/next", s.handleNext)

	s.mux.HandleFunc("GET /api/items/{id}", s.handleItem)
	s.mux.HandleFunc("GET /api/items/{id}/feedback", s.handleListFeedback)
	s.mux.HandleFunc("POST /api/items/{id}/feedback", s.handleAddFeedback)
	s.mux.HandleFunc("GET /api/speakers", s.handleSpeakers)
	s.mux.HandleFunc("GET /api/sponsors", s.handleSponsors)

	s.mux.HandleFunc("GET /api/favorites", s.handleFavorites)
	s.mux.HandleFunc("POST /api/favorites/{id}", s.handleAddFavorite)
	s.mux.HandleFunc("DELETE /api/favorites/{id}", s.handleRemoveFavorite)

	s.mux.HandleFunc("GET /api/social", s.handleSocial)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /kiosk", s.handleKiosk)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
