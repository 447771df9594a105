package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"confguide/internal/agenda"
	appLog "confguide/internal/log"
	"confguide/internal/model"
	"confguide/internal/pipeline"
	"confguide/internal/refresh"
)

//go:embed templates/kiosk.html
var templateFS embed.FS

var kioskTmpl = template.Must(template.ParseFS(templateFS, "templates/kiosk.html"))

const kioskPosts = 5

type kioskItem struct {
	Topic    string
	Location string
	Speakers string
}

type kioskGroup struct {
	Span  string
	Items []kioskItem
}

type kioskPage struct {
	Event   string
	Clock   string
	Hashtag string
	Now     []kioskGroup
	Next    []kioskGroup
	Posts   []kioskPost
}

type kioskPost struct {
	Author string
	Text   string
}

// handleKiosk renders the now/next board captured for signage displays.
func (s *Server) handleKiosk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, loc := s.config()

	at, err := s.reference(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := s.store.Items(ctx)
	if err != nil {
		appLog.Error("kiosk: load items failed", err)
		http.Error(w, "failed to load agenda", http.StatusInternalServerError)
		return
	}
	speakers, err := s.store.Speakers(ctx)
	if err != nil {
		appLog.Error("kiosk: load speakers failed", err)
		http.Error(w, "failed to load speakers", http.StatusInternalServerError)
		return
	}
	names := make(map[string]string, len(speakers))
	for _, sp := range speakers {
		names[sp.ID] = sp.Name
	}

	page := kioskPage{
		Event:   cfg.Event.Name,
		Clock:   at.In(loc).Format("Mon Jan 2 · 15:04 MST"),
		Hashtag: cfg.Event.Hashtag,
		Now:     kioskGroups(agenda.HappeningNow(items, at), names, loc),
		Next:    kioskGroups(agenda.UpNext(items, at, cfg.LookAheadDuration(), cfg.LookBeyondDuration()), names, loc),
		Posts:   s.kioskPosts(ctx),
	}
	if page.Event == "" {
		page.Event = "Agenda"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := kioskTmpl.Execute(w, page); err != nil {
		appLog.Error("kiosk: render failed", err)
	}
}

func kioskGroups(groups []agenda.Group, names map[string]string, loc *time.Location) []kioskGroup {
	out := make([]kioskGroup, 0, len(groups))
	for _, g := range groups {
		kg := kioskGroup{
			Span:  g.Range.StartTime().In(loc).Format("15:04") + " – " + g.Range.EndTime().In(loc).Format("15:04"),
			Items: make([]kioskItem, 0, len(g.Items)),
		}
		for _, it := range g.Items {
			kg.Items = append(kg.Items, kioskItem{
				Topic:    it.Topic,
				Location: it.Location,
				Speakers: speakerNames(it, names),
			})
		}
		out = append(out, kg)
	}
	return out
}

// speakerNames joins the known speaker names of it; unknown IDs are left out.
func speakerNames(it model.AgendaItem, names map[string]string) string {
	parts := make([]string, 0, len(it.SpeakerIDs))
	for _, id := range it.SpeakerIDs {
		if n := names[id]; n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, ", ")
}

// kioskPosts never fails the page; the feed is decoration.
func (s *Server) kioskPosts(ctx context.Context) []kioskPost {
	if s.social == nil {
		return nil
	}
	posts, err := s.social.Recent(ctx, kioskPosts)
	if err != nil {
		appLog.Warn("kiosk: social feed unavailable", "error", err.Error())
		return nil
	}
	out := make([]kioskPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, kioskPost{Author: p.Author, Text: p.Text})
	}
	return out
}

// handleSocial returns recent hashtag posts.
//
// GET /api/social?limit=20
func (s *Server) handleSocial(w http.ResponseWriter, r *http.Request) {
	if s.social == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	posts, err := s.social.Recent(r.Context(), parseIntDefault(r.URL.Query().Get("limit"), 20))
	if err != nil {
		appLog.Error("api social: feed failed", err)
		writeError(w, http.StatusBadGateway, "social feed unavailable")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

type refreshResponse struct {
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// handleRefresh runs the sync pipeline now. Partial failures still return
// 200 with the joined error text, since whatever loaded was stored. When no
// session source loaded nothing was stored and the answer is 502.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if s.refresh == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}
	err := s.refresh.Trigger()
	if errors.Is(err, refresh.ErrBusy) {
		writeError(w, http.StatusConflict, "refresh already running")
		return
	}
	resp := refreshResponse{FinishedAt: s.now()}
	if errors.Is(err, pipeline.ErrAllSourcesFailed) {
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	s.InvalidateCache()

	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePreview serves the last kiosk capture from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	cfg, _ := s.config()
	// http.ServeFile answers 404 for a missing capture.
	http.ServeFile(w, r, cfg.Kiosk.Output)
}
