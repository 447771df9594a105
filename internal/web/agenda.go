package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"confguide/internal/agenda"
	appLog "confguide/internal/log"
	"confguide/internal/model"
)

var errBadParam = errors.New("bad parameter")

// reference resolves the "at" query parameter. It accepts RFC 3339 or epoch
// milliseconds. Without it the current time truncated to the minute is used,
// so all requests within that minute share one cached response.
func (s *Server) reference(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return s.now().Truncate(time.Minute), nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: at=%q", errBadParam, raw)
	}
	return t, nil
}

func durationParam(r *http.Request, name string, def time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errBadParam, name, raw)
	}
	return d, nil
}

// cached serves key from the response cache or computes, encodes and
// stores it.
func (s *Server) cached(w http.ResponseWriter, key string, compute func() (any, error)) {
	if body, ok := s.responses.GetIfPresent(key); ok {
		writeRawJSON(w, body)
		return
	}

	v, err := compute()
	if err != nil {
		appLog.Error("api: load failed", err, "key", key)
		writeError(w, http.StatusInternalServerError, "failed to load agenda")
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		appLog.Error("api: encode failed", err, "key", key)
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	s.responses.Set(key, body)
	writeRawJSON(w, body)
}

type agendaResponse struct {
	Timezone string         `json:"timezone"`
	Entries  []agenda.Entry `json:"entries"`
}

// handleAgenda returns the organized agenda.
//
// GET /api/agenda?favorites=1
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	favorites := r.URL.Query().Get("favorites") == "1"
	_, loc := s.config()

	key := fmt.Sprintf("agenda|fav=%t|tz=%s", favorites, loc)
	s.cached(w, key, func() (any, error) {
		var (
			items []model.AgendaItem
			err   error
		)
		if favorites {
			items, err = s.store.FavoriteItems(r.Context())
		} else {
			items, err = s.store.Items(r.Context())
		}
		if err != nil {
			return nil, err
		}
		return agendaResponse{Timezone: loc.String(), Entries: agenda.Organize(items, loc)}, nil
	})
}

type groupsResponse struct {
	At     time.Time      `json:"at"`
	Groups []agenda.Group `json:"groups"`
}

// handleNow returns the sessions running at the reference time.
//
// GET /api/now?at=2025-06-12T09:30:00Z
func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	at, err := s.reference(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("now|%d", at.UnixMilli())
	s.cached(w, key, func() (any, error) {
		items, err := s.store.Items(r.Context())
		if err != nil {
			return nil, err
		}
		return groupsResponse{At: at, Groups: agenda.HappeningNow(items, at)}, nil
	})
}

// handleNext returns the upcoming session groups.
//
// GET /api/next?at=...&ahead=2h&beyond=1h
//   - ahead:  how far after at a session may start (default look_ahead)
//   - beyond: how long after the first upcoming group to keep (default look_beyond)
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	cfg, _ := s.config()
	at, err := s.reference(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ahead, err := durationParam(r, "ahead", cfg.LookAheadDuration())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	beyond, err := durationParam(r, "beyond", cfg.LookBeyondDuration())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("next|%d|%d|%d", at.UnixMilli(), ahead, beyond)
	s.cached(w, key, func() (any, error) {
		items, err := s.store.Items(r.Context())
		if err != nil {
			return nil, err
		}
		return groupsResponse{At: at, Groups: agenda.UpNext(items, at, ahead, beyond)}, nil
	})
}
