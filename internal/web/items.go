package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	appLog "confguide/internal/log"
	"confguide/internal/model"
	"confguide/internal/store"
)

// itemDetail is the JSON response shape for /api/items/{id}.
type itemDetail struct {
	Item     model.AgendaItem `json:"item"`
	Speakers []model.Speaker  `json:"speakers"`
	Favorite bool             `json:"favorite"`
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	item, err := s.store.Item(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		appLog.Error("api item: load failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load item")
		return
	}

	speakers, err := s.store.SpeakersByIDs(ctx, item.SpeakerIDs)
	if err != nil {
		appLog.Error("api item: speakers failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load speakers")
		return
	}
	fav, err := s.store.IsFavorite(ctx, id)
	if err != nil {
		appLog.Error("api item: favorite lookup failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load favorite")
		return
	}

	writeJSON(w, http.StatusOK, itemDetail{Item: item, Speakers: speakers, Favorite: fav})
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	speakers, err := s.store.Speakers(r.Context())
	if err != nil {
		appLog.Error("api speakers: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load speakers")
		return
	}
	writeJSON(w, http.StatusOK, speakers)
}

func (s *Server) handleSponsors(w http.ResponseWriter, r *http.Request) {
	sponsors, err := s.store.Sponsors(r.Context())
	if err != nil {
		appLog.Error("api sponsors: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load sponsors")
		return
	}
	writeJSON(w, http.StatusOK, sponsors)
}

type favoritesResponse struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.Favorites(r.Context())
	if err != nil {
		appLog.Error("api favorites: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load favorites")
		return
	}
	writeJSON(w, http.StatusOK, favoritesResponse{IDs: ids})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing item id")
		return
	}
	if err := s.store.AddFavorite(r.Context(), id); err != nil {
		appLog.Error("api favorites: add failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to add favorite")
		return
	}
	s.InvalidateCache()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.RemoveFavorite(r.Context(), id); err != nil {
		appLog.Error("api favorites: remove failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to remove favorite")
		return
	}
	s.InvalidateCache()
	w.WriteHeader(http.StatusNoContent)
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handleAddFeedback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req feedbackRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	fb := model.Feedback{ItemID: id, Rating: req.Rating, Comment: req.Comment}
	err := s.store.AddFeedback(r.Context(), &fb)
	switch {
	case errors.Is(err, store.ErrInvalidFeedback):
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "item not found")
	case err != nil:
		appLog.Error("api feedback: add failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to store feedback")
	default:
		writeJSON(w, http.StatusCreated, fb)
	}
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	list, err := s.store.Feedback(r.Context(), id)
	if err != nil {
		appLog.Error("api feedback: load failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to load feedback")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
