package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rcliao/memos-daily-review/internal/engine"
	"github.com/rcliao/memos-daily-review/internal/model"
)

// handleGetDeck serves the current deck for the persisted settings, or the
// deck named by the range, count and batch query parameters.
func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day := q.Get("day")

	if q.Get("batch") == "" && q.Get("range") == "" && q.Get("count") == "" {
		res, err := s.engine.Current(r.Context(), day)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	settings := s.engine.Settings(r.Context())
	req := engine.Request{Day: day, TimeRange: settings.TimeRange, Count: settings.Count}
	if v := q.Get("range"); v != "" {
		req.TimeRange = model.TimeRange(v)
	}
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "count must be an integer")
			return
		}
		req.Count = n
	}
	if v := q.Get("batch"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "batch must be an integer")
			return
		}
		req.Batch = n
	}

	res, err := s.engine.GetDeck(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Shuffle(r.Context(), r.URL.Query().Get("day"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Settings(r.Context()))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if settings.TimeRange == "" {
		settings.TimeRange = model.RangeAll
	}

	res, err := s.engine.OnSettingsChanged(r.Context(), settings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"settings": settings,
		"deck":     res,
	})
}

func (s *Server) handleViewed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Day string `json:"day"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid json")
			return
		}
	}

	entry, err := s.engine.MarkViewed(r.Context(), id, req.Day)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             id,
		"last_shown_day": entry.LastShownDay,
		"shown_count":    entry.ShownCount,
	})
}

func (s *Server) handleMemoEdited(w http.ResponseWriter, r *http.Request) {
	var raw model.RawMemo
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		badRequest(w, "invalid json")
		return
	}
	raw.ID = chi.URLParam(r, "id")

	if err := s.engine.MemoEdited(r.Context(), raw); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMemoDeleted(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.MemoDeleted(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshPool(w http.ResponseWriter, r *http.Request) {
	tr := model.TimeRange(r.URL.Query().Get("range"))
	if tr == "" {
		tr = s.engine.Settings(r.Context()).TimeRange
	}

	memos, err := s.engine.RefreshPool(r.Context(), tr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"time_range": tr,
		"memos":      len(memos),
	})
}
