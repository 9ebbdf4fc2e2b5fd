package server

import (
	"net/http"
)

type dayRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleListDays(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	days, err := s.store.GetDays(r.Context(), tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleAddDay(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req dayRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	day, err := s.store.AddDay(r.Context(), tripID, req.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, day)
}

func (s *Server) handleUpdateDayTitle(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := pathInt(r, "day")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req dayRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	day, err := s.store.UpdateDayTitle(r.Context(), tripID, int(n), req.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// handleRemoveDay deletes a day, returning its activities to the backlog and
// renumbering the days after it.
func (s *Server) handleRemoveDay(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := pathInt(r, "day")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.RemoveDay(r.Context(), tripID, int(n)); err != nil {
		s.writeError(w, r, err)
		return
	}
	days, err := s.store.GetDays(r.Context(), tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "days": days})
}
