package server

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bryan-buckman/tripahead/internal/model"
)

// minQueryLength matches the planner's search threshold.
const minQueryLength = 2

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	activities, err := s.store.GetActivities(r.Context(), tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func (s *Server) handleSearchActivities(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if utf8.RuneCountInString(query) < minQueryLength {
		s.writeError(w, r, &model.ValidationError{Message: "query must be at least 2 characters"})
		return
	}
	activities, err := s.store.SearchActivities(r.Context(), tripID, query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in model.ActivityInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.store.CreateActivity(r.Context(), tripID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// handleUpdateActivity replaces an activity's fields. Placement is changed
// only through handleMoveActivity.
func (s *Server) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	activityID, err := pathInt(r, "activityID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in model.ActivityInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.Status, in.Day = "", nil
	a, err := s.store.UpdateActivity(r.Context(), activityID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleMoveActivity(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	activityID, err := pathInt(r, "activityID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var p model.Placement
	if err := decodeJSON(r, &p, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := p.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.store.MoveActivity(r.Context(), tripID, activityID, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	activityID, err := pathInt(r, "activityID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteActivity(r.Context(), tripID, activityID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w)
}
