package server

import (
	"net/http"
	"strconv"

	"github.com/bryan-buckman/tripahead/internal/model"
)

// --- Users ---

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in model.UserInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.store.CreateUser(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.GetUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// --- Trips ---

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var in model.TripInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	trip, err := s.store.CreateTrip(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, r, &model.ValidationError{Message: "invalid user_id"})
			return
		}
		userID = &id
	}
	trips, err := s.store.GetTrips(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trips)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trip, err := s.store.GetTrip(r.Context(), tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleUpdateTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch model.TripPatch
	if err := decodeJSON(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	current, err := s.store.GetTrip(r.Context(), tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trip, err := s.store.UpdateTrip(r.Context(), tripID, patch.Apply(current))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteTrip(r.Context(), tripID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w)
}
