package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bryan-buckman/tripahead/internal/database"
	"github.com/bryan-buckman/tripahead/internal/model"
	"github.com/bryan-buckman/tripahead/internal/opml"
	"go.uber.org/zap"
)

func (s *Server) handleExportOutline(w http.ResponseWriter, r *http.Request) {
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
	days, err := s.store.GetDays(r.Context(), tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	activities, err := s.store.GetActivities(r.Context(), tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := opml.Export(trip, days, activities)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("export outline: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=trip-%d.opml", tripID))
	w.Write(data)
}

// handleImportOutline adds an uploaded outline to a trip. Day sections become
// new days after the existing ones; sections past the trip's capacity, their
// activities and activities that fail validation are skipped and counted.
// Nothing is written when the import fails.
func (s *Server) handleImportOutline(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathInt(r, "tripID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.store.GetTrip(r.Context(), tripID); err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	file, _, err := r.FormFile("opml")
	if err != nil {
		s.writeError(w, r, &model.ValidationError{Missing: []string{"opml"}, Message: "no file provided"})
		return
	}
	defer file.Close()

	doc, err := opml.Parse(file)
	if err != nil {
		s.writeError(w, r, &model.ValidationError{Message: err.Error()})
		return
	}

	res, err := s.importOutline(r.Context(), tripID, doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Status: "ok", ImportResult: res, Total: len(doc.Entries)})
}

type importResponse struct {
	Status string `json:"status"`
	database.ImportResult
	Total int `json:"total"`
}

// importOutline places each entry on its section's day and hands the lot to
// the store. Entries whose attributes could not be read count as skipped.
func (s *Server) importOutline(ctx context.Context, tripID int64, doc opml.Document) (database.ImportResult, error) {
	var (
		inputs     []model.ActivityInput
		unreadable int
	)
	for _, e := range doc.Entries {
		if e.Err != nil {
			s.log.Debug("outline entry skipped", zap.String("title", e.Activity.Title), zap.Error(e.Err))
			unreadable++
			continue
		}
		in := e.Activity
		if e.Day > 0 {
			p := model.OnDay(e.Day)
			in.Status, in.Day = p.Status, p.Day
		}
		inputs = append(inputs, in)
	}

	res, err := s.store.ImportOutline(ctx, tripID, doc.Days, inputs)
	if err != nil {
		return database.ImportResult{}, fmt.Errorf("import outline into trip %d: %w", tripID, err)
	}
	res.Skipped += unreadable
	if res.DaysSkipped > 0 {
		s.log.Info("outline days over capacity skipped",
			zap.Int64("trip_id", tripID), zap.Int("days_skipped", res.DaysSkipped))
	}
	return res, nil
}
