package server

import (
	"net/http"

	"github.com/velesk/smetka/internal/estimate"
	"github.com/velesk/smetka/internal/estimate/eststore"
)

// handleListEstimates serves GET /api/estimates. Supported query parameters:
// status (draft|completed|sent|accepted|rejected) and limit.
func (s *Server) handleListEstimates(w http.ResponseWriter, r *http.Request) {
	opts := eststore.ListOptions{}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := eststore.Status(raw)
		if !status.IsValid() {
			s.writeError(w, r, &estimate.ValidationError{Field: "status", Reason: "unknown status " + raw})
			return
		}
		opts.Status = status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := parseLimit(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		opts.Limit = limit
	}

	estimates, err := s.cfg.Estimates.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, estimates)
}

// handleCreateEstimate serves POST /api/estimates: a direct write of a full
// estimate payload, bypassing the dictation workflow. Totals are recomputed
// by the store; whatever sums the client supplied are ignored.
func (s *Server) handleCreateEstimate(w http.ResponseWriter, r *http.Request) {
	var payload eststore.EstimatePayload
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validatePayload(&payload); err != nil {
		s.writeError(w, r, err)
		return
	}

	stored, err := s.cfg.Estimates.Create(r.Context(), payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, stored)
}

// handleGetEstimate serves GET /api/estimates/{id}.
func (s *Server) handleGetEstimate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stored, err := s.cfg.Estimates.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stored)
}

// handleUpdateEstimate serves PUT /api/estimates/{id}. Rooms and items are
// replaced wholesale.
func (s *Server) handleUpdateEstimate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var payload eststore.EstimatePayload
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validatePayload(&payload); err != nil {
		s.writeError(w, r, err)
		return
	}

	stored, err := s.cfg.Estimates.Update(r.Context(), id, payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stored)
}

// handleDeleteEstimate serves DELETE /api/estimates/{id}.
func (s *Server) handleDeleteEstimate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.cfg.Estimates.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validatePayload rejects payloads that cannot be persisted coherently.
func validatePayload(payload *eststore.EstimatePayload) error {
	if payload.Status == "" {
		payload.Status = eststore.StatusDraft
	}
	if !payload.Status.IsValid() {
		return &estimate.ValidationError{Field: "status", Reason: "unknown status " + string(payload.Status)}
	}
	for _, room := range payload.Rooms {
		if room.Name == "" {
			return &estimate.ValidationError{Field: "room", Reason: "room name must not be empty"}
		}
		if room.Area < 0 {
			return &estimate.ValidationError{Field: "area", Reason: "area must not be negative"}
		}
		for _, item := range room.Items {
			if item.Name == "" {
				return &estimate.ValidationError{Field: "name", Reason: "item name must not be empty"}
			}
			if item.Quantity < 0 {
				return &estimate.ValidationError{Field: "quantity", Reason: "quantity must not be negative"}
			}
			if item.Price < 0 {
				return &estimate.ValidationError{Field: "price", Reason: "price must not be negative"}
			}
		}
	}
	return nil
}

// parseLimit parses a positive integer limit query value.
func parseLimit(raw string) (int, error) {
	var limit int
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, &estimate.ValidationError{Field: "limit", Reason: raw + " is not a number"}
		}
		limit = limit*10 + int(c-'0')
		if limit > 10000 {
			return 0, &estimate.ValidationError{Field: "limit", Reason: "limit too large"}
		}
	}
	if limit == 0 {
		return 0, &estimate.ValidationError{Field: "limit", Reason: "limit must be positive"}
	}
	return limit, nil
}
