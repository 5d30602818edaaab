package server

import (
	"net/http"
	"strconv"

	"github.com/velesk/smetka/internal/estimate"
	"github.com/velesk/smetka/internal/pricelist"
)

// defaultSuggestLimit caps suggestion results when the client does not ask
// for a specific count.
const defaultSuggestLimit = 5

// handleListPriceItems serves GET /api/price-items. With ?active=true only
// non-retired positions are returned.
func (s *Server) handleListPriceItems(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	items, err := s.cfg.Catalog.List(r.Context(), activeOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

// handleCreatePriceItem serves POST /api/price-items.
func (s *Server) handleCreatePriceItem(w http.ResponseWriter, r *http.Request) {
	var item pricelist.Item
	if err := decodeJSON(r, &item); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := item.Validate(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	created, err := s.cfg.Catalog.Create(r.Context(), item)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

// handleGetPriceItem serves GET /api/price-items/{id}.
func (s *Server) handleGetPriceItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := s.cfg.Catalog.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// handleUpdatePriceItem serves PUT /api/price-items/{id}. The ID in the path
// wins over any ID in the body.
func (s *Server) handleUpdatePriceItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var item pricelist.Item
	if err := decodeJSON(r, &item); err != nil {
		s.writeError(w, r, err)
		return
	}
	item.ID = id
	if err := item.Validate(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	updated, err := s.cfg.Catalog.Update(r.Context(), item)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// handleDeletePriceItem serves DELETE /api/price-items/{id}.
func (s *Server) handleDeletePriceItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.cfg.Catalog.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSuggestPriceItems serves GET /api/price-items/suggest?q=...&limit=N
// with semantically closest catalog positions for a free-text query,
// typically one of the unknown items reported by a parse.
func (s *Server) handleSuggestPriceItems(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Suggest == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "suggestions are not configured"})
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, r, &estimate.ValidationError{Field: "q", Reason: "query must not be empty"})
		return
	}
	limit := defaultSuggestLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 50 {
			s.writeError(w, r, &estimate.ValidationError{Field: "limit", Reason: raw + " is not a valid limit"})
			return
		}
		limit = n
	}

	suggestions, err := s.cfg.Suggest.Suggest(r.Context(), query, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, suggestions)
}
