package search

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/envlink/pkg/httputil"
)

// Handlers exposes the search service over HTTP
type Handlers struct {
	service *Service
	log     *logrus.Entry
}

// NewHandlers creates HTTP handlers for search
func NewHandlers(service *Service) *Handlers {
	return &Handlers{
		service: service,
		log:     logrus.WithField("component", "search"),
	}
}

// RegisterRoutes registers search routes on the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/search", h.handleSearch).Methods("GET")
	router.HandleFunc("/api/v1/search/suggestions", h.handleSuggestions).Methods("GET")
}

// handleSearch handles GET /api/v1/search?q=...&limit=...&offset=...
func (h *Handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := httputil.ParseQueryString(r, "q", "")
	if !httputil.RequireNonEmpty(w, query, "q") {
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteValidationError(w, "limit must be an integer")
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteValidationError(w, "offset must be an integer")
		return
	}

	start := time.Now()
	resp, err := h.service.Search(r.Context(), Request{
		Query:  query,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidQuery) {
			httputil.WriteValidationError(w, err.Error())
			return
		}
		h.log.WithError(err).WithField("query", query).Error("search failed")
		httputil.WriteInternalError(w, err)
		return
	}

	// History powers suggestions; a failed write never fails the search.
	if err := h.service.RecordSearch(r.Context(), query, len(resp.Results), time.Since(start)); err != nil {
		h.log.WithError(err).Debug("failed to record search history")
	}

	httputil.WriteSuccess(w, resp)
}

// handleSuggestions handles GET /api/v1/search/suggestions?prefix=...&limit=...
func (h *Handlers) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	prefix := httputil.ParseQueryString(r, "prefix", "")
	if !httputil.RequireNonEmpty(w, prefix, "prefix") {
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 5)
	if err != nil {
		httputil.WriteValidationError(w, "limit must be an integer")
		return
	}

	suggestions, err := h.service.GetSuggestions(r.Context(), prefix, limit)
	if err != nil {
		h.log.WithError(err).Error("failed to get suggestions")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"suggestions": suggestions,
	})
}
