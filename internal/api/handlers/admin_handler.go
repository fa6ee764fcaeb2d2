package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/api/response"
	"github.com/reunite/hub/internal/api/validation"
	"github.com/reunite/hub/internal/models"
)

// AdminService defines the admin operations used by the handler.
type AdminService interface {
	Stats(ctx context.Context) (*models.Stats, error)
	ListMatches(ctx context.Context, filters *models.ListMatchesFilters) (*models.ListMatchesResponse, error)
	VerifyMatch(ctx context.Context, id uuid.UUID, verified bool, by uuid.UUID) (*models.Match, error)
	LocationHistory(ctx context.Context, caseID uuid.UUID, limit int) ([]models.LocationHistoryEntry, error)
}

// CaseCloser marks cases found.
type CaseCloser interface {
	MarkFound(ctx context.Context, id uuid.UUID) (*models.Case, error)
}

// AdminHandler handles the admin dashboard routes.
type AdminHandler struct {
	service AdminService
	cases   CaseCloser
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(service AdminService, cases CaseCloser) *AdminHandler {
	return &AdminHandler{service: service, cases: cases}
}

// Stats handles GET /v1/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, stats)
}

// MarkFound handles POST /v1/admin/cases/{id}/found.
func (h *AdminHandler) MarkFound(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	c, err := h.cases.MarkFound(r.Context(), id)
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, c)
}

// LocationHistory handles GET /v1/admin/cases/{id}/location-history.
func (h *AdminHandler) LocationHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			response.RespondBadRequest(w, "limit must be an integer between 1 and 1000")

			return
		}

		limit = n
	}

	history, err := h.service.LocationHistory(r.Context(), id, limit)
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]any{"data": history})
}

// ListMatches handles GET /v1/admin/matches.
func (h *AdminHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListMatchesFilters{}
	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	result, err := h.service.ListMatches(r.Context(), filters)
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// VerifyMatch handles PATCH /v1/admin/matches/{id}.
func (h *AdminHandler) VerifyMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req models.VerifyMatchRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		if validation.IsFieldError(err) {
			validation.RespondValidationError(w, err)

			return
		}

		respondBodyError(w, r, err)

		return
	}

	userID, _ := currentUser(r)

	match, err := h.service.VerifyMatch(r.Context(), id, *req.Verified, userID)
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, match)
}

// respondBodyError writes 413 for an oversized body and 400 for any other
// decoding failure.
func respondBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.RespondTooLarge(w)

		return
	}

	slog.WarnContext(r.Context(), "Invalid request body", "method", r.Method, "path", r.URL.Path, "error", err)
	response.RespondBadRequest(w, "Invalid request body")
}
