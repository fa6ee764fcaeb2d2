package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/api/response"
	"github.com/reunite/hub/internal/api/validation"
	"github.com/reunite/hub/internal/models"
	"github.com/reunite/hub/internal/service"
)

// CasesService defines the case operations used by the handler.
type CasesService interface {
	CreateCase(ctx context.Context, in service.CreateCaseInput) (*models.Case, error)
	GetCase(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*models.Case, error)
	ListCases(ctx context.Context, filters *models.ListCasesFilters) (*models.ListCasesResponse, error)
	UpdateCase(ctx context.Context, id uuid.UUID, owner *uuid.UUID, req *models.UpdateCaseRequest) (*models.Case, error)
	DeleteCase(ctx context.Context, id uuid.UUID, owner *uuid.UUID) error
}

// CasesHandler handles HTTP requests for missing person cases. A handler scoped to
// owners only sees cases the calling user created; the admin handler sees all.
type CasesHandler struct {
	service CasesService
	scoped  bool
}

// NewCasesHandler creates a handler limited to the caller's own cases.
func NewCasesHandler(service CasesService) *CasesHandler {
	return &CasesHandler{service: service, scoped: true}
}

// NewAdminCasesHandler creates a handler over every case.
func NewAdminCasesHandler(service CasesService) *CasesHandler {
	return &CasesHandler{service: service}
}

func (h *CasesHandler) owner(r *http.Request) *uuid.UUID {
	if !h.scoped {
		return nil
	}

	id, ok := currentUser(r)
	if !ok {
		// never matches a case
		return &uuid.Nil
	}

	return &id
}

// Create handles POST /v1/cases.
func (h *CasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	file, header, err := parseMultipart(r, "photo")
	defer cleanupMultipart(r)

	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}
	defer file.Close()

	var req models.CreateCaseRequest
	if err := validation.ValidateAndDecodeForm(r, &req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	kind, ok := models.MediaKindForContentType(header.Header.Get("Content-Type"))
	if !ok || kind != models.MediaKindImage {
		response.RespondUnprocessableEntity(w, "photo must be a JPEG or PNG image")

		return
	}

	userID, _ := currentUser(r)

	c, err := h.service.CreateCase(r.Context(), service.CreateCaseInput{
		Request:   req,
		CreatedBy: userID,
		Photo:     file,
		PhotoExt:  fileExt(header),
	})
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusCreated, c)
}

// Get handles GET /v1/cases/{id}.
func (h *CasesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetCase(r.Context(), id, h.owner(r))
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, c)
}

// List handles GET /v1/cases.
func (h *CasesHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListCasesFilters{}
	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	filters.CreatedBy = h.owner(r)

	result, err := h.service.ListCases(r.Context(), filters)
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Update handles PATCH /v1/cases/{id}.
func (h *CasesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req models.UpdateCaseRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		if validation.IsFieldError(err) {
			validation.RespondValidationError(w, err)

			return
		}

		respondBodyError(w, r, err)

		return
	}

	c, err := h.service.UpdateCase(r.Context(), id, h.owner(r), &req)
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /v1/cases/{id}.
func (h *CasesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCase(r.Context(), id, h.owner(r)); err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
