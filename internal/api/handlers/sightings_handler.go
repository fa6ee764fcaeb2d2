package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/api/response"
	"github.com/reunite/hub/internal/api/validation"
	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/models"
	"github.com/reunite/hub/internal/service"
)

const sightingMediaDir = "sightings"

// SightingsService defines the sighting operations used by the handler.
type SightingsService interface {
	SubmitSighting(ctx context.Context, req service.SubmitSightingRequest) (*models.Sighting, error)
	ReprocessSighting(ctx context.Context, id uuid.UUID) error
	GetSighting(ctx context.Context, id uuid.UUID) (*models.Sighting, error)
	ListSightings(ctx context.Context, filters *models.ListSightingsFilters) (*models.ListSightingsResponse, error)
}

// sightingForm holds the non-file fields of a sighting upload.
type sightingForm struct {
	Latitude     *float64 `form:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64 `form:"longitude" validate:"omitempty,gte=-180,lte=180"`
	LocationName *string  `form:"location_name" validate:"omitempty,no_null_bytes,max=255"`
}

func (f *sightingForm) geo() (*models.Geo, error) {
	switch {
	case f.Latitude == nil && f.Longitude == nil:
		return nil, nil //nolint:nilnil // no location given
	case f.Latitude == nil || f.Longitude == nil:
		return nil, huberrors.NewValidationError("latitude", "latitude and longitude must be given together")
	default:
		return &models.Geo{Latitude: *f.Latitude, Longitude: *f.Longitude, LocationName: f.LocationName}, nil
	}
}

// SightingsHandler handles HTTP requests for sightings.
type SightingsHandler struct {
	service SightingsService
	media   MediaSaver
}

// NewSightingsHandler creates a new sightings handler.
func NewSightingsHandler(service SightingsService, media MediaSaver) *SightingsHandler {
	return &SightingsHandler{service: service, media: media}
}

// Create handles POST /v1/sightings. The media is stored before the sighting is
// recorded and removed again when the sighting is rejected.
func (h *SightingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	file, header, err := parseMultipart(r, "file")
	defer cleanupMultipart(r)

	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}
	defer file.Close()

	var form sightingForm
	if err := validation.ValidateAndDecodeForm(r, &form); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	geo, err := form.geo()
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	contentType := header.Header.Get("Content-Type")
	if _, ok := models.MediaKindForContentType(contentType); !ok {
		response.RespondUnprocessableEntity(w, "unsupported content type "+contentType)

		return
	}

	path, err := h.media.Save(r.Context(), sightingMediaDir, fileExt(header), file)
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	req := service.SubmitSightingRequest{MediaPath: path, ContentType: contentType, Geo: geo}
	if userID, ok := currentUser(r); ok {
		req.UploadedBy = &userID
	}

	sighting, err := h.service.SubmitSighting(r.Context(), req)
	if err != nil {
		if delErr := h.media.Delete(r.Context(), path); delErr != nil {
			slog.WarnContext(r.Context(), "Failed to remove rejected sighting media", "path", path, "error", delErr)
		}

		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusCreated, sighting)
}

// Get handles GET /v1/sightings/{id}.
func (h *SightingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	sighting, err := h.service.GetSighting(r.Context(), id)
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, sighting)
}

// List handles GET /v1/sightings.
func (h *SightingsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListSightingsFilters{}
	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	result, err := h.service.ListSightings(r.Context(), filters)
	if err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Reprocess handles POST /v1/sightings/{id}/reprocess.
func (h *SightingsHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.ReprocessSighting(r.Context(), id); err != nil {
		response.RespondServiceError(w, r, err)

		return
	}

	response.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "sighting_id": id.String()})
}
