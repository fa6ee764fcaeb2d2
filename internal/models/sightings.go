package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaKind is the kind of media attached to a sighting.
type MediaKind string

// Media kinds.
const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// contentTypeKinds lists every accepted upload content type.
var contentTypeKinds = map[string]MediaKind{
	"image/jpeg":      MediaKindImage,
	"image/jpg":       MediaKindImage,
	"image/png":       MediaKindImage,
	"video/mp4":       MediaKindVideo,
	"video/avi":       MediaKindVideo,
	"video/x-msvideo": MediaKindVideo,
	"video/mov":       MediaKindVideo,
	"video/quicktime": MediaKindVideo,
}

// MediaKindForContentType maps an upload content type to its media kind.
// Parameters such as "; charset=" are ignored. Returns false for unsupported types.
func MediaKindForContentType(contentType string) (MediaKind, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	kind, ok := contentTypeKinds[ct]

	return kind, ok
}

// Geo is an optional sighting location.
type Geo struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LocationName *string `json:"location_name,omitempty"`
}

// Sighting represents one uploaded media item to be scanned for faces.
type Sighting struct {
	ID          uuid.UUID  `json:"id"`
	MediaPath   string     `json:"file_path"`
	MediaKind   MediaKind  `json:"file_type"`
	ContentType string     `json:"content_type"`
	Geo         *Geo       `json:"geo,omitempty"`
	UploadedBy  *uuid.UUID `json:"uploaded_by,omitempty"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// CreateSightingRequest holds the fields persisted for a new sighting.
type CreateSightingRequest struct {
	MediaPath   string
	MediaKind   MediaKind
	ContentType string
	Geo         *Geo
	UploadedBy  *uuid.UUID
}

// ListSightingsFilters represents pagination for listing sightings.
type ListSightingsFilters struct {
	Processed *bool `form:"processed"`
	Limit     int   `form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset    int   `form:"offset" validate:"omitempty,min=0"`
}

// ListSightingsResponse represents the response for listing sightings.
type ListSightingsResponse struct {
	Data   []Sighting `json:"data"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
