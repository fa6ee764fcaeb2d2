package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/reunite/hub/internal/api/middleware"
	"github.com/reunite/hub/internal/api/response"
	"github.com/reunite/hub/internal/huberrors"
)

// multipartMemory is how much of a multipart body is held in memory; the rest of
// each file part spills to a temp file.
const multipartMemory = 8 << 20

// MediaSaver stores uploaded files.
type MediaSaver interface {
	Save(ctx context.Context, dir, ext string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// parseMultipart parses the request as multipart/form-data and returns the named file.
// The caller must close the file and remove the form.
func parseMultipart(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, err
		}

		return nil, nil, huberrors.NewValidationError(field, "request must be multipart/form-data")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, huberrors.NewValidationError(field, field+" file is required")
	}

	return file, header, nil
}

func cleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func fileExt(header *multipart.FileHeader) string {
	return filepath.Ext(header.Filename)
}

// pathID parses the {id} route parameter. It writes a 400 and returns false when
// the parameter is not a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(urlParam(r, "id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")

		return uuid.Nil, false
	}

	return id, true
}

// currentUser returns the authenticated user ID. Auth guarantees one on every
// /v1 route.
func currentUser(r *http.Request) (uuid.UUID, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return uuid.Nil, false
	}

	return user.ID, true
}
