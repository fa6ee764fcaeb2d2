package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/reunite/hub/internal/api/response"
)

// RequestBodyTooLargeRecorder records a request rejected for exceeding the body limit.
type RequestBodyTooLargeRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MaxBody limits request bodies to maxBytes. Reads past the limit fail with
// *http.MaxBytesError, which handlers map to 413. recorder may be nil; 0 or a
// negative limit disables the middleware.
func MaxBody(maxBytes int64, recorder RequestBodyTooLargeRecorder) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				if recorder != nil {
					recorder.RecordRequestBodyTooLarge(r.Context())
				}

				w.Header().Set("Connection", "close")
				response.RespondTooLarge(w)

				return
			}

			r.Body = &limitedBody{
				ReadCloser: http.MaxBytesReader(w, r.Body, maxBytes),
				ctx:        r.Context(),
				recorder:   recorder,
			}

			next.ServeHTTP(w, r)
		})
	}
}

// limitedBody reports the first read past the limit to the recorder.
type limitedBody struct {
	io.ReadCloser

	ctx      context.Context //nolint:containedctx // bound to one request
	recorder RequestBodyTooLargeRecorder
	once     sync.Once
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)

	var tooLarge *http.MaxBytesError
	if err != nil && b.recorder != nil && errors.As(err, &tooLarge) {
		b.once.Do(func() { b.recorder.RecordRequestBodyTooLarge(b.ctx) })
	}

	return n, err //nolint:wrapcheck // io.Reader contract
}
