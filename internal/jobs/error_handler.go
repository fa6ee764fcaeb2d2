package jobs

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// ErrorHandler logs job errors and panics. Retry behavior is left to River.
type ErrorHandler struct {
	Logger *slog.Logger
}

func (h *ErrorHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}

	return slog.Default()
}

// HandleError is called when a job returns an error. The last attempt is logged as an
// error since the sighting stays unprocessed until requeued.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	level := slog.LevelWarn
	msg := "Job attempt failed, will retry"

	if job.Attempt >= job.MaxAttempts {
		level = slog.LevelError
		msg = "Job failed on final attempt"
	}

	h.logger().Log(ctx, level, msg,
		"job_kind", job.Kind,
		"job_id", job.ID,
		"args", string(job.EncodedArgs),
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
		"error", err,
	)

	return nil
}

// HandlePanic is called when a job panics.
func (h *ErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	h.logger().ErrorContext(ctx, "Job panicked",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"args", string(job.EncodedArgs),
		"attempt", job.Attempt,
		"panic_value", panicVal,
		"stack_trace", trace,
	)

	return nil
}
