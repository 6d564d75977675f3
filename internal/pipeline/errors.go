package pipeline

import "errors"

var (
	// ErrNotRunnable indicates the job's persisted status does not admit a run,
	// such as a job still in saving.
	ErrNotRunnable = errors.New("job not runnable")
	// ErrNoUsableResults indicates every page failed inference.
	ErrNoUsableResults = errors.New("no usable page results")
	// ErrPersistence indicates the job store could not record a stage.
	ErrPersistence = errors.New("persistence failed")
	// ErrDiverged accompanies ErrPersistence when the stored job no longer
	// admits the write: it is gone or another owner moved it on.
	ErrDiverged = errors.New("job state diverged")
	// ErrSourceUnavailable indicates the source document could not be read.
	ErrSourceUnavailable = errors.New("source document unavailable")
	// ErrPageUpload indicates a rendered page could not be stored.
	ErrPageUpload = errors.New("page image upload failed")
)

// Retryable reports whether err left the job at its last persisted stage
// because the store was unavailable, so a redelivery can resume it.
func Retryable(err error) bool {
	return errors.Is(err, ErrPersistence) && !errors.Is(err, ErrDiverged)
}
