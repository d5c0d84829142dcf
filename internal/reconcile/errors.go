package reconcile

import "errors"

// Errors returned by the engine. Callers match them with errors.Is.
var (
	// ErrNotFound means the credential does not resolve to any attendee.
	ErrNotFound = errors.New("credential not found")

	// ErrMissingIdentity means the attendee has no ID to address the store with.
	ErrMissingIdentity = errors.New("attendee has no id")

	// ErrRemoteUnavailable means a read or write against the check-in store failed.
	ErrRemoteUnavailable = errors.New("check-in store unavailable")

	// ErrPartialBatchFailure means a batch finished but some records failed.
	ErrPartialBatchFailure = errors.New("batch partially failed")
)

// ErrorKind returns a stable label for err, used in logs and API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMissingIdentity):
		return "missing_identity"
	case errors.Is(err, ErrRemoteUnavailable):
		return "remote_unavailable"
	case errors.Is(err, ErrPartialBatchFailure):
		return "partial_batch_failure"
	default:
		return "unexpected"
	}
}
