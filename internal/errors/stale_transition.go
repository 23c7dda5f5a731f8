package errors

import "net/http"

// ErrStaleTransition means another actor won the race for the same task.
// Interactive callers should refresh and retry; the scheduler treats it as
// success-no-op.
var ErrStaleTransition = &Exception{
	Message:    "task was modified concurrently, refresh and retry",
	StatusCode: http.StatusConflict,
}
