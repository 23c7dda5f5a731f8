package errors

import "net/http"

var ErrPenaltyLocked = &Exception{
	Message:    "penalty content is not exposed",
	StatusCode: http.StatusForbidden,
}
