package errors

import "net/http"

var ErrReasonRequired = &Exception{
	Message:    "a non-empty rejection reason is required",
	StatusCode: http.StatusBadRequest,
}
