package errors

import "net/http"

var ErrIllegalTransition = &Exception{
	Message:    "illegal state transition",
	StatusCode: http.StatusConflict,
}
