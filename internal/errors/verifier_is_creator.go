package errors

import "net/http"

var ErrVerifierIsCreator = &Exception{
	Message:    "verifier must differ from creator",
	StatusCode: http.StatusBadRequest,
}
