package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"todo-api-v2/api"
	"todo-api-v2/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: encode response: %v", err)
	}
}

// writeError renders err as an {ok:false, message} body with the status its
// code maps to. Causes of internal errors are logged and never sent.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusGatewayTimeout, api.Response{OK: false, Message: "Request timed out"})
		return
	}

	if apperr.CodeOf(err) == apperr.CodeInternal {
		log.Printf("ERROR: %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, api.Response{OK: false, Message: "Internal server error"})
		return
	}

	var appErr *apperr.Error
	errors.As(err, &appErr)

	var message any = appErr.Message
	if len(appErr.Fields) > 0 {
		message = appErr.Fields
	}
	writeJSON(w, appErr.Code.HTTPStatus(), api.Response{OK: false, Message: message})
}

// decodeJSON decodes the request body into v. A malformed body, or anything
// but whitespace after the first value, is a validation error.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "JSON parse error - "+err.Error(), err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return apperr.New(apperr.CodeValidation, "JSON parse error - Extra data")
	}
	return nil
}
