package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
	"github.com/ops-intel/orchestrator/infrastructure/logging"
)

// writeJSON encodes data as the response body at status.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes r's body into v, writing a VALIDATION_ERROR envelope
// and returning false on malformed JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAppError(w, apperrors.Ofw(apperrors.CodeValidationError, "invalid request body", err))
		return false
	}
	return true
}

// writeAppError writes err's taxonomy code, message, and HTTP status as
// the standard failure envelope every handler in this package uses.
func writeAppError(w http.ResponseWriter, err error) {
	appErr := apperrors.As(err)
	if appErr == nil {
		appErr = apperrors.Of(apperrors.CodeInternalError, err.Error())
	}
	writeJSON(w, appErr.HTTPStatus, struct {
		Error *apperrors.Error `json:"error"`
	}{Error: appErr})
}

// handleJSON decodes a JSON request body into Req, calls fn, and writes
// its result as JSON — the decode/execute/respond boilerplate behind
// POST /ops/ask.
func handleJSON[Req any, Resp any](logger *logging.Logger, fn func(ctx context.Context, req *Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if !decodeJSON(w, r, &req) {
			return
		}
		resp, err := fn(r.Context(), &req)
		if err != nil {
			if logger != nil {
				logger.WithContext(r.Context()).WithError(err).Error("request failed")
			}
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
