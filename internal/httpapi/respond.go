package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tasklink/notionbridge/internal/core/errs"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// errorEnvelope is the wire shape of every error response.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response body", "error", err)
	}
}

// writeError maps err onto the error envelope. Internal errors expose only
// their static message; the wrapped cause stays in the server log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := errs.Classify(err)

	message := err.Error()
	if code == errs.CodeInternal {
		var internalErr *errs.InternalError
		if errors.As(err, &internalErr) {
			message = internalErr.Message
		} else {
			message = "An unexpected error occurred"
		}
	}

	var details map[string]any
	if code != errs.CodeInternal {
		details = errs.Details(err)
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
	} else {
		slog.Warn("request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"message", message,
			"request_id", requestIDFrom(r.Context()),
		)
	}

	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// decodeJSON reads a JSON request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &errs.ValidationError{Message: "Invalid request body: " + err.Error(), Field: "body"}
	}
	return nil
}
