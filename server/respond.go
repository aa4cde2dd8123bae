package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/observe"
)

const internalMessage = "Internal server error"

type detailBody struct {
	Detail string `json:"detail"`
}

type chatErrorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus returns the status and caller-facing message for err.
func errorStatus(err error) (int, string) {
	kind := fault.KindOf(err)
	return kind.HTTPStatus(), fault.MessageOf(err, internalMessage)
}

// logFailure logs err at a level matching its kind. Internal errors carry
// their full cause; the caller only ever sees the generic message.
func logFailure(r *http.Request, logger observe.Logger, err error) {
	kind := fault.KindOf(err)
	fields := []observe.Field{
		observe.F("error", err.Error()),
		observe.F("error.kind", kind.String()),
		observe.F("path", r.URL.Path),
	}
	switch {
	case errors.Is(err, r.Context().Err()) && r.Context().Err() != nil:
		logger.Debug(r.Context(), "request abandoned by client", fields...)
	case kind == fault.KindInternal:
		logger.Error(r.Context(), "request failed", fields...)
	default:
		logger.Warn(r.Context(), "request failed", fields...)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(r, s.logger, err)
	status, msg := errorStatus(err)
	writeJSON(w, status, detailBody{Detail: msg})
}

// writeChatError answers with {"error": ...}. Malformed chat input is a plain
// bad request rather than a validation failure.
func (s *Server) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(r, s.logger, err)
	status, msg := errorStatus(err)
	if fault.Is(err, fault.KindValidation) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, chatErrorBody{Error: msg})
}
