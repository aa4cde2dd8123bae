package server

import (
	"net/http"

	"github.com/jonwraymond/agriops/auth"
	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/observe"
)

// StatusMessage is a {"status", "message"} body.
type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleClearCache empties the response cache for a caller holding the admin
// key. A failed check leaves the cache untouched.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	const op = "server.clear_cache"

	id, err := auth.Require(r.Context(), s.admin, auth.FromHTTP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !id.HasRole(auth.RoleAdmin) {
		s.writeError(w, r, fault.Forbidden(op, "Unauthorized"))
		return
	}
	ctx := auth.WithIdentity(r.Context(), id)

	entries := s.cache.Len()
	if err := s.cache.Clear(ctx); err != nil {
		s.writeError(w, r, fault.Internal(op, err))
		return
	}
	s.logger.Info(ctx, "cache cleared",
		observe.F("principal", auth.PrincipalFromContext(ctx)),
		observe.F("entries", entries),
	)
	writeJSON(w, http.StatusOK, StatusMessage{Status: "success", Message: "Cache cleared"})
}
