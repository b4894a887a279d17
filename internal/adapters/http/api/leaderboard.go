package api

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

// handleGetLeaderboard handles GET /leaderboard?limit=N[&challenge=id].
// Without a challenge the global board is returned.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	const op = "api.get_leaderboard"
	q := r.URL.Query()
	n, err := strconv.Atoi(q.Get("limit"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if n > s.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	entries, err := s.deps.TopN(r.Context(), q.Get("challenge"), n)
	if err != nil {
		s.writeDomainError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetRank handles GET /rank/:player[?challenge=id].
func (s *Server) handleGetRank(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	entry, err := s.deps.Rank(r.Context(), r.URL.Query().Get("challenge"), ps.ByName("player"))
	if err != nil {
		s.writeDomainError(r.Context(), w, "api.get_rank", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
