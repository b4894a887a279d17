package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/okian/stylewars/internal/adapters/raster"
	"github.com/okian/stylewars/internal/domain/challenge"
)

type scoreRequest struct {
	ChallengeID  string `json:"challenge_id"`
	CharsWritten int    `json:"chars_written"`
	HintsUsed    int    `json:"hints_used"`
	renderPayload
}

// handlePostScore handles POST /score: a synchronous preview that never
// touches the leaderboards.
func (s *Server) handlePostScore(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	const op = "api.post_score"
	var req scoreRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.ChallengeID) == "" || req.CharsWritten < 0 || req.HintsUsed < 0 {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("challenge_id is required and counts must not be negative")))
		return
	}
	render, err := req.pixels()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	preview, err := s.deps.Preview(r.Context(), req.ChallengeID, render, req.CharsWritten, req.HintsUsed)
	if err != nil {
		s.writeDomainError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type diffRequest struct {
	renderPayload
}

// handlePostDiff handles POST /challenges/:id/diff and answers with a PNG
// marking every mismatching pixel.
func (s *Server) handlePostDiff(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	const op = "api.post_diff"
	var req diffRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	render, err := req.pixels()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := s.deps.Challenge(r.Context(), ps.ByName("id"))
	if err != nil {
		s.writeDomainError(r.Context(), w, op, err)
		return
	}
	user, err := raster.FromPixels(render, challenge.FrameWidth, challenge.FrameHeight)
	if err != nil {
		s.writeDomainError(r.Context(), w, op, err)
		return
	}
	img, err := raster.Diff(user, c.Target, challenge.FrameWidth, challenge.FrameHeight)
	if err != nil {
		s.writeDomainError(r.Context(), w, op, err)
		return
	}
	writePNG(w, img)
}
