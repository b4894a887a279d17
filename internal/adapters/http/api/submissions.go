package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/okian/stylewars/internal/domain/model"
	"github.com/okian/stylewars/pkg/metrics"
)

// submissionRequest mirrors the OpenAPI schema for POST /submissions.
type submissionRequest struct {
	SubmissionID string `json:"submission_id"`
	PlayerID     string `json:"player_id"`
	ChallengeID  string `json:"challenge_id"`
	CharsWritten int    `json:"chars_written"`
	HintsUsed    int    `json:"hints_used"`
	TS           string `json:"ts"`
	renderPayload
}

func (req *submissionRequest) validate() error {
	switch {
	case strings.TrimSpace(req.PlayerID) == "":
		return errors.New("missing player_id")
	case strings.TrimSpace(req.ChallengeID) == "":
		return errors.New("missing challenge_id")
	case req.CharsWritten < 0:
		return errors.New("chars_written must not be negative")
	case req.HintsUsed < 0:
		return errors.New("hints_used must not be negative")
	}
	if req.TS != "" {
		if _, err := time.Parse(time.RFC3339, req.TS); err != nil {
			return errors.New("invalid ts; must be RFC3339")
		}
	}
	return nil
}

// submittedAt returns the client timestamp, or now when none was sent.
func (req *submissionRequest) submittedAt() time.Time {
	if ts, err := time.Parse(time.RFC3339, req.TS); err == nil {
		return ts
	}
	return time.Now()
}

// handlePostSubmission handles POST /submissions.
func (s *Server) handlePostSubmission(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	const op = "api.post_submission"
	ctx := r.Context()

	var req submissionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.reject(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		s.reject(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	render, err := req.pixels()
	if err != nil {
		s.reject(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.deps.CheckOpen(ctx, req.ChallengeID); err != nil {
		metrics.RecordSubmissionRejected("challenge_unavailable")
		s.writeDomainError(ctx, w, op, err)
		return
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.NewString()
	}

	// Idempotency check - mark as seen first
	if s.deps.SeenAndRecord(ctx, req.SubmissionID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, SubmissionID: req.SubmissionID})
		return
	}

	sub := model.Submission{
		SubmissionID: req.SubmissionID,
		PlayerID:     req.PlayerID,
		ChallengeID:  req.ChallengeID,
		CharsWritten: req.CharsWritten,
		HintsUsed:    req.HintsUsed,
		Render:       render,
		SubmittedAt:  req.submittedAt(),
	}
	if ok := s.deps.Enqueue(ctx, sub); !ok {
		// Rollback the "seen" status since enqueue failed
		s.deps.Unrecord(ctx, req.SubmissionID)
		s.reject(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", SubmissionID: req.SubmissionID})
}

func (s *Server) reject(w http.ResponseWriter, status int, code string, err error) {
	metrics.RecordSubmissionRejected(code)
	writeError(w, status, code, err)
}
