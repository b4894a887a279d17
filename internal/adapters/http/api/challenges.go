package api

import (
	"bytes"
	"errors"
	"image"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/okian/stylewars/internal/adapters/raster"
	"github.com/okian/stylewars/internal/domain/challenge"
)

// qrSize is the edge of the share QR code in pixels.
const qrSize = 320

// challengeRequest mirrors the OpenAPI schema for POST /challenges.
type challengeRequest struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	TargetChars int      `json:"target_chars"`
	Hints       []string `json:"hints"`
	StartsAt    string   `json:"starts_at"`
	EndsAt      string   `json:"ends_at"`
	// TargetPNG is a base64 PNG or data URL. Other sizes are scaled to
	// the frame.
	TargetPNG string `json:"target_png"`
}

func (req *challengeRequest) toChallenge() (challenge.Challenge, error) {
	if strings.TrimSpace(req.TargetPNG) == "" {
		return challenge.Challenge{}, errors.New("missing target_png")
	}
	img, err := raster.DecodeBase64(req.TargetPNG)
	if err != nil {
		return challenge.Challenge{}, err
	}
	c := challenge.Challenge{
		ID:          strings.TrimSpace(req.ID),
		Title:       req.Title,
		TargetChars: req.TargetChars,
		Hints:       req.Hints,
		Target:      raster.Normalize(img, challenge.FrameWidth, challenge.FrameHeight),
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.StartsAt, err = parseOptionalTime(req.StartsAt); err != nil {
		return challenge.Challenge{}, errors.New("invalid starts_at; must be RFC3339")
	}
	if c.EndsAt, err = parseOptionalTime(req.EndsAt); err != nil {
		return challenge.Challenge{}, errors.New("invalid ends_at; must be RFC3339")
	}
	return c, nil
}

func parseOptionalTime(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// handleListChallenges handles GET /challenges.
func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.deps.Challenges(r.Context()))
}

// handlePostChallenge handles POST /challenges.
func (s *Server) handlePostChallenge(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	const op = "api.post_challenge"
	var req challengeRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := req.toChallenge()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	info, err := s.deps.AddChallenge(r.Context(), c)
	if err != nil {
		s.writeDomainError(r.Context(), w, op, err)
		return
	}
	w.Header().Set("Location", "/challenges/"+info.ID)
	writeJSON(w, http.StatusCreated, info)
}

// handleGetChallenge handles GET /challenges/:id. Hint text is never part
// of the response.
func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	info, err := s.deps.ChallengeInfo(r.Context(), ps.ByName("id"))
	if err != nil {
		s.writeDomainError(r.Context(), w, "api.get_challenge", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleGetTarget handles GET /challenges/:id/target.png.
func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, err := s.deps.Challenge(r.Context(), ps.ByName("id"))
	if err != nil {
		s.writeDomainError(r.Context(), w, "api.get_target", err)
		return
	}
	writePNG(w, c.Target)
}

type hintResponse struct {
	N    int    `json:"n"`
	Hint string `json:"hint"`
}

// handleGetHint handles GET /challenges/:id/hints/:n. Hints are numbered
// from 1.
func (s *Server) handleGetHint(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	const op = "api.get_hint"
	n, err := strconv.Atoi(ps.ByName("n"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	hint, err := s.deps.Hint(r.Context(), ps.ByName("id"), n)
	if err != nil {
		s.writeDomainError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, hintResponse{N: n, Hint: hint})
}

// handleGetQR handles GET /challenges/:id/qr: a PNG QR code linking to the
// challenge.
func (s *Server) handleGetQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	const op = "api.get_qr"
	id := ps.ByName("id")
	if _, err := s.deps.ChallengeInfo(r.Context(), id); err != nil {
		s.writeDomainError(r.Context(), w, op, err)
		return
	}

	png, err := qrcode.Encode(s.baseURL(r)+"/challenges/"+id, qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// baseURL is the configured public URL, or one derived from the request
// (respecting TLS and X-Forwarded-Proto).
func (s *Server) baseURL(r *http.Request) string {
	if s.publicURL != "" {
		return strings.TrimSuffix(s.publicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func writePNG(w http.ResponseWriter, img image.Image) {
	var buf bytes.Buffer
	if err := raster.EncodePNG(&buf, img); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}
