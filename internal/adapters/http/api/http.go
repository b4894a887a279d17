// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/okian/stylewars/internal/adapters/raster"
	"github.com/okian/stylewars/internal/adapters/repository"
	"github.com/okian/stylewars/internal/domain/challenge"
	"github.com/okian/stylewars/internal/domain/dedupe"
	"github.com/okian/stylewars/internal/domain/model"
	"github.com/okian/stylewars/internal/domain/types"
	"github.com/okian/stylewars/pkg/logger"
)

const (
	defaultMaxLimit = 100
	// A 400x300 RGBA frame is 480000 bytes, about 640KB once base64 encoded.
	defaultMaxBody = 4 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// CheckOpen fails when the challenge is unknown or not accepting
	// submissions right now.
	CheckOpen(ctx context.Context, challengeID string) error
	// Enqueue pushes a submission for async scoring. Returns false on backpressure.
	Enqueue(ctx context.Context, sub model.Submission) bool
	// Preview scores a render synchronously without persisting it.
	Preview(ctx context.Context, challengeID string, render []byte, chars, hints int) (types.Preview, error)

	Challenges(ctx context.Context) []types.ChallengeInfo
	ChallengeInfo(ctx context.Context, id string) (types.ChallengeInfo, error)
	Challenge(ctx context.Context, id string) (*challenge.Challenge, error)
	AddChallenge(ctx context.Context, c challenge.Challenge) (types.ChallengeInfo, error)
	Hint(ctx context.Context, id string, n int) (string, error)

	// Read operations expose leaderboard data. An empty board id means
	// the global board.
	TopN(ctx context.Context, board string, n int) ([]Entry, error)
	Rank(ctx context.Context, board, playerID string) (Entry, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	deps      Dependencies
	stats     StatsProvider
	maxLimit  int
	maxBody   int64
	publicURL string
	stream    httprouter.Handle
	logger    logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		stats:    stats,
		maxLimit: defaultMaxLimit,
		maxBody:  defaultMaxBody,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	return s
}

// Register attaches all HTTP routes to router.
func (s *Server) Register(_ context.Context, router *httprouter.Router) {
	router.GET("/healthz", MetricsMiddleware(s.handleHealth, "healthz"))
	router.GET("/stats", MetricsMiddleware(s.handleStats, "stats"))

	router.POST("/submissions", MetricsMiddleware(s.handlePostSubmission, "submissions"))
	router.POST("/score", MetricsMiddleware(s.handlePostScore, "score"))

	router.GET("/challenges", MetricsMiddleware(s.handleListChallenges, "challenges"))
	router.POST("/challenges", MetricsMiddleware(s.handlePostChallenge, "challenges"))
	router.GET("/challenges/:id", MetricsMiddleware(s.handleGetChallenge, "challenge"))
	router.GET("/challenges/:id/target.png", MetricsMiddleware(s.handleGetTarget, "challenge_target"))
	router.GET("/challenges/:id/hints/:n", MetricsMiddleware(s.handleGetHint, "challenge_hint"))
	router.GET("/challenges/:id/qr", MetricsMiddleware(s.handleGetQR, "challenge_qr"))
	router.POST("/challenges/:id/diff", MetricsMiddleware(s.handlePostDiff, "challenge_diff"))

	router.GET("/leaderboard", MetricsMiddleware(s.handleGetLeaderboard, "leaderboard"))
	router.GET("/rank/:player", MetricsMiddleware(s.handleGetRank, "rank"))

	if s.stream != nil {
		router.GET("/ws/leaderboard/:board", s.stream)
	}
}

type ackResponse struct {
	Status       string `json:"status"`
	Duplicate    bool   `json:"duplicate"`
	SubmissionID string `json:"submission_id,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps domain failures onto status codes.
func (s *Server) writeDomainError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, challenge.ErrNotFound), errors.Is(err, repository.ErrNotFound),
		errors.Is(err, challenge.ErrNoHint):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, challenge.ErrNotStarted):
		writeError(w, http.StatusConflict, "contest_not_started", WrapKind(op, ErrConflict, err))
	case errors.Is(err, challenge.ErrClosed):
		writeError(w, http.StatusConflict, "contest_closed", WrapKind(op, ErrConflict, err))
	case errors.Is(err, challenge.ErrExists):
		writeError(w, http.StatusConflict, "exists", WrapKind(op, ErrConflict, err))
	case errors.Is(err, challenge.ErrInvalid), errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, raster.ErrDecode), errors.Is(err, raster.ErrEmptyImage), errors.Is(err, raster.ErrFrameSize):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		s.logger.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// decodeJSON reads a bounded JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrTooLarge
		}
		return err
	}
	return nil
}

// renderPayload is the render part shared by /submissions, /score and
// /challenges/:id/diff. Exactly one of the fields is set.
type renderPayload struct {
	// RenderPNG is a base64 PNG or a data URL.
	RenderPNG string `json:"render_png,omitempty"`
	// RenderRGBA is base64 of the flattened RGBA frame, row-major.
	RenderRGBA string `json:"render_rgba,omitempty"`
}

// maxRenderPixels bounds a PNG render. Anything up to four frames is
// decoded and, when not exactly one frame, scores zero.
const maxRenderPixels = 4 * challenge.FrameWidth * challenge.FrameHeight

// pixels returns the render as flattened RGBA. Renders are never resized:
// a frame of the wrong size is passed through and scores zero.
func (p renderPayload) pixels() ([]byte, error) {
	png, rgba := strings.TrimSpace(p.RenderPNG), strings.TrimSpace(p.RenderRGBA)
	switch {
	case png != "" && rgba != "":
		return nil, errors.New("set only one of render_png and render_rgba")
	case png != "":
		img, err := raster.DecodeBase64Limit(png, maxRenderPixels)
		if err != nil {
			return nil, err
		}
		return img.Pix, nil
	case rgba != "":
		raw, err := base64.StdEncoding.DecodeString(rgba)
		if err != nil {
			return nil, errors.New("render_rgba is not valid base64")
		}
		return raw, nil
	}
	return nil, errors.New("missing render_png or render_rgba")
}
