package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/stylewars/internal/domain/challenge"
	"github.com/okian/stylewars/internal/domain/model"
	"github.com/okian/stylewars/internal/domain/pixel"
	"github.com/okian/stylewars/pkg/metrics"
)

// ChallengeSource resolves challenge ids to their targets.
type ChallengeSource interface {
	Get(ctx context.Context, id string) (*challenge.Challenge, error)
}

// Scorer evaluates submissions. It is the contract the workers depend on.
type Scorer interface {
	// Evaluate scores a submission, honoring ctx for cancellation.
	Evaluate(ctx context.Context, sub model.Submission) (model.Evaluation, error)
}

// Evaluator scores submissions against the targets of a ChallengeSource.
type Evaluator struct {
	challenges ChallengeSource
}

// NewEvaluator returns an Evaluator backed by src.
func NewEvaluator(src ChallengeSource) *Evaluator {
	return &Evaluator{challenges: src}
}

// Evaluate compares the submitted render with the challenge target and
// computes the score. A render whose size differs from the target scores
// zero rather than failing.
func (e *Evaluator) Evaluate(ctx context.Context, sub model.Submission) (model.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return model.Evaluation{}, err
	}
	start := time.Now()

	c, err := e.challenges.Get(ctx, sub.ChallengeID)
	if err != nil {
		metrics.RecordScoringError()
		return model.Evaluation{}, fmt.Errorf("evaluate %s: %w", sub.SubmissionID, err)
	}

	accuracy := pixel.Compare(sub.Render, c.Pixels())
	score := Calculate(Input{
		Accuracy:     accuracy,
		CharsWritten: sub.CharsWritten,
		HintsUsed:    sub.HintsUsed,
		TargetChars:  c.TargetChars,
	})

	metrics.RecordSubmissionScored(accuracy, score)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)

	return model.Evaluation{
		SubmissionID: sub.SubmissionID,
		PlayerID:     sub.PlayerID,
		ChallengeID:  sub.ChallengeID,
		Accuracy:     accuracy,
		Score:        score,
		CharsWritten: sub.CharsWritten,
		HintsUsed:    sub.HintsUsed,
	}, nil
}
