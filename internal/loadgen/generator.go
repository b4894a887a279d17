package loadgen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/stylewars/internal/domain/pixel"
	"github.com/okian/stylewars/pkg/logger"
)

// Submission quality tiers, from flawless to mostly wrong.
const (
	tierPerfect = iota
	tierNearPerfect
	tierGood
	tierAverage
	tierPoor
	tierCount
)

const (
	minChars   = 80
	charsRange = 320
	maxHints   = 3
)

// plan creates the submissions of a run. Player ids are fresh for every
// run so earlier traffic cannot skew verification.
func plan(ctx context.Context, cfg *Config) []Plan {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5eed))
	run := uuid.NewString()[:8]

	players := make([]string, cfg.Players)
	for i := range players {
		players[i] = "lg-" + run + "-" + strconv.Itoa(i)
	}

	plans := make([]Plan, cfg.Submissions)
	for i := range plans {
		plans[i] = Plan{
			SubmissionID: fmt.Sprintf("lg-%s-s%d", run, i),
			PlayerID:     players[rng.IntN(len(players))],
			Mismatch:     mismatch(rng),
			Offset:       rng.IntN(1 << 20),
			CharsWritten: minChars + rng.IntN(charsRange),
			HintsUsed:    rng.IntN(maxHints + 1),
			Duplicate:    rng.Float64() < cfg.DupRate,
		}
	}

	logger.Get().Info(ctx, "planned submissions",
		logger.Int("submissions", len(plans)),
		logger.Int("players", len(players)),
		logger.String("run", run))
	return plans
}

// mismatch picks how much of the frame a submission gets wrong.
func mismatch(rng *rand.Rand) float64 {
	switch rng.IntN(tierCount) {
	case tierPerfect:
		return 0
	case tierNearPerfect:
		return rng.Float64() * 0.005
	case tierGood:
		return 0.02 + rng.Float64()*0.08
	case tierAverage:
		return 0.1 + rng.Float64()*0.4
	default:
		return 0.5 + rng.Float64()*0.5
	}
}

// render breaks a contiguous run of pixels of target, wrapping around the
// frame. Broken pixels have their red channel flipped by 128, which is far
// outside the comparator tolerance.
func render(target []byte, p Plan) []byte {
	out := make([]byte, len(target))
	copy(out, target)

	total := len(target) / pixel.Channels
	if total == 0 {
		return out
	}
	broken := int(p.Mismatch * float64(total))
	start := p.Offset % total
	for k := 0; k < broken; k++ {
		i := ((start + k) % total) * pixel.Channels
		out[i] ^= 0x80
	}
	return out
}
