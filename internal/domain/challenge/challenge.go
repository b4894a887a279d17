// Package challenge holds the catalog of CSS challenges players compete on.
package challenge

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// Every target is rendered into a frame of this size, and so is every
// player submission.
const (
	FrameWidth  = 400
	FrameHeight = 300
)

// globalBoardID names the overall leaderboard, so no challenge may use it.
const globalBoardID = "global"

// Challenge is one target layout.
type Challenge struct {
	ID    string
	Title string
	// TargetChars is the CSS length that earns the full length bonus.
	// Zero means the scoring default.
	TargetChars int
	Hints       []string
	// StartsAt and EndsAt bound a timed contest. Zero values leave that
	// side open.
	StartsAt time.Time
	EndsAt   time.Time
	// Target is the reference render, FrameWidth x FrameHeight.
	Target *image.NRGBA
}

// Validate checks the invariants the scorer relies on.
func (c *Challenge) Validate() error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalid)
	case c.ID == globalBoardID:
		return fmt.Errorf("%w: id %q is reserved", ErrInvalid, c.ID)
	case strings.Contains(c.ID, "/"):
		return fmt.Errorf("%w: id %q contains a slash", ErrInvalid, c.ID)
	case c.TargetChars < 0:
		return fmt.Errorf("%w: negative target_chars", ErrInvalid)
	case c.Target == nil:
		return fmt.Errorf("%w: missing target image", ErrInvalid)
	case !c.EndsAt.IsZero() && !c.StartsAt.IsZero() && !c.EndsAt.After(c.StartsAt):
		return fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalid)
	}
	b := c.Target.Bounds()
	if b.Min != (image.Point{}) || b.Dx() != FrameWidth || b.Dy() != FrameHeight || c.Target.Stride != FrameWidth*4 {
		return fmt.Errorf("%w: target must be a tight %dx%d frame, got %v", ErrInvalid, FrameWidth, FrameHeight, b)
	}
	return nil
}

// Pixels returns the target frame as flattened RGBA. Callers must not
// modify it.
func (c *Challenge) Pixels() []byte {
	return c.Target.Pix
}

// Open reports whether submissions are accepted at the given instant.
func (c *Challenge) Open(at time.Time) error {
	if !c.StartsAt.IsZero() && at.Before(c.StartsAt) {
		return ErrNotStarted
	}
	if !c.EndsAt.IsZero() && !at.Before(c.EndsAt) {
		return ErrClosed
	}
	return nil
}

// Hint reveals the n-th hint, counting from 1.
func (c *Challenge) Hint(n int) (string, error) {
	if n < 1 || n > len(c.Hints) {
		return "", fmt.Errorf("%w: %d of %d", ErrNoHint, n, len(c.Hints))
	}
	return c.Hints[n-1], nil
}
