package raster

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/okian/stylewars/internal/domain/pixel"
)

// Diff overlay colours.
const (
	dimAlpha     = 0.65
	mismatchSize = 1
)

// Diff draws target washed out towards white with every pixel where user
// differs painted red. Both frames must be w x h.
func Diff(user, target *image.NRGBA, w, h int) (image.Image, error) {
	mask := pixel.Mask(user.Pix, target.Pix)
	if mask == nil || len(mask) != w*h {
		return nil, fmt.Errorf("%w: user %v, target %v, want %dx%d",
			ErrFrameSize, user.Bounds(), target.Bounds(), w, h)
	}

	dc := gg.NewContext(w, h)
	dc.DrawImage(target, 0, 0)
	dc.SetRGBA(1, 1, 1, dimAlpha)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	dc.SetRGB(1, 0, 0)
	for p, differs := range mask {
		if !differs {
			continue
		}
		dc.DrawRectangle(float64(p%w), float64(p/w), mismatchSize, mismatchSize)
	}
	dc.Fill()

	return dc.Image(), nil
}
