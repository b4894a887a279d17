// Package pixel measures how closely a rendered frame matches a target frame.
//
// Frames are flattened, non-premultiplied RGBA buffers: four bytes per pixel
// in R, G, B, A order, the layout of image.NRGBA.Pix and of a canvas
// ImageData. Every function here is pure and safe for concurrent use.
package pixel

// Channels is the number of bytes per pixel.
const Channels = 4

// Tolerance is the largest squared RGBA distance at which two pixels still
// count as the same. It absorbs anti-aliasing noise and nothing more.
const Tolerance = 10

// Result is the outcome of a detailed comparison.
type Result struct {
	// Accuracy is Matched/Total*100, unrounded. Zero when the frames
	// cannot be compared.
	Accuracy float64
	Matched  int
	Total    int
}

// Compare returns the percentage of pixels in user that match target.
// Buffers of different length, empty buffers and buffers that do not hold
// whole pixels yield 0.
func Compare(user, target []byte) float64 {
	return CompareDetailed(user, target).Accuracy
}

// CompareDetailed is Compare with the matched and total pixel counts.
func CompareDetailed(user, target []byte) Result {
	if !sameShape(user, target) {
		return Result{}
	}

	total := len(user) / Channels
	matched := 0
	for i := 0; i < len(user); i += Channels {
		if distance2(user[i:i+Channels], target[i:i+Channels]) <= Tolerance {
			matched++
		}
	}

	return Result{
		Accuracy: float64(matched) / float64(total) * 100,
		Matched:  matched,
		Total:    total,
	}
}

// Mask reports, per pixel, whether user differs from target. It returns nil
// when the buffers cannot be compared.
func Mask(user, target []byte) []bool {
	if !sameShape(user, target) {
		return nil
	}
	mask := make([]bool, len(user)/Channels)
	for p := range mask {
		i := p * Channels
		mask[p] = distance2(user[i:i+Channels], target[i:i+Channels]) > Tolerance
	}
	return mask
}

// Match reports whether two RGBA pixels are within Tolerance.
func Match(a, b [Channels]uint8) bool {
	return distance2(a[:], b[:]) <= Tolerance
}

func sameShape(user, target []byte) bool {
	return len(user) == len(target) && len(user) > 0 && len(user)%Channels == 0
}

// distance2 is the squared Euclidean distance over the four channels.
func distance2(a, b []byte) int {
	d := 0
	for c := 0; c < Channels; c++ {
		diff := int(a[c]) - int(b[c])
		d += diff * diff
	}
	return d
}
