package raster

import "errors"

// Common raster errors.
var (
	ErrDecode     = errors.New("cannot decode image")
	ErrEmptyImage = errors.New("image has no pixels")
	ErrFrameSize  = errors.New("frame does not match the expected size")
)
