// Package figure composes the comparison grid: layout math, image loading,
// encoding, and a pure Go renderer. The OpenCV renderer lives in cvfigure.
package figure

import (
	"context"
	"fmt"
	"image"
	"image/color"
)

// Renderer loads the images at paths, places them on a grid and writes the
// figure to output, returning the figure size.
type Renderer interface {
	Render(ctx context.Context, paths []string, output string) (image.Point, error)
}

type Options struct {
	Rows        int
	Cols        int
	Gap         int
	LabelScale  int
	JPEGQuality int
	Background  color.RGBA
	Foreground  color.RGBA
}

func DefaultOptions() Options {
	return Options{
		Rows:        2,
		Cols:        3,
		LabelScale:  3,
		JPEGQuality: 95,
		Background:  color.RGBA{0xff, 0xff, 0xff, 0xff},
		Foreground:  color.RGBA{0, 0, 0, 0xff},
	}
}

// LoadError reports an image that is absent or cannot be decoded.
type LoadError struct {
	Index int
	Path  string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %d (%s): %v", e.Index+1, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
