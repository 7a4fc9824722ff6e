// Package cvfigure renders the comparison figure with OpenCV.
package cvfigure

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"halftone-compare/internal/figure"
	"halftone-compare/internal/logger"
)

var errUnreadable = errors.New("OpenCV could not read the file")

const (
	labelFont    = gocv.FontHersheySimplex
	labelPadding = 4
)

type Renderer struct {
	opts   figure.Options
	logger logger.Logger
}

func New(opts figure.Options, log logger.Logger) *Renderer {
	if log == nil {
		log = logger.Nop()
	}
	if opts.LabelScale < 1 {
		opts.LabelScale = 1
	}
	return &Renderer{opts: opts, logger: log}
}

func (r *Renderer) fontScale() float64 {
	return 0.5 * float64(r.opts.LabelScale)
}

func (r *Renderer) thickness() int {
	return max(1, r.opts.LabelScale/2)
}

// LabelHeight fits the tallest label text plus padding.
func (r *Renderer) LabelHeight(count int) int {
	size, baseline := gocv.GetTextSizeWithBaseline(figure.Label(count-1), labelFont, r.fontScale(), r.thickness())
	return size.Y + baseline + 2*labelPadding*r.opts.LabelScale
}

func (r *Renderer) Render(ctx context.Context, paths []string, output string) (image.Point, error) {
	mats := make([]gocv.Mat, 0, len(paths))
	defer func() {
		for i := range mats {
			mats[i].Close()
		}
	}()

	sizes := make([]image.Point, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return image.Point{}, err
		}
		mat := gocv.IMRead(path, gocv.IMReadColor)
		if mat.Empty() {
			mat.Close()
			return image.Point{}, &figure.LoadError{Index: i, Path: path, Err: errUnreadable}
		}
		mats = append(mats, mat)
		sizes = append(sizes, image.Pt(mat.Cols(), mat.Rows()))

		r.logger.Debug("CVRenderer", "image loaded", map[string]interface{}{
			"path":     path,
			"width":    mat.Cols(),
			"height":   mat.Rows(),
			"channels": mat.Channels(),
		})
	}

	layout, err := figure.NewLayout(sizes, r.opts.Rows, r.opts.Cols, r.LabelHeight(len(paths)), r.opts.Gap)
	if err != nil {
		return image.Point{}, err
	}

	bg := r.opts.Background
	canvas := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(bg.B), float64(bg.G), float64(bg.R), 0),
		layout.Size.Y, layout.Size.X, gocv.MatTypeCV8UC3,
	)
	defer canvas.Close()

	for i := range mats {
		roi := canvas.Region(layout.ImageRect(i))
		mats[i].CopyTo(&roi)
		roi.Close()

		r.drawLabel(&canvas, layout.LabelRect(i), figure.Label(i))
	}

	if err := r.write(output, canvas); err != nil {
		return image.Point{}, err
	}

	r.logger.Info("CVRenderer", "figure saved", map[string]interface{}{
		"path":   output,
		"width":  layout.Size.X,
		"height": layout.Size.Y,
	})
	return layout.Size, nil
}

func (r *Renderer) drawLabel(canvas *gocv.Mat, band image.Rectangle, text string) {
	size, baseline := gocv.GetTextSizeWithBaseline(text, labelFont, r.fontScale(), r.thickness())
	x := band.Min.X + (band.Dx()-size.X)/2
	// PutText anchors at the baseline
	y := band.Min.Y + (band.Dy()-size.Y-baseline)/2 + size.Y
	gocv.PutText(canvas, text, image.Pt(x, y), labelFont, r.fontScale(), r.opts.Foreground, r.thickness())
}

func (r *Renderer) write(output string, canvas gocv.Mat) error {
	format, err := figure.FormatFor(output)
	if err != nil {
		return err
	}
	if err := figure.EnsureDir(output); err != nil {
		return err
	}

	var params []int
	if format == "jpeg" {
		params = []int{int(gocv.IMWriteJpegQuality), r.opts.JPEGQuality}
	}

	if !gocv.IMWriteWithParams(output, canvas, params) {
		return fmt.Errorf("OpenCV failed to write %s", output)
	}
	return nil
}
