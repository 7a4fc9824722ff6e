package figure

import (
	"context"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"halftone-compare/internal/logger"
)

const labelPadding = 3

// GoRenderer composes the figure in memory with golang.org/x/image.
type GoRenderer struct {
	opts   Options
	face   *basicfont.Face
	logger logger.Logger
}

func NewGoRenderer(opts Options, log logger.Logger) *GoRenderer {
	if log == nil {
		log = logger.Nop()
	}
	if opts.LabelScale < 1 {
		opts.LabelScale = 1
	}
	return &GoRenderer{opts: opts, face: basicfont.Face7x13, logger: log}
}

// LabelHeight is the height of the band reserved under each image.
func (r *GoRenderer) LabelHeight() int {
	return (r.face.Height + 2*labelPadding) * r.opts.LabelScale
}

func (r *GoRenderer) Render(ctx context.Context, paths []string, output string) (image.Point, error) {
	images := make([]image.Image, len(paths))
	sizes := make([]image.Point, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return image.Point{}, err
		}
		img, format, err := Load(path)
		if err != nil {
			return image.Point{}, &LoadError{Index: i, Path: path, Err: err}
		}
		images[i] = img
		sizes[i] = img.Bounds().Size()

		r.logger.Debug("GoRenderer", "image loaded", map[string]interface{}{
			"path":   path,
			"format": format,
			"width":  sizes[i].X,
			"height": sizes[i].Y,
		})
	}

	canvas, err := r.Compose(images)
	if err != nil {
		return image.Point{}, err
	}

	if err := Save(output, canvas, r.opts.JPEGQuality); err != nil {
		return image.Point{}, err
	}

	size := canvas.Bounds().Size()
	r.logger.Info("GoRenderer", "figure saved", map[string]interface{}{
		"path":   output,
		"width":  size.X,
		"height": size.Y,
	})
	return size, nil
}

// Compose draws images onto a fresh canvas, one per cell, each labelled.
func (r *GoRenderer) Compose(images []image.Image) (*image.RGBA, error) {
	sizes := make([]image.Point, len(images))
	for i, img := range images {
		sizes[i] = img.Bounds().Size()
	}

	layout, err := NewLayout(sizes, r.opts.Rows, r.opts.Cols, r.LabelHeight(), r.opts.Gap)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rectangle{Max: layout.Size})
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(r.opts.Background), image.Point{}, draw.Src)

	for i, img := range images {
		draw.Draw(canvas, layout.ImageRect(i), img, img.Bounds().Min, draw.Src)
		r.drawLabel(canvas, layout.LabelRect(i), Label(i))
	}
	return canvas, nil
}

// drawLabel renders text at 1x and scales it up with nearest neighbour so
// the bitmap font stays crisp.
func (r *GoRenderer) drawLabel(dst draw.Image, band image.Rectangle, text string) {
	width := font.MeasureString(r.face, text).Ceil()
	glyphs := image.NewRGBA(image.Rect(0, 0, width, r.face.Height))

	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(r.opts.Foreground),
		Face: r.face,
		Dot:  fixed.P(0, r.face.Ascent),
	}
	d.DrawString(text)

	scale := r.opts.LabelScale
	w, h := width*scale, r.face.Height*scale
	x := band.Min.X + (band.Dx()-w)/2
	y := band.Min.Y + (band.Dy()-h)/2
	draw.NearestNeighbor.Scale(dst, image.Rect(x, y, x+w, y+h), glyphs, glyphs.Bounds(), draw.Over, nil)
}
