package preview

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halftone-compare/internal/figure"
)

func TestWindowSize(t *testing.T) {
	cases := []struct {
		fig  image.Point
		want fyne.Size
	}{
		{image.Pt(2400, 800), fyne.NewSize(1200, 400)},
		{image.Pt(600, 1600), fyne.NewSize(400, 800)},
		{image.Pt(500, 350), fyne.NewSize(500, 350)},
		{image.Pt(100, 50), fyne.NewSize(400, 300)},
		{image.Pt(0, 0), fyne.NewSize(1200, 800)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, WindowSize(tc.fig), "%v", tc.fig)
	}
}

func TestBuildWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo_image.png")
	img := image.NewRGBA(image.Rect(0, 0, 60, 40))
	img.Set(1, 1, color.Black)
	require.NoError(t, figure.Save(path, img, 90))

	w := NewWithApp(test.NewApp(), nil)
	win, err := w.build(path)
	require.NoError(t, err)
	defer win.Close()

	assert.Equal(t, "halftone-compare: demo_image.png", win.Title())
	assert.NotNil(t, win.Content())
}

func TestBuildWindowMissingFigure(t *testing.T) {
	w := NewWithApp(test.NewApp(), nil)
	_, err := w.build(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}
