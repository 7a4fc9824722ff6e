// Package preview shows the saved comparison figure in a desktop window.
package preview

import (
	"fmt"
	"image"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"halftone-compare/internal/figure"
	"halftone-compare/internal/logger"
)

const (
	AppID = "com.imageprocessing.halftone-compare"

	maxWidth  = 1200
	maxHeight = 800
	minWidth  = 400
	minHeight = 300
)

type Window struct {
	app    fyne.App
	logger logger.Logger
}

func New(log logger.Logger) *Window {
	return NewWithApp(app.NewWithID(AppID), log)
}

func NewWithApp(a fyne.App, log logger.Logger) *Window {
	if log == nil {
		log = logger.Nop()
	}
	return &Window{app: a, logger: log}
}

// Show opens the figure and blocks until the window is closed.
func (w *Window) Show(path string) error {
	win, err := w.build(path)
	if err != nil {
		return err
	}

	w.logger.Info("Preview", "showing figure", map[string]interface{}{"path": path})
	win.ShowAndRun()
	return nil
}

func (w *Window) build(path string) (fyne.Window, error) {
	img, _, err := figure.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open figure for preview: %w", err)
	}
	size := img.Bounds().Size()

	display := canvas.NewImageFromImage(img)
	display.FillMode = canvas.ImageFillContain
	display.ScaleMode = canvas.ImageScaleSmooth

	caption := widget.NewLabel(fmt.Sprintf("%s  %dx%d", path, size.X, size.Y))

	win := w.app.NewWindow("halftone-compare: " + filepath.Base(path))
	win.SetContent(container.NewBorder(nil, caption, nil, nil, display))
	win.Resize(WindowSize(size))
	win.CenterOnScreen()
	win.SetOnClosed(func() {
		w.logger.Debug("Preview", "window closed", nil)
	})
	return win, nil
}

// Shutdown closes the preview from any goroutine.
func (w *Window) Shutdown() {
	fyne.Do(func() {
		w.app.Quit()
	})
}

// WindowSize fits the figure's aspect ratio inside the maximum window size.
func WindowSize(fig image.Point) fyne.Size {
	if fig.X <= 0 || fig.Y <= 0 {
		return fyne.NewSize(maxWidth, maxHeight)
	}

	scale := min(float32(maxWidth)/float32(fig.X), float32(maxHeight)/float32(fig.Y), 1)
	w := max(float32(fig.X)*scale, minWidth)
	h := max(float32(fig.Y)*scale, minHeight)
	return fyne.NewSize(w, h)
}
