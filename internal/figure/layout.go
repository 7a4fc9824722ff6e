package figure

import (
	"fmt"
	"image"
)

// Label is the caption of the cell holding images[index].
func Label(index int) string {
	return fmt.Sprintf("(%d)", index+1)
}

// Layout places images row-major on a grid. Each column is as wide as its
// widest image and each row as tall as its tallest image plus the label band.
// Images keep their native size and are centred in their cell.
type Layout struct {
	Rows        int
	Cols        int
	LabelHeight int
	Gap         int
	Size        image.Point

	sizes      []image.Point
	colWidths  []int
	rowHeights []int
}

func NewLayout(sizes []image.Point, rows, cols, labelHeight, gap int) (*Layout, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid grid %dx%d", rows, cols)
	}
	if len(sizes) != rows*cols {
		return nil, fmt.Errorf("grid %dx%d needs %d images, got %d", rows, cols, rows*cols, len(sizes))
	}
	if labelHeight < 0 || gap < 0 {
		return nil, fmt.Errorf("label height and gap must not be negative")
	}

	l := &Layout{
		Rows:        rows,
		Cols:        cols,
		LabelHeight: labelHeight,
		Gap:         gap,
		sizes:       append([]image.Point(nil), sizes...),
		colWidths:   make([]int, cols),
		rowHeights:  make([]int, rows),
	}

	for i, s := range sizes {
		if s.X <= 0 || s.Y <= 0 {
			return nil, fmt.Errorf("image %d has invalid size %dx%d", i, s.X, s.Y)
		}
		row, col := l.Position(i)
		l.colWidths[col] = max(l.colWidths[col], s.X)
		l.rowHeights[row] = max(l.rowHeights[row], s.Y)
	}

	for _, w := range l.colWidths {
		l.Size.X += w
	}
	for _, h := range l.rowHeights {
		l.Size.Y += h + labelHeight
	}
	l.Size.X += gap * (cols - 1)
	l.Size.Y += gap * (rows - 1)

	return l, nil
}

func (l *Layout) Len() int {
	return l.Rows * l.Cols
}

// Index maps a grid position to the index into the image list.
func (l *Layout) Index(row, col int) int {
	return row*l.Cols + col
}

func (l *Layout) Position(index int) (row, col int) {
	return index / l.Cols, index % l.Cols
}

// Cell is the full rectangle of a cell, label band included.
func (l *Layout) Cell(index int) image.Rectangle {
	row, col := l.Position(index)

	x := col * l.Gap
	for c := 0; c < col; c++ {
		x += l.colWidths[c]
	}
	y := row * l.Gap
	for r := 0; r < row; r++ {
		y += l.rowHeights[r] + l.LabelHeight
	}

	return image.Rect(x, y, x+l.colWidths[col], y+l.rowHeights[row]+l.LabelHeight)
}

// ImageRect is where images[index] is drawn at its native size.
func (l *Layout) ImageRect(index int) image.Rectangle {
	cell := l.Cell(index)
	size := l.sizes[index]
	row, _ := l.Position(index)

	x := cell.Min.X + (cell.Dx()-size.X)/2
	y := cell.Min.Y + (l.rowHeights[row]-size.Y)/2
	return image.Rect(x, y, x+size.X, y+size.Y)
}

// LabelRect is the band under the image area of a cell.
func (l *Layout) LabelRect(index int) image.Rectangle {
	cell := l.Cell(index)
	return image.Rect(cell.Min.X, cell.Max.Y-l.LabelHeight, cell.Max.X, cell.Max.Y)
}
