// Package imagegen renders the compliance heatmap as a PNG.
package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/lox/gendash/internal/compliance"
	"github.com/lox/gendash/internal/report"
)

var (
	parsedFont *opentype.Font
	fontOnce   sync.Once
	fontErr    error
)

func loadFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		parsedFont, fontErr = opentype.Parse(goregular.TTF)
		if fontErr != nil {
			fontErr = fmt.Errorf("parse goregular: %w", fontErr)
		}
	})
	return parsedFont, fontErr
}

// faces are owned by a single render. opentype faces keep glyph buffers
// and must not be shared between goroutines.
type faces struct {
	title, cell, small font.Face
}

func newFaces() (*faces, error) {
	f, err := loadFont()
	if err != nil {
		return nil, err
	}

	var fs faces
	for _, fc := range []struct {
		dst  *font.Face
		size float64
	}{
		{&fs.title, 22},
		{&fs.cell, 16},
		{&fs.small, 12},
	} {
		*fc.dst, err = opentype.NewFace(f, &opentype.FaceOptions{
			Size:    fc.size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			fs.Close()
			return nil, fmt.Errorf("create %.0fpt face: %w", fc.size, err)
		}
	}
	return &fs, nil
}

func (fs *faces) Close() {
	for _, f := range []font.Face{fs.title, fs.cell, fs.small} {
		if f != nil {
			f.Close()
		}
	}
}

// Layout of the heatmap grid. 8 columns by 6 rows covers a full day.
const (
	Columns    = 8
	CellWidth  = 120
	CellHeight = 64
	cellGap    = 4
	margin     = 20
	headerH    = 44
)

var (
	background = color.RGBA{248, 249, 250, 255}
	textDark   = color.RGBA{33, 37, 41, 255}
	textLight  = color.RGBA{255, 255, 255, 255}
	textMuted  = color.RGBA{108, 117, 125, 255}
)

// GradeColor returns the fill colour of a heatmap cell.
func GradeColor(g compliance.Grade) color.RGBA {
	switch g {
	case compliance.GradeOK:
		return color.RGBA{40, 167, 69, 255}
	case compliance.GradeWarning:
		return color.RGBA{255, 193, 7, 255}
	default:
		return color.RGBA{220, 53, 69, 255}
	}
}

// Size returns the image dimensions for n cells.
func Size(n int) (w, h int) {
	rows := (n + Columns - 1) / Columns
	if rows == 0 {
		rows = 1
	}
	w = 2*margin + Columns*CellWidth + (Columns-1)*cellGap
	h = 2*margin + headerH + rows*CellHeight + (rows-1)*cellGap
	return w, h
}

// RenderHeatmap draws one coloured cell per assessed interval with its time
// and rounded deviation. With no cells it draws the empty-day message.
func RenderHeatmap(title string, cells []report.HeatmapCell) ([]byte, error) {
	fs, err := newFaces()
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	defer fs.Close()

	w, h := Size(len(cells))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	drawText(img, title, margin, margin+24, textDark, fs.title)

	if len(cells) == 0 {
		drawText(img, "No assessed intervals", margin, margin+headerH+CellHeight/2, textMuted, fs.cell)
	}

	for i, c := range cells {
		x := margin + (i%Columns)*(CellWidth+cellGap)
		y := margin + headerH + (i/Columns)*(CellHeight+cellGap)
		rect := image.Rect(x, y, x+CellWidth, y+CellHeight)
		draw.Draw(img, rect, image.NewUniform(GradeColor(c.Grade)), image.Point{}, draw.Src)

		fg := textLight
		if c.Grade == compliance.GradeWarning {
			fg = textDark
		}
		drawCentered(img, c.Time, x, y+24, CellWidth, fg, fs.small)
		drawCentered(img, c.Label(), x, y+48, CellWidth, fg, fs.cell)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode heatmap: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// drawCentered draws text horizontally centred inside [x, x+width).
func drawCentered(img *image.RGBA, text string, x, y, width int, col color.Color, face font.Face) {
	d := &font.Drawer{Face: face}
	adv := d.MeasureString(text).Round()
	drawText(img, text, x+(width-adv)/2, y, col, face)
}
