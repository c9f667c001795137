// Package heatmap draws a price surface as an annotated PNG heatmap.
package heatmap

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/jwaldner/bsheat/internal/blackscholes"
)

const (
	marginTop    = 36
	marginLeft   = 64
	marginBottom = 48
	marginRight  = 88
	colorBarW    = 16
	minCellSize  = 4
)

var (
	background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	ink        = color.RGBA{A: 255}
	face       = basicfont.Face7x13
)

// Options controls the rendered image.
type Options struct {
	CellSize int  // pixels per cell side
	Annotate bool // print each price inside its cell
}

// DefaultOptions matches the layout of the interactive page.
func DefaultOptions() Options {
	return Options{CellSize: 48, Annotate: true}
}

// RenderBytes renders s and returns the encoded PNG.
func RenderBytes(s *blackscholes.Surface, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, s, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render writes s to w as a PNG. Rows (spot) run top to bottom in ascending
// order and columns (volatility) run left to right.
func Render(w io.Writer, s *blackscholes.Surface, opts Options) error {
	img, err := Draw(s, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// Draw rasterises s without encoding it.
func Draw(s *blackscholes.Surface, opts Options) (*image.RGBA, error) {
	if s == nil || s.Rows() == 0 || s.Cols() == 0 {
		return nil, errors.New("heatmap: empty surface")
	}
	if len(s.Prices) != s.Rows() {
		return nil, fmt.Errorf("heatmap: %d price rows for %d spots", len(s.Prices), s.Rows())
	}
	for i, row := range s.Prices {
		if len(row) != s.Cols() {
			return nil, fmt.Errorf("heatmap: row %d has %d prices for %d volatilities", i, len(row), s.Cols())
		}
	}
	cell := opts.CellSize
	if cell < minCellSize {
		cell = minCellSize
	}

	gridW, gridH := s.Cols()*cell, s.Rows()*cell
	width := marginLeft + gridW + marginRight
	height := marginTop + gridH + marginBottom
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	lo, hi := s.Bounds()
	for i := 0; i < s.Rows(); i++ {
		for j := 0; j < s.Cols(); j++ {
			v := s.At(i, j)
			c := RdYlGn(normalize(v, lo, hi))
			r := image.Rect(marginLeft+j*cell, marginTop+i*cell, marginLeft+(j+1)*cell, marginTop+(i+1)*cell)
			draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)

			if opts.Annotate {
				label := round2(v)
				if textWidth(label) <= cell-2 {
					drawText(img, r.Min.X+(cell-textWidth(label))/2, r.Min.Y+cell/2+4, label, contrast(c))
				}
			}
		}
	}

	drawAxes(img, s, cell)
	drawColorBar(img, lo, hi, gridH)

	title := s.Type.Title() + " Option Price Heatmap"
	drawText(img, marginLeft+(gridW-textWidth(title))/2, marginTop-14, title, ink)
	return img, nil
}

func drawAxes(img *image.RGBA, s *blackscholes.Surface, cell int) {
	gridW, gridH := s.Cols()*cell, s.Rows()*cell

	xStep := labelStride(s.Vols, cell)
	for j := 0; j < s.Cols(); j += xStep {
		label := round2(s.Vols[j])
		x := marginLeft + j*cell + (cell-textWidth(label))/2
		drawText(img, x, marginTop+gridH+14, label, ink)
	}
	yStep := 1
	if cell < 13 {
		yStep = int(math.Ceil(13 / float64(cell)))
	}
	for i := 0; i < s.Rows(); i += yStep {
		label := round2(s.Spots[i])
		drawText(img, marginLeft-4-textWidth(label), marginTop+i*cell+cell/2+4, label, ink)
	}

	xTitle := "Volatility (sigma)"
	drawText(img, marginLeft+(gridW-textWidth(xTitle))/2, marginTop+gridH+36, xTitle, ink)
	drawText(img, 4, marginTop-2, "Stock Price (S)", ink)
}

func drawColorBar(img *image.RGBA, lo, hi float64, gridH int) {
	x0 := img.Bounds().Dx() - marginRight + 16
	for y := 0; y < gridH; y++ {
		// top of the bar is the highest price
		c := RdYlGn(1 - float64(y)/float64(max(gridH-1, 1)))
		draw.Draw(img, image.Rect(x0, marginTop+y, x0+colorBarW, marginTop+y+1), &image.Uniform{C: c}, image.Point{}, draw.Src)
	}
	drawText(img, x0+colorBarW+4, marginTop+10, round2(hi), ink)
	drawText(img, x0+colorBarW+4, marginTop+gridH, round2(lo), ink)
}

// labelStride skips tick labels that would overlap their neighbours.
func labelStride(values []float64, cell int) int {
	widest := 0
	for _, v := range values {
		if w := textWidth(round2(v)); w > widest {
			widest = w
		}
	}
	if cell <= 0 || widest < cell {
		return 1
	}
	return int(math.Ceil(float64(widest+4) / float64(cell)))
}

func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}

func round2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func drawText(img draw.Image, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// contrast picks black or white text for a background colour.
func contrast(c color.RGBA) color.RGBA {
	luma := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	if luma < 128 {
		return background
	}
	return ink
}
