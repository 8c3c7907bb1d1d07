package export

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Print layout geometry, in logical pixels before scaling.
const (
	PageWidth = 1200

	pagePadding    = 40
	gridColumns    = 8
	gridBorder     = 2
	headRowHeight  = 64
	minMealHeight  = 200
	cellPadding    = 16
	dishGap        = 12
	dishLineHeight = 28
	dishPadY       = 4
	dishBarWidth   = 4
	dishIndent     = 12
	titleSize      = 36
	titleLine      = 44
	subtitleSize   = 16
	subtitleLine   = 24
	headerRule     = 2
	headerGap      = 16
	sectionGap     = 32
	brandSize      = 14
	daySize        = 18
	cornerSize     = 16
	mealLabelSize  = 20
	mealLabelLine  = 26
	dishSize       = 18
	footerSize     = 16
	footerLine     = 24
)

var (
	colorIndigo900 = color.RGBA{0x31, 0x2e, 0x81, 0xff}
	colorIndigo700 = color.RGBA{0x43, 0x38, 0xca, 0xff}
	colorIndigo600 = color.RGBA{0x4f, 0x46, 0xe5, 0xff}
	colorIndigo400 = color.RGBA{0x81, 0x8c, 0xf8, 0xff}
	colorSlate800  = color.RGBA{0x1e, 0x29, 0x3b, 0xff}
	colorSlate700  = color.RGBA{0x33, 0x41, 0x55, 0xff}
	colorSlate500  = color.RGBA{0x64, 0x74, 0x8b, 0xff}
	colorSlate400  = color.RGBA{0x94, 0xa3, 0xb8, 0xff}
	colorSlate200  = color.RGBA{0xe2, 0xe8, 0xf0, 0xff}
	colorSlate100  = color.RGBA{0xf1, 0xf5, 0xf9, 0xff}
	colorSlate50   = color.RGBA{0xf8, 0xfa, 0xfc, 0xff}
)

var (
	errNoFonts  = errors.New("raster renderer has no fonts")
	errNoRegion = errors.New("nothing to render")
)

// RasterRenderer draws a Region into an RGBA image with the Go font family
// (and an optional fallback font).
type RasterRenderer struct {
	fonts *Fonts
}

func NewRasterRenderer(fonts *Fonts) *RasterRenderer {
	return &RasterRenderer{fonts: fonts}
}

type canvas struct {
	img   *image.RGBA
	scale float64
}

func (c *canvas) px(v float64) int { return int(math.Round(v * c.scale)) }

func (c *canvas) fill(x, y, w, h float64, col color.Color) {
	rect := image.Rect(c.px(x), c.px(y), c.px(x+w), c.px(y+h))
	draw.Draw(c.img, rect, image.NewUniform(col), image.Point{}, draw.Src)
}

// text draws s with its top-left corner at (x, y) in logical pixels.
func (c *canvas) text(tf *typeface, s string, x, y float64, col color.Color) {
	d := &font.Drawer{
		Dst: c.img,
		Src: image.NewUniform(col),
		Dot: fixed.Point26_6{X: fixed.I(c.px(x)), Y: fixed.I(c.px(y)) + tf.ascent()},
	}
	for _, r := range tf.runs(s) {
		d.Face = r.face
		d.DrawString(r.text)
	}
}

// width returns the logical width of s.
func (c *canvas) width(tf *typeface, s string) float64 {
	return float64(tf.measure(s).Ceil()) / c.scale
}

// wrap breaks s into lines no wider than max logical pixels, preferring
// spaces and falling back to rune boundaries.
func (c *canvas) wrap(tf *typeface, s string, max float64) []string {
	var lines []string
	var line []rune
	for _, r := range s {
		line = append(line, r)
		if len(line) < 2 || c.width(tf, string(line)) <= max {
			continue
		}
		if cut := lastSpace(line); cut > 0 {
			lines = append(lines, strings.TrimSpace(string(line[:cut])))
			line = append([]rune(nil), line[cut+1:]...)
		} else {
			lines = append(lines, string(line[:len(line)-1]))
			line = []rune{r}
		}
	}
	if rest := strings.TrimSpace(string(line)); rest != "" {
		lines = append(lines, rest)
	}
	return lines
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == ' ' {
			return i
		}
	}
	return -1
}

type faces struct {
	title, subtitle, brand, day, corner, mealLabel, dish, footer *typeface
}

func (f *faces) all() []*typeface {
	return []*typeface{f.title, f.subtitle, f.brand, f.day, f.corner, f.mealLabel, f.dish, f.footer}
}

func (f *faces) Close() {
	for _, tf := range f.all() {
		if tf != nil {
			tf.Close()
		}
	}
}

func (r *RasterRenderer) faces(scale float64) (*faces, error) {
	specs := []struct {
		w    weight
		size float64
	}{
		{weightBold, titleSize},
		{weightMedium, subtitleSize},
		{weightBold, brandSize},
		{weightBold, daySize},
		{weightBold, cornerSize},
		{weightBold, mealLabelSize},
		{weightMedium, dishSize},
		{weightMedium, footerSize},
	}
	f := &faces{}
	targets := []**typeface{&f.title, &f.subtitle, &f.brand, &f.day, &f.corner, &f.mealLabel, &f.dish, &f.footer}
	for i, spec := range specs {
		tf, err := r.fonts.face(spec.w, spec.size*scale)
		if err != nil {
			f.Close()
			return nil, err
		}
		*targets[i] = tf
	}
	return f, nil
}

// Render draws region at opts.Scale on an opaque opts.Background. UseCORS has
// no effect on the raster renderer.
func (r *RasterRenderer) Render(ctx context.Context, region *Region, opts RenderOptions) (image.Image, error) {
	if r == nil || r.fonts == nil {
		return nil, errNoFonts
	}
	if region == nil {
		return nil, errNoRegion
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	bg := opts.Background
	if bg == nil {
		bg = color.White
	}

	f, err := r.faces(scale)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Measure pass: wrapped text and row heights depend on font metrics.
	probe := &canvas{scale: scale}
	colWidth := float64(PageWidth-2*pagePadding-2*gridBorder) / gridColumns
	dishWidth := colWidth - 2*cellPadding - dishBarWidth - dishIndent
	labelWidth := colWidth - 2*cellPadding

	var dishLines [7][3][][]string
	var rowHeights [3]float64
	for m := range rowHeights {
		rowHeights[m] = minMealHeight
		label := probe.wrap(f.mealLabel, region.Meals[m], labelWidth)
		if h := float64(len(label))*mealLabelLine + 2*cellPadding; h > rowHeights[m] {
			rowHeights[m] = h
		}
	}
	for d, col := range region.Days {
		for m, names := range col.Meals {
			h := 2.0 * cellPadding
			for i, name := range names {
				lines := probe.wrap(f.dish, name, dishWidth)
				if len(lines) == 0 {
					lines = []string{""}
				}
				dishLines[d][m] = append(dishLines[d][m], lines)
				if i > 0 {
					h += dishGap
				}
				h += float64(len(lines))*dishLineHeight + 2*dishPadY
			}
			if h > rowHeights[m] {
				rowHeights[m] = h
			}
		}
	}

	headerHeight := float64(titleLine + 4 + subtitleLine + headerGap + headerRule)
	gridTop := pagePadding + headerHeight + sectionGap
	gridHeight := float64(headRowHeight) + rowHeights[0] + rowHeights[1] + rowHeights[2]
	footerTop := gridTop + gridHeight + 2*gridBorder + sectionGap
	pageHeight := footerTop + footerLine + pagePadding

	c := &canvas{
		img:   image.NewRGBA(image.Rect(0, 0, probe.px(PageWidth), probe.px(pageHeight))),
		scale: scale,
	}
	c.fill(0, 0, PageWidth, pageHeight, bg)

	// Header: title and month on the left, brand on the right, indigo rule.
	left := float64(pagePadding)
	right := float64(PageWidth - pagePadding)
	c.text(f.title, region.Title, left, pagePadding, colorIndigo900)
	c.text(f.subtitle, strings.ToUpper(region.Subtitle), left, pagePadding+titleLine+4, colorSlate500)
	brandY := pagePadding + headerHeight - headerRule - headerGap - float64(brandSize) - 6
	c.text(f.brand, region.Brand, right-c.width(f.brand, region.Brand), brandY, colorSlate400)
	c.fill(left, pagePadding+headerHeight-headerRule, right-left, headerRule, colorIndigo600)

	// Grid frame.
	c.fill(left, gridTop, right-left, gridHeight+2*gridBorder, colorSlate200)
	innerX := left + gridBorder
	innerY := gridTop + gridBorder

	cellX := func(col int) float64 { return innerX + float64(col)*colWidth }
	rowY := func(m int) float64 {
		y := innerY + headRowHeight
		for i := 0; i < m; i++ {
			y += rowHeights[i]
		}
		return y
	}

	// Header column.
	c.fill(cellX(0), innerY, colWidth-1, headRowHeight-1, colorSlate100)
	c.centered(f.corner, region.Corner, cellX(0), innerY, colWidth, headRowHeight, colorSlate400)
	for m := range region.Meals {
		c.fill(cellX(0), rowY(m), colWidth-1, rowHeights[m]-1, colorSlate50)
		lines := c.wrap(f.mealLabel, region.Meals[m], labelWidth)
		top := rowY(m) + (rowHeights[m]-float64(len(lines))*mealLabelLine)/2
		for i, line := range lines {
			c.centered(f.mealLabel, line, cellX(0), top+float64(i)*mealLabelLine, colWidth, mealLabelLine, colorSlate700)
		}
	}

	// Day columns.
	for d, col := range region.Days {
		x := cellX(d + 1)
		c.fill(x, innerY, colWidth-1, headRowHeight-1, colorIndigo600)
		c.fill(x+colWidth-1, innerY, 1, headRowHeight-1, colorIndigo700)
		c.centered(f.day, col.Header, x, innerY, colWidth, headRowHeight, color.White)
		for m := range col.Meals {
			c.fill(x, rowY(m), colWidth-1, rowHeights[m]-1, color.White)
			y := rowY(m) + cellPadding
			for _, lines := range dishLines[d][m] {
				h := float64(len(lines))*dishLineHeight + 2*dishPadY
				c.fill(x+cellPadding, y, dishBarWidth, h, colorIndigo400)
				for i, line := range lines {
					c.text(f.dish, line, x+cellPadding+dishBarWidth+dishIndent, y+dishPadY+float64(i)*dishLineHeight+(dishLineHeight-dishSize)/2, colorSlate800)
				}
				y += h + dishGap
			}
		}
	}

	c.centered(f.footer, region.Footer, 0, footerTop, PageWidth, footerLine, colorSlate400)
	return c.img, nil
}

// centered draws s centred in the logical box (x, y, w, h).
func (c *canvas) centered(tf *typeface, s string, x, y, w, h float64, col color.Color) {
	sw := c.width(tf, s)
	lineH := float64(tf.primary.Metrics().Height.Ceil()) / c.scale
	c.text(tf, s, x+(w-sw)/2, y+(h-lineH)/2, col)
}
