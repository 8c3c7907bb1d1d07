package export

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

type weight int

const (
	weightRegular weight = iota
	weightMedium
	weightBold
)

// Fonts is the set of typefaces the raster renderer draws with. The Go fonts
// cover Latin text; a fallback font, when loaded, supplies glyphs the Go
// fonts lack (CJK dish names and labels).
type Fonts struct {
	faces    [3]*opentype.Font
	fallback *opentype.Font
}

// DefaultFonts returns the Go font family without a fallback.
func DefaultFonts() (*Fonts, error) {
	f := &Fonts{}
	for i, src := range [][]byte{goregular.TTF, gomedium.TTF, gobold.TTF} {
		parsed, err := opentype.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in font: %w", err)
		}
		f.faces[i] = parsed
	}
	return f, nil
}

// LoadFonts returns DefaultFonts plus the TTF/OTF file at fallbackPath. An
// empty path loads no fallback.
func LoadFonts(fallbackPath string) (*Fonts, error) {
	f, err := DefaultFonts()
	if err != nil {
		return nil, err
	}
	if fallbackPath == "" {
		return f, nil
	}
	data, err := os.ReadFile(fallbackPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", fallbackPath, err)
	}
	if err := f.SetFallback(data); err != nil {
		return nil, fmt.Errorf("failed to load font %s: %w", fallbackPath, err)
	}
	return f, nil
}

// SetFallback parses a TTF or OTF font used for runes the Go fonts lack.
func (f *Fonts) SetFallback(data []byte) error {
	parsed, err := opentype.Parse(data)
	if err != nil {
		return err
	}
	f.fallback = parsed
	return nil
}

func hasGlyph(f *opentype.Font, r rune) bool {
	if f == nil {
		return false
	}
	var buf sfnt.Buffer
	idx, err := f.GlyphIndex(&buf, r)
	return err == nil && idx != 0
}

// typeface draws text in one weight and size, switching to the fallback
// face rune by rune.
type typeface struct {
	primaryFont *opentype.Font
	primary     font.Face
	fallback    font.Face
	fallbackFnt *opentype.Font
}

func (f *Fonts) face(w weight, size float64) (*typeface, error) {
	opts := &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull}
	primary, err := opentype.NewFace(f.faces[w], opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	tf := &typeface{primaryFont: f.faces[w], primary: primary}
	if f.fallback != nil {
		fb, err := opentype.NewFace(f.fallback, opts)
		if err != nil {
			primary.Close()
			return nil, fmt.Errorf("failed to create fallback face: %w", err)
		}
		tf.fallback = fb
		tf.fallbackFnt = f.fallback
	}
	return tf, nil
}

func (tf *typeface) Close() {
	tf.primary.Close()
	if tf.fallback != nil {
		tf.fallback.Close()
	}
}

type run struct {
	face font.Face
	text string
}

// runs splits s into maximal spans drawn by the same face.
func (tf *typeface) runs(s string) []run {
	var out []run
	var cur font.Face
	start := 0
	for i, r := range s {
		f := tf.primary
		if tf.fallback != nil && !hasGlyph(tf.primaryFont, r) && hasGlyph(tf.fallbackFnt, r) {
			f = tf.fallback
		}
		if f != cur && i > start {
			out = append(out, run{face: cur, text: s[start:i]})
			start = i
		}
		cur = f
	}
	if start < len(s) {
		out = append(out, run{face: cur, text: s[start:]})
	}
	return out
}

func (tf *typeface) measure(s string) fixed.Int26_6 {
	var w fixed.Int26_6
	for _, r := range tf.runs(s) {
		w += font.MeasureString(r.face, r.text)
	}
	return w
}

func (tf *typeface) ascent() fixed.Int26_6 {
	a := tf.primary.Metrics().Ascent
	if tf.fallback != nil {
		if fa := tf.fallback.Metrics().Ascent; fa > a {
			a = fa
		}
	}
	return a
}
