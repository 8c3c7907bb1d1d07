// Package export snapshots a board's print layout to a JPEG and hands it to a
// download sink.
package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"time"
)

// RenderOptions configures the rendering collaborator.
type RenderOptions struct {
	Scale      float64
	UseCORS    bool
	Background color.Color
}

// DefaultRenderOptions renders at 2x on opaque white.
var DefaultRenderOptions = RenderOptions{Scale: 2, UseCORS: true, Background: color.White}

// JPEGQuality is the encoder quality of every export (0.9 on a 0..1 scale).
const JPEGQuality = 90

// Renderer turns a laid-out region into a bitmap.
type Renderer interface {
	Render(ctx context.Context, region *Region, opts RenderOptions) (image.Image, error)
}

// Result describes one finished export.
type Result struct {
	Filename string
	Data     []byte
	Width    int
	Height   int
	Elapsed  time.Duration
}

// Skipped reports whether the export was skipped because there was no region.
func (r Result) Skipped() bool { return r.Filename == "" }

// Exporter renders regions, encodes them and delivers the file.
type Exporter struct {
	renderer Renderer
	sink     Sink
	opts     RenderOptions
	now      func() time.Time
}

type Option func(*Exporter)

// WithClock replaces time.Now for filenames.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

func WithRenderOptions(opts RenderOptions) Option {
	return func(e *Exporter) { e.opts = opts }
}

// NewExporter creates an Exporter. sink may be nil, in which case Export only
// returns the encoded file.
func NewExporter(renderer Renderer, sink Sink, opts ...Option) *Exporter {
	e := &Exporter{
		renderer: renderer,
		sink:     sink,
		opts:     DefaultRenderOptions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Filename names an export taken at t: meal-plan-<unix-ms>.jpg.
func Filename(t time.Time) string {
	return fmt.Sprintf("meal-plan-%d.jpg", t.UnixMilli())
}

// Export renders region and delivers it to the exporter's sink.
func (e *Exporter) Export(ctx context.Context, region *Region) (Result, error) {
	return e.ExportTo(ctx, region, e.sink)
}

// ExportTo renders region and delivers it to sink. A nil region means the
// layout is not mounted yet and the call is skipped without error.
func (e *Exporter) ExportTo(ctx context.Context, region *Region, sink Sink) (Result, error) {
	if region == nil {
		return Result{}, nil
	}
	start := time.Now()
	filename := Filename(e.now())

	img, err := e.renderer.Render(ctx, region, e.opts)
	if err != nil {
		return Result{}, fmt.Errorf("failed to render board: %w", err)
	}

	data, err := EncodeJPEG(img)
	if err != nil {
		return Result{}, err
	}

	b := img.Bounds()
	res := Result{
		Filename: filename,
		Data:     data,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}

	if sink != nil {
		if err := sink.Deliver(ctx, filename, data); err != nil {
			return res, fmt.Errorf("failed to deliver %s: %w", filename, err)
		}
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// EncodeJPEG encodes img at JPEGQuality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL returns data as a data:image/jpeg;base64 URL.
func DataURL(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}
