// Package barcode reads QR codes and 1D barcodes from frames.
package barcode

import (
	"image"
	"log/slog"
	"math"

	"github.com/makiuchi-d/gozxing"
	mqrcode "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/kozaktomas/attendance-scanner/internal/vision"
)

// Symbology distinguishes QR codes from every other format.
type Symbology int

const (
	SymbologyQR Symbology = iota
	SymbologyOther
)

func (s Symbology) String() string {
	if s == SymbologyQR {
		return "QR"
	}
	return "OTHER"
}

// Code is one decoded symbol.
type Code struct {
	Payload   string
	Symbology Symbology
	Format    string
	Polygon   []image.Point
}

// Decoder finds every supported symbol in a frame.
type Decoder struct {
	hints map[gozxing.DecodeHintType]any
}

// NewDecoder creates a decoder that tries QR, Code 128, Code 39, EAN-13 and ITF.
func NewDecoder() *Decoder {
	return &Decoder{
		hints: map[gozxing.DecodeHintType]any{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// linearReaders are created per call; gozxing readers keep state between
// decodes. Each returns at most one symbol of its format.
func linearReaders() []gozxing.Reader {
	return []gozxing.Reader{
		oned.NewCode128Reader(),
		oned.NewCode39Reader(),
		oned.NewEAN13Reader(),
		oned.NewITFReader(),
	}
}

// Decode returns all codes found in frame. The frame is first equalized and
// blurred; if that finds nothing, a sharpened high-contrast copy is tried.
// An empty result means no code was found.
func (d *Decoder) Decode(frame image.Image) []Code {
	if frame == nil || frame.Bounds().Empty() {
		return nil
	}

	prepared, err := vision.PrepareForDecode(frame)
	if err != nil {
		slog.Debug("preprocessing failed, decoding raw frame", "error", err)
		prepared = frame
	}
	if codes := d.scan(prepared); len(codes) > 0 {
		return codes
	}
	return d.scan(vision.Enhance(frame))
}

func (d *Decoder) scan(img image.Image) (codes []Code) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("barcode decoding failed", "panic", r)
			codes = nil
		}
	}()

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	add := func(result *gozxing.Result) {
		text := result.GetText()
		if text == "" || seen[text] {
			return
		}
		seen[text] = true

		format := result.GetBarcodeFormat()
		sym := SymbologyOther
		if format == gozxing.BarcodeFormat_QR_CODE {
			sym = SymbologyQR
		}
		codes = append(codes, Code{
			Payload:   text,
			Symbology: sym,
			Format:    format.String(),
			Polygon:   quad(polygon(result.GetResultPoints(), img.Bounds().Min)),
		})
	}

	for _, result := range d.qrCodes(bmp) {
		add(result)
	}
	for _, reader := range linearReaders() {
		result, err := reader.Decode(bmp, d.hints)
		if err != nil {
			continue
		}
		add(result)
	}
	return codes
}

// qrCodes returns every QR symbol in bmp, falling back to the single-symbol
// reader when the multi detector finds nothing.
func (d *Decoder) qrCodes(bmp *gozxing.BinaryBitmap) []*gozxing.Result {
	results, err := mqrcode.NewQRCodeMultiReader().DecodeMultiple(bmp, d.hints)
	if err == nil && len(results) > 0 {
		return results
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		return nil
	}
	return []*gozxing.Result{result}
}

func polygon(points []gozxing.ResultPoint, origin image.Point) []image.Point {
	out := make([]image.Point, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		out = append(out, image.Pt(
			int(math.Round(p.GetX()))-origin.X,
			int(math.Round(p.GetY()))-origin.Y,
		))
	}
	return out
}

// quad closes a partial outline into a rectangle. QR results carry the three
// finder centres and 1D results the two ends of the scan line, so anything
// short of four points is replaced by its bounding box, clockwise from the
// top-left corner.
func quad(points []image.Point) []image.Point {
	if len(points) == 0 || len(points) >= 4 {
		return points
	}
	r := image.Rectangle{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return []image.Point{
		r.Min,
		{r.Max.X, r.Min.Y},
		r.Max,
		{r.Min.X, r.Max.Y},
	}
}
