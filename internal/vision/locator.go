// Package vision finds ID cards in camera frames and straightens them.
//
// Coordinates in a Candidate are relative to the frame's bounds origin.
package vision

import (
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

// Strategy selects how the locator separates a card from the background.
type Strategy string

const (
	// StrategyEdges runs Canny edge detection and accepts a wide range of
	// shapes, trading precision for recall.
	StrategyEdges Strategy = "edges"
	// StrategyAdaptive uses contrast-normalized adaptive thresholding with
	// stricter area and aspect limits, for uneven lighting.
	StrategyAdaptive Strategy = "adaptive"
)

// Aspect limits of the adaptive strategy, centered on the ID-1 card ratio (1.586).
const (
	adaptiveMinAspect = 1.2
	adaptiveMaxAspect = 2.0
)

// ParseStrategy validates a strategy name. Empty selects StrategyEdges.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyEdges:
		return StrategyEdges, nil
	case StrategyAdaptive:
		return StrategyAdaptive, nil
	}
	return "", fmt.Errorf("unknown card detection strategy %q (expected edges or adaptive)", s)
}

// Candidate is a card-shaped contour.
type Candidate struct {
	Contour []image.Point
	Area    float64
	Bounds  image.Rectangle
}

// Locator finds the largest card-shaped region in a frame.
type Locator struct {
	strategy Strategy
	minArea  float64
}

// NewLocator creates a locator. A non-positive minArea selects the strategy default.
func NewLocator(strategy Strategy, minArea int) *Locator {
	if strategy == "" {
		strategy = StrategyEdges
	}
	area := float64(minArea)
	if area <= 0 {
		area = constants.DefaultMinCardArea
		if strategy == StrategyAdaptive {
			area = constants.AdaptiveMinCardArea
		}
	}
	return &Locator{strategy: strategy, minArea: area}
}

// Strategy returns the configured strategy.
func (l *Locator) Strategy() Strategy {
	return l.strategy
}

// Locate returns the largest accepted candidate, or false when the frame
// holds nothing card-shaped. Internal failures are reported as no candidate.
func (l *Locator) Locate(frame image.Image) (best Candidate, found bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("card locator failed", "panic", r)
			best, found = Candidate{}, false
		}
	}()

	if frame == nil || frame.Bounds().Empty() {
		return Candidate{}, false
	}

	src, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		slog.Debug("failed to convert frame", "error", err)
		return Candidate{}, false
	}
	defer src.Close()

	binary := l.binarize(src)
	defer binary.Close()

	frameRect := image.Rect(0, 0, src.Cols(), src.Rows())

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		bounds := gocv.BoundingRect(contour)

		if !l.accept(area, bounds, frameRect) {
			continue
		}
		if !found || area > best.Area {
			best = Candidate{Contour: contour.ToPoints(), Area: area, Bounds: bounds}
			found = true
		}
	}

	return best, found
}

func (l *Locator) binarize(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	out := gocv.NewMat()

	if l.strategy == StrategyAdaptive {
		enhanced := gocv.NewMat()
		defer enhanced.Close()
		clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
		defer clahe.Close()
		clahe.Apply(gray, &enhanced)

		filtered := gocv.NewMat()
		defer filtered.Close()
		gocv.BilateralFilter(enhanced, &filtered, 9, 75, 75)

		// Dark card borders become foreground.
		gocv.AdaptiveThreshold(filtered, &out, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, 11, 2)
		return out
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	gocv.Canny(blurred, &out, 50, 150)
	return out
}

func (l *Locator) accept(area float64, bounds, frame image.Rectangle) bool {
	if l.strategy == StrategyAdaptive {
		return acceptAdaptive(area, bounds, frame, l.minArea)
	}
	return acceptEdges(area, bounds, l.minArea)
}

// acceptEdges accepts card-like aspect ratios, or large contours that fill
// most of their bounding box.
func acceptEdges(area float64, bounds image.Rectangle, minArea float64) bool {
	if area < minArea || bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return false
	}
	aspect := float64(bounds.Dx()) / float64(bounds.Dy())
	if aspect >= constants.MinCardAspect && aspect <= constants.MaxCardAspect {
		return true
	}
	extent := area / float64(bounds.Dx()*bounds.Dy())
	return area > constants.LenientAreaFactor*minArea && extent >= constants.MinCardExtent
}

// acceptAdaptive has no lenient path and ignores the frame outline itself,
// which thresholding can turn into one large contour.
func acceptAdaptive(area float64, bounds, frame image.Rectangle, minArea float64) bool {
	if area <= minArea || bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return false
	}
	if bounds.Dx() >= frame.Dx()-2 && bounds.Dy() >= frame.Dy()-2 {
		return false
	}
	aspect := float64(bounds.Dx()) / float64(bounds.Dy())
	return aspect >= adaptiveMinAspect && aspect <= adaptiveMaxAspect
}
