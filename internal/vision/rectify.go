package vision

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/kozaktomas/attendance-scanner/internal/constants"
)

// ErrEmptyRegion is returned when a candidate covers no pixels of the frame.
var ErrEmptyRegion = errors.New("candidate region is empty")

// Quad holds four corners ordered top-left, top-right, bottom-right, bottom-left.
type Quad [4]image.Point

// OrderCorners sorts four points into a Quad. The two leftmost points form
// the left edge and the two rightmost the right edge; within each edge the
// upper point comes first.
func OrderCorners(pts [4]image.Point) Quad {
	sorted := pts
	sort.SliceStable(sorted[:], func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	left := sorted[:2]
	right := sorted[2:]
	if left[0].Y > left[1].Y {
		left[0], left[1] = left[1], left[0]
	}
	if right[0].Y > right[1].Y {
		right[0], right[1] = right[1], right[0]
	}
	return Quad{left[0], right[0], right[1], left[1]}
}

// Size returns the upright output size: the longer of the two horizontal
// edges by the longer of the two vertical edges. Corners are pixel centers,
// so an edge spanning n pixels measures n-1 and yields n.
func (q Quad) Size() (int, int) {
	w := math.Max(dist(q[0], q[1]), dist(q[3], q[2]))
	h := math.Max(dist(q[0], q[3]), dist(q[1], q[2]))
	return int(math.Round(w)) + 1, int(math.Round(h)) + 1
}

func dist(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// Rectify returns the candidate region as an upright image. A contour that
// simplifies to four corners is perspective-corrected; anything else is
// cropped to its bounding box.
func Rectify(frame image.Image, c Candidate) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = crop(frame, c.Bounds)
		}
	}()

	if frame == nil {
		return nil, ErrEmptyRegion
	}

	if quad, ok := approximateQuad(c.Contour); ok {
		if img, err := warp(frame, quad); err == nil {
			return img, nil
		}
	}
	return crop(frame, c.Bounds)
}

func approximateQuad(contour []image.Point) (Quad, bool) {
	if len(contour) < 4 {
		return Quad{}, false
	}
	pv := gocv.NewPointVectorFromPoints(contour)
	defer pv.Close()

	epsilon := constants.PolygonEpsilonFactor * gocv.ArcLength(pv, true)
	approx := gocv.ApproxPolyDP(pv, epsilon, true)
	defer approx.Close()

	if approx.Size() != 4 {
		return Quad{}, false
	}
	pts := approx.ToPoints()
	return OrderCorners([4]image.Point{pts[0], pts[1], pts[2], pts[3]}), true
}

func warp(frame image.Image, q Quad) (image.Image, error) {
	w, h := q.Size()
	if w < 2 || h < 2 {
		return nil, ErrEmptyRegion
	}

	src, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer src.Close()

	from := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: float32(q[0].X), Y: float32(q[0].Y)},
		{X: float32(q[1].X), Y: float32(q[1].Y)},
		{X: float32(q[2].X), Y: float32(q[2].Y)},
		{X: float32(q[3].X), Y: float32(q[3].Y)},
	})
	defer from.Close()
	to := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: float32(w - 1), Y: 0},
		{X: float32(w - 1), Y: float32(h - 1)},
		{X: 0, Y: float32(h - 1)},
	})
	defer to.Close()

	m := gocv.GetPerspectiveTransform2f(from, to)
	defer m.Close()

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspective(src, &warped, m, image.Pt(w, h))
	if warped.Empty() {
		return nil, ErrEmptyRegion
	}

	img, err := warped.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert warped region: %w", err)
	}
	return img, nil
}

func crop(frame image.Image, bounds image.Rectangle) (image.Image, error) {
	if frame == nil {
		return nil, ErrEmptyRegion
	}
	rect := bounds.Add(frame.Bounds().Min).Intersect(frame.Bounds())
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}
	return imaging.Crop(frame, rect), nil
}
