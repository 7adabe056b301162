package camera

import (
	"log/slog"

	"gocv.io/x/gocv"
)

// MaxProbeIndex is the number of device indices Probe tries.
const MaxProbeIndex = 10

// Info describes a capture device.
type Info struct {
	Index  int     `json:"index"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
	Kind   string  `json:"kind"`
}

// Probe opens device indices 0..MaxProbeIndex-1 and returns the ones that
// deliver a frame.
func Probe() []Info {
	var found []Info
	for i := range MaxProbeIndex {
		if info, ok := probeOne(i); ok {
			found = append(found, info)
		}
	}
	return found
}

func probeOne(index int) (Info, bool) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return Info{}, false
	}
	defer vc.Close()
	if !vc.IsOpened() {
		return Info{}, false
	}

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := vc.Read(&mat); !ok || mat.Empty() {
		slog.Debug("camera opened but delivered no frame", "index", index)
		return Info{}, false
	}
	return describe(index, vc), true
}

func describe(index int, vc *gocv.VideoCapture) Info {
	info := Info{
		Index:  index,
		Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FPS:    vc.Get(gocv.VideoCaptureFPS),
	}
	info.Kind = guessKind(info)
	return info
}

// guessKind labels a device from its index and native resolution. Laptops
// expose the built-in camera first; HD-capable later indices are usually
// USB document or webcams.
func guessKind(info Info) string {
	switch {
	case info.Index == 0:
		return "built-in"
	case info.Width >= 1920:
		return "external (full HD)"
	case info.Width >= 1280:
		return "external (HD)"
	default:
		return "external"
	}
}
