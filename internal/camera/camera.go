// Package camera reads frames from a local capture device.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/attendance-scanner/internal/config"
)

// ErrNoFrame is returned when the device is open but delivered no frame.
var ErrNoFrame = errors.New("camera returned no frame")

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("camera closed")

// Device is an open capture device. It is safe for one reader at a time;
// Close may be called from another goroutine.
type Device struct {
	mu     sync.Mutex
	index  int
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// Open opens the device and requests the configured resolution and frame
// rate. The driver may pick something else; see Info.
func Open(cfg config.CameraConfig) (*Device, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", cfg.Index, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("camera %d could not be opened", cfg.Index)
	}

	if cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}

	d := &Device{index: cfg.Index, cap: vc, mat: gocv.NewMat()}
	info := d.Info()
	slog.Info("camera opened", "index", cfg.Index, "width", info.Width, "height", info.Height, "fps", info.FPS)
	return d, nil
}

// Read blocks until the device delivers a frame.
func (d *Device) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if ok := d.cap.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, ErrNoFrame
	}
	img, err := d.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

// Info describes the device as currently configured.
func (d *Device) Info() Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	return describe(d.index, d.cap)
}

// Close releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.mat.Close()
	return d.cap.Close()
}
