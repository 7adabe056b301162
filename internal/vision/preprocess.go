package vision

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// PrepareForDecode converts a frame to an equalized, lightly blurred
// grayscale image, which barcode readers handle better under uneven light.
func PrepareForDecode(frame image.Image) (image.Image, error) {
	src, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(equalized, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	img, err := blurred.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert preprocessed frame: %w", err)
	}
	return img, nil
}

// Enhance sharpens and boosts contrast. It is the second attempt for
// frames where the standard preprocessing finds no code.
func Enhance(frame image.Image) image.Image {
	gray := imaging.Grayscale(frame)
	sharp := imaging.Sharpen(gray, 1.5)
	return imaging.AdjustContrast(sharp, 40)
}

// DecodeImage reads an uploaded image, honoring EXIF orientation.
// JPEG, PNG, GIF, BMP and WebP are supported.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decode image: %w", ErrEmptyRegion)
	}
	return img, nil
}

// DecodeImageBytes is DecodeImage over a byte slice.
func DecodeImageBytes(data []byte) (image.Image, error) {
	return DecodeImage(bytes.NewReader(data))
}

// SaveDebugImage writes img as a timestamped JPEG under dir and returns its path.
func SaveDebugImage(dir, prefix string, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create debug directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.jpg", prefix, time.Now().Format("20060102_150405.000"))
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("save debug image: %w", err)
	}
	return path, nil
}
