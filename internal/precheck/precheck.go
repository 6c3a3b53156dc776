// Package precheck rejects photos that cannot be scored before they are sent
// to the paid inference API, and normalises the rest for upload.
package precheck

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	apperrors "split-the-g/internal/errors"
)

type Thresholds struct {
	// MinSide is the smallest accepted short edge in pixels
	MinSide int
	// MinSharpness is the smallest Laplacian variance accepted; 0 disables the check
	MinSharpness float64
	// MaxSide bounds the long edge of the normalised JPEG
	MaxSide int
}

// MaxPixels caps the declared size of an upload so a small file cannot
// claim a canvas that exhausts memory on decode.
const MaxPixels = 40_000_000

func DefaultThresholds() Thresholds {
	return Thresholds{MinSide: 256, MinSharpness: 10, MaxSide: 1280}
}

// Prepared is a photo ready for the inference API
type Prepared struct {
	JPEG      []byte
	Width     int
	Height    int
	Format    string
	Sharpness float64
}

type Checker struct {
	thresholds Thresholds
}

func NewChecker(t Thresholds) *Checker {
	return &Checker{thresholds: t}
}

// Prepare decodes, validates and re-encodes an uploaded photo
func (c *Checker) Prepare(data []byte) (*Prepared, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if min(b.Dx(), b.Dy()) < c.thresholds.MinSide {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("photo is too small: %dx%d, need at least %dpx on the short side", b.Dx(), b.Dy(), c.thresholds.MinSide), nil)
	}

	img = downscale(img, c.thresholds.MaxSide)

	sharpness := LaplacianVariance(toGray(img))
	if c.thresholds.MinSharpness > 0 && sharpness < c.thresholds.MinSharpness {
		return nil, apperrors.NewValidationError("photo is too blurry, hold the camera still and try again", nil).
			WithDetails(fmt.Sprintf("laplacian variance %.2f < %.2f", sharpness, c.thresholds.MinSharpness))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, apperrors.NewInternalError("encode photo", err)
	}

	nb := img.Bounds()
	return &Prepared{
		JPEG:      buf.Bytes(),
		Width:     nb.Dx(),
		Height:    nb.Dy(),
		Format:    format,
		Sharpness: sharpness,
	}, nil
}

// Decode reads a JPEG, PNG or WebP image
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", apperrors.NewValidationError("photo is empty", nil)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.NewValidationError("photo is not a JPEG, PNG or WebP image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", apperrors.NewValidationError(
			fmt.Sprintf("photo is too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels), nil)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.NewValidationError("photo is not a JPEG, PNG or WebP image", err)
	}
	return img, format, nil
}

// downscale shrinks img so its long side is at most maxSide
func downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	long := max(b.Dx(), b.Dy())
	if maxSide <= 0 || long <= maxSide {
		return img
	}

	w := b.Dx() * maxSide / long
	h := b.Dy() * maxSide / long
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}
