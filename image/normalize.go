// Package image validates and normalizes photo attachments before upload.
// Validation failures are hard rejections; normalization failures are not:
// the original bytes are always a usable fallback.
package image

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"strings"

	_ "image/png"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/webp"
)

const (
	// MaxUploadBytes is the hard cap on attachment size.
	MaxUploadBytes = 5 * 1024 * 1024
	// maxDimension is the longest edge after normalization.
	maxDimension = 1600
	// jpegQuality matches the original widget's 0.82 canvas quality.
	jpegQuality = 82
)

// Validation errors reported to the user.
var (
	ErrTooLarge          = errors.New("image exceeds the 5 MiB limit")
	ErrUnsupportedFormat = errors.New("unsupported image format, allowed: JPEG/PNG/WEBP/HEIC")
)

// Result is the attachment that will actually be uploaded.
type Result struct {
	Data        []byte
	Name        string
	ContentType string
	Resized     bool
}

// Validate rejects oversized blobs and anything whose leading bytes do not
// match a recognized image signature. The declared MIME type is ignored on
// purpose: extensions and Content-Type headers are trivial to spoof.
func Validate(data []byte) error {
	if len(data) > MaxUploadBytes {
		return ErrTooLarge
	}
	if !hasKnownSignature(data) {
		return ErrUnsupportedFormat
	}
	return nil
}

func hasKnownSignature(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	isJPEG := data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
	isPNG := data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47
	isWEBP := bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
	isHEIC := bytes.Equal(data[4:8], []byte("ftyp"))
	return isJPEG || isPNG || isWEBP || isHEIC
}

// Normalize validates data and, when possible, downsizes it so the longer
// edge is at most 1600px and re-encodes as JPEG. Decode or encode failures
// never fail the call: the original blob is returned unchanged. The
// re-encoded version only replaces the original when it is strictly smaller.
func Normalize(data []byte, name string) (Result, error) {
	if err := Validate(data); err != nil {
		return Result{}, err
	}

	original := Result{Data: data, Name: name, ContentType: sniffContentType(data)}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// HEIC lands here: there is no decoder for it, so it uploads as-is.
		log.Warnf("Unable to decode image %s, using original file: %v", name, err)
		return original, nil
	}

	if format == "jpeg" {
		if o := orientation(data); o != 1 {
			img = correctOrientation(img, o)
		}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	targetW, targetH := width, height
	if longest := max(width, height); longest > maxDimension {
		scale := float64(maxDimension) / float64(longest)
		targetW = int(float64(width)*scale + 0.5)
		targetH = int(float64(height)*scale + 0.5)
		// Rounding must never push the longer edge past the cap.
		if width >= height {
			targetW = maxDimension
		} else {
			targetH = maxDimension
		}
	}

	scaled := img
	if targetW != width || targetH != height {
		dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
		scaled = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		log.Warnf("Unable to re-encode image %s, using original file: %v", name, err)
		return original, nil
	}

	encoded := buf.Bytes()
	if len(encoded) == 0 || len(encoded) >= len(data) {
		return original, nil
	}

	log.Infof("Image normalized: %d bytes -> %d bytes (%dx%d -> %dx%d)",
		len(data), len(encoded), width, height, targetW, targetH)

	return Result{
		Data:        encoded,
		Name:        jpegName(name),
		ContentType: "image/jpeg",
		Resized:     true,
	}, nil
}

// jpegName swaps the extension for .jpg, mirroring the original widget's
// file rename after canvas re-encoding.
func jpegName(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name + ".jpg"
}

func sniffContentType(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50:
		return "image/png"
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// orientation extracts the EXIF orientation tag, defaulting to 1.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// correctOrientation rewrites the pixels so the image displays upright
// without relying on the EXIF tag, which is lost on re-encode.
func correctOrientation(img image.Image, o int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	// Orientations 5-8 swap the axes.
	outW, outH := w, h
	if o >= 5 {
		outW, outH = h, w
	}

	// src maps a destination pixel back to its source pixel.
	var src func(dx, dy int) (int, int)
	switch o {
	case 2: // flip horizontal
		src = func(dx, dy int) (int, int) { return w - 1 - dx, dy }
	case 3: // rotate 180
		src = func(dx, dy int) (int, int) { return w - 1 - dx, h - 1 - dy }
	case 4: // flip vertical
		src = func(dx, dy int) (int, int) { return dx, h - 1 - dy }
	case 5: // transpose
		src = func(dx, dy int) (int, int) { return dy, dx }
	case 6: // rotate 90 CW
		src = func(dx, dy int) (int, int) { return dy, h - 1 - dx }
	case 7: // transverse
		src = func(dx, dy int) (int, int) { return w - 1 - dy, h - 1 - dx }
	case 8: // rotate 90 CCW
		src = func(dx, dy int) (int, int) { return w - 1 - dy, dx }
	default:
		return img
	}

	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for dy := 0; dy < outH; dy++ {
		for dx := 0; dx < outW; dx++ {
			sx, sy := src(dx, dy)
			out.Set(dx, dy, img.At(bounds.Min.X+sx, bounds.Min.Y+sy))
		}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
