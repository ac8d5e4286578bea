// Package imageio normalises photos for the face backends: every accepted
// image leaves Load as a JPEG, optionally downscaled.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"golang.org/x/image/draw"
)

const jpegQuality = 90

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrCorruptImage     = errors.New("corrupt image")
)

var candidateExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// IsCandidate reports whether name has an allow-listed image extension.
func IsCandidate(name string) bool {
	_, ok := candidateExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Loader reads images from disk. The zero value keeps original dimensions.
type Loader struct {
	MaxDimension int
}

func (l Loader) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return l.Normalize(data)
}

// Normalize decodes JPEG or PNG bytes and re-encodes them as JPEG.
func (l Loader) Normalize(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	if l.MaxDimension > 0 {
		img = fit(img, l.MaxDimension)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Sniff returns the MIME type of data if it is an accepted image format.
func Sniff(data []byte) (string, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	switch kind {
	case matchers.TypeJpeg, matchers.TypePng:
		return kind.MIME.Value, nil
	}
	if kind == filetype.Unknown {
		return "", ErrUnsupportedImage
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, kind.MIME.Value)
}

func decode(data []byte) (image.Image, error) {
	mime, err := Sniff(data)
	if err != nil {
		return nil, err
	}

	var img image.Image
	switch mime {
	case "image/png":
		img, err = png.Decode(bytes.NewReader(data))
	default:
		img, err = jpeg.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	return img, nil
}

// fit scales img down so neither side exceeds maxSize, keeping aspect ratio.
func fit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}
