package provider

import (
	"context"
	"errors"
	"fmt"
)

// Encoding is the fixed-length feature vector a backend computes for one face.
type Encoding []float64

// FaceProvider is the face oracle the matcher depends on. Implementations are
// treated as opaque: their accuracy and determinism are inherited.
type FaceProvider interface {
	// DetectFaces returns every face found in a JPEG image.
	DetectFaces(ctx context.Context, image []byte) ([]DetectedFace, error)

	// EncodeFaces returns one encoding per face, in the order given.
	EncodeFaces(ctx context.Context, image []byte, faces []DetectedFace) ([]Encoding, error)

	// Distance compares two encodings. Zero means identical; the matcher
	// derives similarity as 1 - distance.
	Distance(a, b Encoding) float64
}

// DetectedFace represents a detected face in the image. Backends that detect
// and encode in one pass populate Encoding so EncodeFaces can skip a second
// round trip.
type DetectedFace struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
	Encoding    Encoding    `json:"-"`
}

// BoundingBox represents the face area in the image, in pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var (
	ErrBackendUnavailable = errors.New("face backend unavailable")
	ErrDimensionMismatch  = errors.New("encoding dimensions differ")
)

// EncodeFromDetections returns the encodings already attached to faces. It is
// the EncodeFaces implementation for single-pass backends.
func EncodeFromDetections(faces []DetectedFace) ([]Encoding, error) {
	encodings := make([]Encoding, 0, len(faces))
	for i, f := range faces {
		if len(f.Encoding) == 0 {
			return nil, fmt.Errorf("face %d has no encoding", i)
		}
		encodings = append(encodings, f.Encoding)
	}
	return encodings, nil
}
