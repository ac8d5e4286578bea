//go:build dlib

package dlib

import (
	"context"
	"fmt"
	"sync"

	face "github.com/Kagami/go-face"
	"github.com/saturnino-fabrica-de-software/facefind/internal/provider"
)

// Provider implements provider.FaceProvider with dlib's ResNet face model via
// go-face. Descriptors are 128-d and compared with Euclidean distance.
type Provider struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

func New(config Config) (*Provider, error) {
	rec, err := face.NewRecognizer(config.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	return &Provider{rec: rec}, nil
}

// DetectFaces expects JPEG input; the recognizer is not safe for concurrent use.
func (p *Provider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	found, err := p.rec.Recognize(image)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	faces := make([]provider.DetectedFace, 0, len(found))
	for _, f := range found {
		faces = append(faces, toDetectedFace(f.Rectangle, f.Descriptor))
	}
	return faces, nil
}

func (p *Provider) EncodeFaces(ctx context.Context, image []byte, faces []provider.DetectedFace) ([]provider.Encoding, error) {
	return provider.EncodeFromDetections(faces)
}

func (p *Provider) Distance(a, b provider.Encoding) float64 {
	return provider.EuclideanDistance(a, b)
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rec.Close()
	return nil
}

var _ provider.FaceProvider = (*Provider)(nil)
