//go:build !dlib

package dlib

import (
	"context"

	"github.com/saturnino-fabrica-de-software/facefind/internal/provider"
)

// Provider stands in for builds without the dlib tag. It constructs so the
// service can start, and every recognition call reports the backend as
// unavailable.
type Provider struct{}

func New(config Config) (*Provider, error) {
	return &Provider{}, nil
}

func (p *Provider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	return nil, provider.ErrBackendUnavailable
}

func (p *Provider) EncodeFaces(ctx context.Context, image []byte, faces []provider.DetectedFace) ([]provider.Encoding, error) {
	return nil, provider.ErrBackendUnavailable
}

func (p *Provider) Distance(a, b provider.Encoding) float64 {
	return provider.EuclideanDistance(a, b)
}

func (p *Provider) Close() error {
	return nil
}

var _ provider.FaceProvider = (*Provider)(nil)
