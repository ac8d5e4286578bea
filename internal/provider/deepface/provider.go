package deepface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/saturnino-fabrica-de-software/facefind/internal/provider"
)

// Provider implements provider.FaceProvider using DeepFace API. The service
// detects and represents in one call, so EncodeFaces reuses the embeddings
// returned by DetectFaces.
type Provider struct {
	client *Client
}

func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

func (p *Provider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	resp, err := p.client.Represent(ctx, image)
	if err != nil {
		if isNoFace(err) {
			return []provider.DetectedFace{}, nil
		}
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces := make([]provider.DetectedFace, 0, len(resp.Results))
	for _, result := range resp.Results {
		faces = append(faces, provider.DetectedFace{
			BoundingBox: provider.BoundingBox{
				X:      float64(result.FacialArea.X),
				Y:      float64(result.FacialArea.Y),
				Width:  float64(result.FacialArea.W),
				Height: float64(result.FacialArea.H),
			},
			Confidence: result.FaceConfidence,
			Encoding:   provider.Encoding(result.Embedding),
		})
	}

	return faces, nil
}

func (p *Provider) EncodeFaces(ctx context.Context, image []byte, faces []provider.DetectedFace) ([]provider.Encoding, error) {
	return provider.EncodeFromDetections(faces)
}

// Distance is the cosine distance; Facenet512 embeddings are not unit length.
func (p *Provider) Distance(a, b provider.Encoding) float64 {
	return provider.CosineDistance(a, b)
}

// isNoFace recognises DeepFace's enforce_detection rejection.
func isNoFace(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		return false
	}
	return strings.Contains(strings.ToLower(se.Body), "face could not be detected")
}

var _ provider.FaceProvider = (*Provider)(nil)
