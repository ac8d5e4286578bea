package mock

import (
	"context"
	"crypto/sha256"
	"math"
	"sync"

	"github.com/saturnino-fabrica-de-software/facefind/internal/domain"
	"github.com/saturnino-fabrica-de-software/facefind/internal/provider"
)

const (
	embeddingDimension = 128
	minImageSize       = 100
)

// Provider implements provider.FaceProvider for tests and development.
// Every image has exactly one face whose encoding is derived from the image
// hash, so byte-identical images match and anything else does not. Script
// overrides that for specific images.
type Provider struct {
	mu       sync.RWMutex
	scripted map[[sha256.Size]byte][]provider.Encoding
}

func New() *Provider {
	return &Provider{
		scripted: make(map[[sha256.Size]byte][]provider.Encoding),
	}
}

// Script fixes the faces reported for image. Passing no encodings makes the
// image faceless.
func (p *Provider) Script(image []byte, encodings ...provider.Encoding) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripted[sha256.Sum256(image)] = encodings
}

func (p *Provider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	if len(image) < minImageSize {
		return nil, domain.ErrInvalidImage
	}

	p.mu.RLock()
	encodings, ok := p.scripted[sha256.Sum256(image)]
	p.mu.RUnlock()
	if !ok {
		encodings = []provider.Encoding{generateEmbedding(image)}
	}

	faces := make([]provider.DetectedFace, 0, len(encodings))
	for _, enc := range encodings {
		faces = append(faces, provider.DetectedFace{
			BoundingBox: provider.BoundingBox{
				X:      0.1,
				Y:      0.1,
				Width:  0.8,
				Height: 0.8,
			},
			Confidence: 0.99,
			Encoding:   enc,
		})
	}
	return faces, nil
}

func (p *Provider) EncodeFaces(ctx context.Context, image []byte, faces []provider.DetectedFace) ([]provider.Encoding, error) {
	return provider.EncodeFromDetections(faces)
}

func (p *Provider) Distance(a, b provider.Encoding) float64 {
	return provider.EuclideanDistance(a, b)
}

// generateEmbedding gera embedding determinístico baseado no hash da imagem
func generateEmbedding(image []byte) provider.Encoding {
	hash := sha256.Sum256(image)
	embedding := make(provider.Encoding, embeddingDimension)
	hashLen := len(hash)

	for i := 0; i < embeddingDimension; i++ {
		idx := i % hashLen
		//nolint:gosec // idx is always < hashLen due to modulo operation
		embedding[i] = (float64(hash[idx])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding
}

var _ provider.FaceProvider = (*Provider)(nil)
