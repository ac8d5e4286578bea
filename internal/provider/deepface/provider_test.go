package deepface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/saturnino-fabrica-de-software/facefind/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderImplementsInterface(t *testing.T) {
	var _ provider.FaceProvider = (*Provider)(nil)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewProvider(testConfig(server.URL))
}

func TestProvider_DetectFaces(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(RepresentResponse{
			Results: []RepresentResult{
				{
					Embedding:      []float64{0.1, 0.2, 0.3},
					FacialArea:     FacialArea{X: 10, Y: 20, W: 30, H: 40},
					FaceConfidence: 0.97,
				},
				{
					Embedding:  []float64{0.3, 0.2, 0.1},
					FacialArea: FacialArea{X: 50, Y: 60, W: 30, H: 40},
				},
			},
		})
	})

	faces, err := p.DetectFaces(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	require.Len(t, faces, 2)

	assert.Equal(t, provider.BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}, faces[0].BoundingBox)
	assert.Equal(t, 0.97, faces[0].Confidence)
	assert.Equal(t, provider.Encoding{0.1, 0.2, 0.3}, faces[0].Encoding)

	encodings, err := p.EncodeFaces(context.Background(), []byte("jpeg"), faces)
	require.NoError(t, err)
	require.Len(t, encodings, 2)
	assert.Equal(t, provider.Encoding{0.3, 0.2, 0.1}, encodings[1])
}

func TestProvider_DetectFaces_NoFace(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "Exception while representing: Face could not be detected in numpy array.",
		})
	})

	faces, err := p.DetectFaces(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestProvider_DetectFaces_ClientError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "img must be a base64 string"})
	})

	_, err := p.DetectFaces(context.Background(), []byte("jpeg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detect faces")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestProvider_Distance(t *testing.T) {
	p := NewProvider(DefaultConfig())

	assert.InDelta(t, 0.0, p.Distance(provider.Encoding{1, 1}, provider.Encoding{2, 2}), 1e-9)
	assert.InDelta(t, 1.0, p.Distance(provider.Encoding{1, 0}, provider.Encoding{0, 1}), 1e-9)
}
