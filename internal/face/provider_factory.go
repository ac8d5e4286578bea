package face

import (
	"fmt"

	"github.com/saturnino-fabrica-de-software/facefind/internal/config"
	"github.com/saturnino-fabrica-de-software/facefind/internal/provider"
	"github.com/saturnino-fabrica-de-software/facefind/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/facefind/internal/provider/dlib"
	"github.com/saturnino-fabrica-de-software/facefind/internal/provider/mock"
)

// ProviderType defines supported face recognition provider types
type ProviderType string

const (
	// ProviderTypeDlib runs dlib in-process; requires the dlib build tag
	ProviderTypeDlib ProviderType = "dlib"
	// ProviderTypeDeepFace calls a DeepFace HTTP service
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeMock derives encodings from image hashes, for dev/test
	ProviderTypeMock ProviderType = "mock"
)

// NewFaceProvider creates a FaceProvider instance based on configuration.
// Providers holding native resources also implement io.Closer.
//
// Environment variables:
//   - FACE_PROVIDER: "dlib", "deepface" or "mock" (default: "dlib")
//   - DLIB_MODELS_DIR: directory holding the dlib model files
//   - DEEPFACE_URL: DeepFace API URL (default: "http://localhost:5000")
func NewFaceProvider(cfg *config.Config) (provider.FaceProvider, error) {
	providerType := ProviderType(cfg.FaceProvider)

	switch providerType {
	case ProviderTypeDlib, "":
		return createDlibProvider(cfg)

	case ProviderTypeDeepFace:
		return createDeepFaceProvider(cfg), nil

	case ProviderTypeMock:
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
			cfg.FaceProvider, ProviderTypeDlib, ProviderTypeDeepFace, ProviderTypeMock)
	}
}

func createDlibProvider(cfg *config.Config) (provider.FaceProvider, error) {
	dlibConfig := dlib.DefaultConfig()
	if cfg.DlibModelsDir != "" {
		dlibConfig.ModelsDir = cfg.DlibModelsDir
	}

	prov, err := dlib.New(dlibConfig)
	if err != nil {
		return nil, fmt.Errorf("create dlib provider (models %s): %w", dlibConfig.ModelsDir, err)
	}

	return prov, nil
}

func createDeepFaceProvider(cfg *config.Config) provider.FaceProvider {
	deepfaceConfig := deepface.DefaultConfig()
	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}

	return deepface.NewProvider(deepfaceConfig)
}
