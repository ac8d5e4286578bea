//go:build dlib

package face

import (
	"strings"
	"testing"

	"github.com/saturnino-fabrica-de-software/facefind/internal/config"
)

func TestNewFaceProvider_Dlib(t *testing.T) {
	prov, err := NewFaceProvider(&config.Config{FaceProvider: "dlib", DlibModelsDir: t.TempDir()})

	// an empty models directory fails to load
	if err == nil {
		t.Fatalf("NewFaceProvider() expected error for empty models dir, got provider %T", prov)
	}
	if !strings.Contains(err.Error(), "create dlib provider") {
		t.Errorf("NewFaceProvider() error = %v, want dlib context", err)
	}
	if prov != nil {
		t.Errorf("NewFaceProvider() returned provider alongside error")
	}
}
