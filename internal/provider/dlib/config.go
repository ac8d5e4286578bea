package dlib

import (
	"image"

	"github.com/saturnino-fabrica-de-software/facefind/internal/provider"
)

// Config points the recognizer at the dlib model files
// (shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat,
// mmod_human_face_detector.dat).
type Config struct {
	ModelsDir string
}

func DefaultConfig() Config {
	return Config{ModelsDir: "./models"}
}

func toDetectedFace(rect image.Rectangle, descriptor [128]float32) provider.DetectedFace {
	enc := make(provider.Encoding, len(descriptor))
	for i, v := range descriptor {
		enc[i] = float64(v)
	}
	return provider.DetectedFace{
		BoundingBox: provider.BoundingBox{
			X:      float64(rect.Min.X),
			Y:      float64(rect.Min.Y),
			Width:  float64(rect.Dx()),
			Height: float64(rect.Dy()),
		},
		Confidence: 1,
		Encoding:   enc,
	}
}
