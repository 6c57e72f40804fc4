package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendLocal, cfg.DetectionBackend)
	assert.Equal(t, "fast", cfg.FacePreset)
	assert.Equal(t, []string{"eng"}, cfg.OCRLanguages)
	assert.Empty(t, cfg.FrontKeywords)
	assert.Equal(t, 10*time.Minute, cfg.CaptureTTL)
	assert.Equal(t, 20*time.Second, cfg.DetectionTimeout)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DETECTION_BACKEND", "GRPC")
	t.Setenv("VISION_ADDR", "vision:9000")
	t.Setenv("FACE_PRESET", "accurate")
	t.Setenv("OCR_LANGUAGES", "eng, rus")
	t.Setenv("FRONT_KEYWORDS", "National ID, ")
	t.Setenv("CAPTURE_TTL", "90s")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendGRPC, cfg.DetectionBackend)
	assert.Equal(t, "vision:9000", cfg.VisionAddr)
	assert.Equal(t, "accurate", cfg.FacePreset)
	assert.Equal(t, []string{"eng", "rus"}, cfg.OCRLanguages)
	assert.Equal(t, []string{"national id"}, cfg.FrontKeywords)
	assert.Equal(t, 90*time.Second, cfg.CaptureTTL)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"DETECTION_BACKEND": "cloud",
		"FACE_PRESET":       "slow",
		"CAPTURE_TTL":       "soon",
		"MAX_UPLOAD_BYTES":  "-1",
		"REDIS_ADDR":        "redis",
		"LOG_LEVEL":         "verbose",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadCheckerSkipsServerSettings(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis")
	t.Setenv("CAPTURE_TTL", "soon")
	t.Setenv("FACE_PRESET", "accurate")

	checker, err := LoadChecker()
	require.NoError(t, err)
	assert.Equal(t, "accurate", checker.FacePreset)

	_, err = Load()
	assert.Error(t, err)

	t.Setenv("DETECTION_BACKEND", "cloud")
	_, err = LoadChecker()
	assert.Error(t, err)
}

func TestLoadRequiresOCRLanguage(t *testing.T) {
	t.Setenv("OCR_LANGUAGES", " , ")

	_, err := Load()
	assert.Error(t, err)
}
