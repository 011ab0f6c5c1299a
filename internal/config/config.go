// Package config handles daemon configuration
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/koizumiiiii/Baketa-sub013/internal/detect"
)

type Config struct {
	HTTPAddr           string
	CaptureRate        float64 // captures per second
	WindowHandle       int64   // identifies the monitored surface in events
	RecognitionEnabled bool
	Detection          detect.Settings
}

func Load() *Config {
	return &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8000"),
		CaptureRate:        getEnvFloat("MONITOR_CAPTURE_RATE", 1.0),
		WindowHandle:       getEnvInt64("MONITOR_WINDOW_HANDLE", 0),
		RecognitionEnabled: getEnvBool("MONITOR_RECOGNITION_ENABLED", true),
		Detection:          loadDetection(),
	}
}

// loadDetection overlays DETECT_* variables onto the default settings.
// Values are range-checked later, when the detector is constructed.
func loadDetection() detect.Settings {
	s := detect.DefaultSettings()
	s.Threshold = getEnvFloat("DETECT_THRESHOLD", s.Threshold)
	s.Algorithm = getEnvKind("DETECT_ALGORITHM", s.Algorithm)
	s.BlockSize = getEnvInt("DETECT_BLOCK_SIZE", s.BlockSize)
	s.SamplingDensity = getEnvInt("DETECT_SAMPLING_DENSITY", s.SamplingDensity)
	s.MinimumChangedArea = getEnvInt("DETECT_MIN_CHANGED_AREA", s.MinimumChangedArea)
	s.FocusOnTextRegions = getEnvBool("DETECT_FOCUS_TEXT_REGIONS", s.FocusOnTextRegions)
	s.EdgeChangeWeight = getEnvFloat("DETECT_EDGE_CHANGE_WEIGHT", s.EdgeChangeWeight)
	s.IgnoreLightingChanges = getEnvBool("DETECT_IGNORE_LIGHTING", s.IgnoreLightingChanges)
	s.ScaleCount = getEnvInt("DETECT_SCALE_COUNT", s.ScaleCount)
	return s
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvKind(key string, def detect.Kind) detect.Kind {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	k, err := detect.ParseKind(v)
	if err != nil {
		slog.Warn("unknown detection algorithm, using default", "value", v, "default", def)
		return def
	}
	return k
}
