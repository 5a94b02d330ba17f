package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	InputPath    string // background frames: PDF or directory of images, optional
	ScenarioPath string
	OutputVideo  string
	TuningPath   string
	Width        int
	Height       int
	FPS          int
	Workers      int
	DPI          int
	Preset       string
	VideoEncoder string
	Quality      int
	Format       string // "video" or "png"
	Debug        bool
	ShowHUD      bool
	Stamp        bool
	ShowStats    bool
	Live         bool
	BuildVersion string
}

// FrameParams describes one output frame for the compositor and encoders.
type FrameParams struct {
	Width, Height int
	FPS           int
	Index         int
	Time          time.Duration
}

// FrameInterval returns the duration of one frame at fps.
func FrameInterval(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}

// ApplyPreset resolves a named aspect preset into output dimensions. Unknown
// presets leave width and height unchanged.
func ApplyPreset(preset string, width, height int) (int, int) {
	switch preset {
	case "16:9":
		return 1280, 720
	case "9:16":
		return 720, 1280
	case "4:5":
		return 1080, 1350
	case "phone":
		return 1080, 2340
	}
	return width, height
}

// DefaultLogFile is used when LIVEOVERLAY_LOG_FILE is not set.
const DefaultLogFile = "liveoverlay.log"

// LogSettings reads the logging destination and level from the environment.
func LogSettings() (string, slog.Level) {
	return getEnv("LIVEOVERLAY_LOG_FILE", DefaultLogFile),
		ParseLogLevel(getEnv("LIVEOVERLAY_LOG_LEVEL", "INFO"))
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// ParseLogLevel maps a level name to slog.Level. Unknown names yield Info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
