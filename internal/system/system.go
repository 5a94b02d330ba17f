package system

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"
)

// InitResourceLimits raises the open file limit; every PDF frame opens its
// own document handle.
func InitResourceLimits(logger *slog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("[!] Не удалось получить лимит файлов", "error", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("[!] Не удалось установить лимит файлов", "error", err)
		return
	}
	logger.Debug("[*] Лимит открытых файлов увеличен", "limit", rLimit.Cur)
}

var (
	PDFExtensions      = []string{".pdf"}
	ImageExtensions    = []string{".jpg", ".jpeg", ".png"}
	ScenarioExtensions = []string{".yaml", ".yml"}
)

// FindLatest returns the most recently modified file in dir whose extension
// is one of exts. If dir names a file, its directory is searched.
func FindLatest(dir string, exts ...string) (string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		dir = filepath.Dir(dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || !slices.Contains(exts, strings.ToLower(filepath.Ext(entry.Name()))) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latestFile == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, entry.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено файлов %s", dir, strings.Join(exts, ", "))
	}
	return latestFile, nil
}

func FindLatestPDF(dir string) (string, error) {
	return FindLatest(dir, PDFExtensions...)
}

func FindLatestImage(dir string) (string, error) {
	return FindLatest(dir, ImageExtensions...)
}

func FindLatestScenario(dir string) (string, error) {
	return FindLatest(dir, ScenarioExtensions...)
}

// Hardware encoders in order of preference; libx264 is the fallback.
var hardwareEncoders = []string{"h264_videotoolbox", "h264_nvenc"}

// GetBestH264Encoder asks ffmpeg for its encoder list once and picks the
// first available hardware encoder.
func GetBestH264Encoder(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(list string) string {
	for _, name := range hardwareEncoders {
		if strings.Contains(list, name) {
			return name
		}
	}
	return "libx264"
}
