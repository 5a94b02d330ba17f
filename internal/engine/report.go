package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/liveoverlay/internal/system"
	"github.com/ivlev/liveoverlay/internal/tracker"
)

// Report summarises one run.
type Report struct {
	SessionID       string
	Build           string
	Input           string
	Frames          int           // output frames written
	DetectionFrames int           // detection frames ingested
	Dropped         int           // detection frames replaced before ingest
	VideoDuration   time.Duration // length of the output
	Elapsed         time.Duration
	Tracker         tracker.Stats
	System          system.Stats
}

// EffectiveFPS is output frames per second of wall time.
func (r Report) EffectiveFPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Elapsed.Seconds()
}

func (r Report) String() string {
	var b strings.Builder
	b.WriteString("--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(&b, "Session: %s\n", r.SessionID)
	fmt.Fprintf(&b, "Build: %s\n", r.Build)
	fmt.Fprintf(&b, "Total Time: %.2fs\n", r.Elapsed.Seconds())
	fmt.Fprintf(&b, "Output: %d frames (%.2fs)\n", r.Frames, r.VideoDuration.Seconds())
	fmt.Fprintf(&b, "Detections: %d frames, %d dropped\n", r.DetectionFrames, r.Dropped)
	fmt.Fprintf(&b, "Entities: %d created, %d retired, %d removed\n", r.Tracker.Created, r.Tracker.Retired, r.Tracker.Removed)
	fmt.Fprintf(&b, "Effective FPS: %.2f\n", r.EffectiveFPS())
	fmt.Fprintf(&b, "CPU: %.1f%% | RSS: %.1f MB | System memory: %.1f%%\n",
		r.System.CPUPercent, float64(r.System.RSSBytes)/(1<<20), r.System.SystemMemUsed)
	b.WriteString("----------------------------\n")
	return b.String()
}

// AppendBenchmark appends a one-line summary of r to the log at path.
func AppendBenchmark(path string, r Report) error {
	line := fmt.Sprintf("[%s] Build: %s | Session: %s | Input: %s | Frames: %d | Total: %.2fs | FPS: %.2f | RSS: %d\n",
		time.Now().Format("2006-01-02 15:04:05"),
		r.Build,
		r.SessionID,
		filepath.Base(r.Input),
		r.Frames,
		r.Elapsed.Seconds(),
		r.EffectiveFPS(),
		r.System.RSSBytes,
	)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
