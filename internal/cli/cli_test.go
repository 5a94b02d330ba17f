package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/liveoverlay/internal/scenario"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(bytes.NewBufferString(stdin))
	root.SetArgs(append([]string{"--log-file", ""}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFrames(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for i, x := range []int{40, 50, 60} {
		img := image.NewRGBA(image.Rect(0, 0, 320, 240))
		draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(x, 60, x+160, 180), image.NewUniform(color.White), image.Point{}, draw.Src)
		f, err := os.Create(filepath.Join(dir, "frame_"+string(rune('a'+i))+".png"))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
}

func TestGenerateThenRender(t *testing.T) {
	dir := t.TempDir()
	frames := filepath.Join(dir, "frames")
	writeFrames(t, frames)
	scenarioPath := filepath.Join(dir, "scenarios", "s.yaml")

	out, err := run(t, "", "scenario", "generate", "--input", frames, "--output", scenarioPath, "--interval", "100ms")
	require.NoError(t, err, out)
	assert.Contains(t, out, "[+++]")

	sc, err := scenario.ReadScenario(scenarioPath)
	require.NoError(t, err)
	require.Len(t, sc.Frames, 3)
	assert.True(t, filepath.IsAbs(sc.Input))

	pngDir := filepath.Join(dir, "out")
	out, err = run(t, "", "render", "--scenario", scenarioPath, "--format", "png", "--output", pngDir,
		"--width", "160", "--height", "120", "--fps", "10", "--workers", "2", "--hud", "--stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, "PERFORMANCE REPORT")
	t.Cleanup(func() { os.Remove("benchmark.log") })

	entries, err := os.ReadDir(pngDir)
	require.NoError(t, err)
	assert.Greater(t, len(entries), 3)
}

func TestRenderMissingScenario(t *testing.T) {
	_, err := run(t, "", "render", "--scenario", filepath.Join(t.TempDir(), "missing.yaml"), "--format", "png")
	assert.Error(t, err)
}

func TestLiveCommand(t *testing.T) {
	dir := t.TempDir()
	stdin := `{"detections":[{"id":1,"box":{"x":10,"y":10,"w":80,"h":60},"labels":[{"text":"Food","confidence":0.9}]}]}` + "\n"
	tuning := filepath.Join(dir, "tuning.yaml")
	require.NoError(t, os.WriteFile(tuning, []byte("grace_period: 10ms\n"), 0644))

	out, err := run(t, stdin, "live", "--format", "png", "--output", filepath.Join(dir, "live"),
		"--image-width", "320", "--image-height", "240", "--width", "160", "--height", "120", "--fps", "100", "--tuning", tuning)
	require.NoError(t, err, out)

	entries, err := os.ReadDir(filepath.Join(dir, "live"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestLiveRejectsRotation(t *testing.T) {
	_, err := run(t, "", "live", "--format", "png", "--rotation", "45")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "liveoverlay "+Version)
}

func TestOutputPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("output", "my_scene_2026-03-01_12-30-00.mp4"), OutputPath("scenarios/my scene.yaml", "video", now))
	assert.Equal(t, filepath.Join("output", "live_2026-03-01_12-30-00"), OutputPath("live", "png", now))
	assert.Equal(t, filepath.Join("output", "overlay_2026-03-01_12-30-00.mp4"), OutputPath("", "video", now))
}

func TestDefaultQuality(t *testing.T) {
	assert.Equal(t, 75, DefaultQuality("h264_videotoolbox"))
	assert.Equal(t, 28, DefaultQuality("h264_nvenc"))
	assert.Equal(t, 23, DefaultQuality("libx264"))
}
