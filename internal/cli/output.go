package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/liveoverlay/internal/analyzer"
	"github.com/ivlev/liveoverlay/internal/config"
	"github.com/ivlev/liveoverlay/internal/engine"
	"github.com/ivlev/liveoverlay/internal/system"
	"github.com/ivlev/liveoverlay/internal/tracker"
	"github.com/ivlev/liveoverlay/internal/video"
)

// outputFlags are shared by the commands that produce frames.
type outputFlags struct {
	output     string
	width      int
	height     int
	preset     string
	fps        int
	workers    int
	quality    int
	encoder    string
	format     string
	tuningPath string
	debug      bool
	hud        bool
	stamp      bool
	stats      bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "Путь к видео или папке PNG (если пусто, генерируется автоматически в output/)")
	fl.IntVar(&f.width, "width", 1280, "Ширина")
	fl.IntVar(&f.height, "height", 720, "Высота")
	fl.StringVar(&f.preset, "preset", "", "Пресет формата: 16:9, 9:16, 4:5, phone")
	fl.IntVar(&f.fps, "fps", 30, "FPS")
	fl.IntVar(&f.workers, "workers", runtime.NumCPU(), "Потоки отрисовки")
	fl.IntVar(&f.quality, "quality", 0, "Качество видео (0 - авто, x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	fl.StringVar(&f.encoder, "encoder", "", "Видеокодек ffmpeg (если пусто, выбирается автоматически)")
	fl.StringVar(&f.format, "format", "video", "Формат вывода: video, png")
	fl.StringVar(&f.tuningPath, "tuning", "", "YAML-файл с параметрами анимации и палитрой")
	fl.BoolVar(&f.debug, "debug", false, "Отладочная отрисовка (id и прозрачность)")
	fl.BoolVar(&f.hud, "hud", false, "Показывать число объектов и FPS")
	fl.BoolVar(&f.stamp, "stamp", false, "QR-код сессии в углу кадра")
	fl.BoolVar(&f.stats, "stats", false, "Отчёт о производительности (и запись в benchmark.log)")
}

// session is everything a command needs to start the engine.
type session struct {
	cfg     *config.Config
	tuning  *config.Tuning
	tracker *tracker.Tracker
	encoder video.Encoder
	filter  analyzer.Filter
}

// setup resolves flags into a run configuration. nameHint seeds the
// generated output name.
func (f *outputFlags) setup(ctx context.Context, a *app, nameHint string, live bool) (*session, error) {
	tuning, err := config.LoadTuning(f.tuningPath)
	if err != nil {
		return nil, err
	}

	width, height := config.ApplyPreset(f.preset, f.width, f.height)
	cfg := &config.Config{
		OutputVideo:  f.output,
		TuningPath:   f.tuningPath,
		Width:        width,
		Height:       height,
		FPS:          f.fps,
		Workers:      f.workers,
		Preset:       f.preset,
		VideoEncoder: f.encoder,
		Quality:      f.quality,
		Format:       f.format,
		Debug:        f.debug,
		ShowHUD:      f.hud,
		Stamp:        f.stamp,
		ShowStats:    f.stats,
		Live:         live,
		BuildVersion: Version,
	}

	if cfg.Format != "png" {
		if cfg.VideoEncoder == "" {
			cfg.VideoEncoder = system.GetBestH264Encoder(ctx)
			if cfg.VideoEncoder != "libx264" {
				fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", cfg.VideoEncoder)
			}
		}
		if cfg.Quality == 0 {
			cfg.Quality = DefaultQuality(cfg.VideoEncoder)
		}
	}
	if cfg.OutputVideo == "" {
		cfg.OutputVideo = OutputPath(nameHint, cfg.Format, time.Now())
	}

	enc, err := video.New(cfg.Format, cfg.VideoEncoder, cfg.Quality, cfg.Live, a.logger)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:     cfg,
		tuning:  tuning,
		tracker: tracker.New(tuning.TrackerConfig(), tuning.Style(), a.logger),
		encoder: enc,
		filter:  tuning.Filter(),
	}, nil
}

// DefaultQuality picks a sensible quality value per encoder.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // Хорошее качество для VideoToolbox
	case "h264_nvenc":
		return 28 // Эквивалент CRF для NVENC
	default:
		return 23 // Стандартный CRF для x264
	}
}

// OutputPath builds output/<name>_<timestamp>.mp4, or a directory for PNG
// frames.
func OutputPath(nameHint, format string, now time.Time) string {
	base := filepath.Base(nameHint)
	nameOnly := strings.TrimSuffix(base, filepath.Ext(base))
	if nameOnly == "" || nameOnly == "." || nameOnly == string(filepath.Separator) {
		nameOnly = "overlay"
	}
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	name := fmt.Sprintf("%s_%s", cleanName, now.Format("2006-01-02_15-04-05"))
	if format == "png" {
		return filepath.Join("output", name)
	}
	return filepath.Join("output", name+".mp4")
}

func printReport(cmd *cobra.Command, s *session, report engine.Report) {
	if !s.cfg.ShowStats {
		return
	}
	fmt.Fprint(cmd.OutOrStdout(), report.String())
	if err := engine.AppendBenchmark("benchmark.log", report); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "[!] Не удалось записать benchmark.log: %v\n", err)
	}
}
