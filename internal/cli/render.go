package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ivlev/liveoverlay/internal/engine"
	"github.com/ivlev/liveoverlay/internal/scenario"
	"github.com/ivlev/liveoverlay/internal/source"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		out          outputFlags
		scenarioPath string
		inputPath    string
		dpi          int
		noBackground bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a recorded detection scenario to video",
		Long: `Render replays a YAML detection scenario through the tracker and writes the
animated overlay as a video (via ffmpeg) or as numbered PNG frames.

Background frames come from --input, or from the input recorded in the
scenario; without either the overlay is drawn on black.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if scenarioPath == "" {
				latest, err := scenario.FindLatestScenario(scenario.DefaultDir)
				if err != nil {
					return fmt.Errorf("%w. Создайте сценарий командой `liveoverlay scenario generate`", err)
				}
				scenarioPath = latest
				fmt.Fprintf(cmd.OutOrStdout(), "[*] Используется сценарий: %s\n", scenarioPath)
			}
			sc, err := scenario.ReadScenario(scenarioPath)
			if err != nil {
				return fmt.Errorf("ошибка чтения сценария: %w", err)
			}

			s, err := out.setup(ctx, a, scenarioPath, false)
			if err != nil {
				return err
			}
			s.cfg.ScenarioPath = scenarioPath
			s.cfg.DPI = dpi

			p := engine.NewProject(s.cfg, sc, s.tracker, s.encoder, a.logger)
			p.Render.Palette = s.tuning.GetPalette()
			p.Filter = &s.filter

			if inputPath == "" && sc.Input != "" && !noBackground {
				inputPath = sc.Input
				if !filepath.IsAbs(inputPath) {
					inputPath = filepath.Join(filepath.Dir(scenarioPath), inputPath)
				}
			}
			if inputPath != "" && !noBackground {
				src, err := source.Open(inputPath, dpi)
				if err != nil {
					return fmt.Errorf("ошибка инициализации источника: %w", err)
				}
				defer src.Close()
				p.Source = src
				s.cfg.InputPath = inputPath
			}

			fmt.Fprintln(cmd.OutOrStdout(), "--- [LIVEOVERLAY: RENDER] ---")
			fmt.Fprintf(cmd.OutOrStdout(), "[*] Сценарий: %s | Кадров детекции: %d\n", scenarioPath, len(sc.Frames))
			fmt.Fprintf(cmd.OutOrStdout(), "[*] Разрешение: %dx%d @ %d FPS | Потоков: %d\n", s.cfg.Width, s.cfg.Height, s.cfg.FPS, s.cfg.Workers)
			fmt.Fprintln(cmd.OutOrStdout(), "-----------------------------")

			report, err := p.Run(ctx)
			if err != nil {
				return fmt.Errorf("ошибка проекта: %w", err)
			}

			printReport(cmd, s, report)
			fmt.Fprintf(cmd.OutOrStdout(), "[+++] Успех! Результат: %s\n", s.cfg.OutputVideo)
			return nil
		},
	}

	out.register(cmd)
	cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "YAML-сценарий детекций (по умолчанию: самый свежий в scenarios/)")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Фон: PDF или папка с изображениями")
	cmd.Flags().IntVar(&dpi, "dpi", 150, "DPI для страниц PDF")
	cmd.Flags().BoolVar(&noBackground, "no-background", false, "Не рисовать фон, даже если он указан в сценарии")
	return cmd
}
