package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/liveoverlay/internal/analyzer"
	"github.com/ivlev/liveoverlay/internal/config"
	"github.com/ivlev/liveoverlay/internal/scenario"
	"github.com/ivlev/liveoverlay/internal/source"
	"github.com/ivlev/liveoverlay/internal/system"
)

func newScenarioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Work with detection scenarios",
	}
	cmd.AddCommand(newScenarioGenerateCmd(a))
	return cmd
}

func newScenarioGenerateCmd(a *app) *cobra.Command {
	var (
		inputPath  string
		outputPath string
		variant    string
		tuningPath string
		interval   time.Duration
		dpi        int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Detect objects in frames and save them as a scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				latest, err := system.FindLatestPDF("input")
				if err != nil {
					latest, err = system.FindLatestImage("input")
				}
				if err != nil {
					return fmt.Errorf("%w. Положите PDF или изображения в input/", err)
				}
				inputPath = latest
				fmt.Fprintf(cmd.OutOrStdout(), "[*] Выбран файл: %s\n", inputPath)
			}

			tuning, err := config.LoadTuning(tuningPath)
			if err != nil {
				return err
			}
			det, err := analyzer.NewDetector(variant)
			if err != nil {
				return err
			}
			src, err := source.Open(inputPath, dpi)
			if err != nil {
				return fmt.Errorf("ошибка инициализации источника: %w", err)
			}
			defer src.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "[*] Режим генерации сценария: %d кадров...\n", src.FrameCount())
			d := scenario.NewDirector(det, interval)
			d.Filter = tuning.Filter()
			d.Logger = a.logger

			recorded, err := filepath.Abs(inputPath)
			if err != nil {
				return err
			}
			sc, err := d.GenerateScenario(cmd.Context(), src, recorded)
			if err != nil {
				return err
			}

			if outputPath == "" {
				outputPath = scenario.GenerateScenarioPath(scenario.DefaultDir)
			}
			if err := scenario.WriteScenario(sc, outputPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[+++] Успех! Сценарий сохранен: %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "PDF или папка с изображениями (по умолчанию: самый свежий файл в input/)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Путь к сценарию (по умолчанию: scenarios/scenario_<время>.yaml)")
	cmd.Flags().StringVar(&variant, "detector", "contrast", "Детектор: contrast")
	cmd.Flags().StringVar(&tuningPath, "tuning", "", "YAML-файл с порогами фильтра")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Время между кадрами источника")
	cmd.Flags().IntVar(&dpi, "dpi", 150, "DPI для страниц PDF")
	return cmd
}
