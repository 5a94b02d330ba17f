package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/liveoverlay/internal/engine"
	"github.com/ivlev/liveoverlay/internal/mapper"
	"github.com/ivlev/liveoverlay/internal/scenario"
)

func newLiveCmd(a *app) *cobra.Command {
	var (
		out  outputFlags
		geom scenario.ImageInfo
	)

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Animate detections streamed on stdin as JSON lines",
		Long: `Live reads one detection frame per line from stdin, in the same shape as a
scenario frame:

  {"width":1920,"height":1080,"rotation":90,"detections":[{"id":3,"box":{"x":10,"y":20,"w":200,"h":120},"labels":[{"text":"Food","confidence":0.82}]}]}

Frames are drawn only while something changes, and timestamps follow the
wall clock. When stdin closes, remaining overlays fade out and the output is
finalised.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mapper.ValidateRotation(geom.Rotation); err != nil {
				return err
			}
			s, err := out.setup(cmd.Context(), a, "live", true)
			if err != nil {
				return err
			}

			l := engine.NewLive(s.cfg, cmd.InOrStdin(), s.tracker, s.encoder, a.logger)
			l.Image = geom
			l.Render.Palette = s.tuning.GetPalette()
			l.Filter = &s.filter

			fmt.Fprintf(cmd.ErrOrStderr(), "[*] Ожидание детекций на stdin | %dx%d | сессия %s\n", s.cfg.Width, s.cfg.Height, l.SessionID)
			report, err := l.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("ошибка live-сессии: %w", err)
			}

			printReport(cmd, s, report)
			fmt.Fprintf(cmd.ErrOrStderr(), "[+++] Успех! Результат: %s\n", s.cfg.OutputVideo)
			return nil
		},
	}

	out.register(cmd)
	cmd.Flags().IntVar(&geom.Width, "image-width", 0, "Ширина кадра камеры, если строка её не содержит")
	cmd.Flags().IntVar(&geom.Height, "image-height", 0, "Высота кадра камеры, если строка её не содержит")
	cmd.Flags().IntVar(&geom.Rotation, "rotation", 0, "Поворот кадра камеры: 0, 90, 180, 270")
	return cmd
}
