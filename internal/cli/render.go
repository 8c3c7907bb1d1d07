package cli

import (
	"context"
	"fmt"
	"time"

	"meal-board/internal/board"
	"meal-board/internal/export"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	renderPlan    string
	renderLang    string
	renderOut     string
	renderDataURL bool
)

var renderCmd = &cobra.Command{
	Use:     "render",
	Short:   "Render a plan file to a JPEG",
	GroupID: "board",
	Long: `Render a plan file to meal-plan-<unix-ms>.jpg without opening the board.

The plan file is YAML:

  lang: en
  plan:
    MONDAY:
      BREAKFAST: [Avocado Toast]
      DINNER: [Mapo Tofu, Rice]

With --data-url the image is printed as a data:image/jpeg;base64 URL instead
of being written to disk.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := loadState(cmd.InOrStdin(), renderPlan, renderLang, cfg)
		if err != nil {
			return err
		}
		exporter, err := newExporter(cfg)
		if err != nil {
			return err
		}

		var sink export.Sink
		dir := renderOut
		if dir == "" {
			dir = cfg.ExportDir
		}
		if !renderDataURL {
			sink = export.DirSink{Dir: dir}
		}

		region := export.Layout(st.Plan, st.Lang, time.Now())
		res, err := exporter.ExportTo(context.Background(), region, sink)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if renderDataURL {
			_, _ = fmt.Fprintln(out, export.DataURL(res.Data))
			return nil
		}
		printSuccess(out, fmt.Sprintf("Rendered %s", plural(region.DishCount(), "dish", "dishes")))
		printKeyValue(out, "File", export.DirSink{Dir: dir}.Path(res.Filename))
		printKeyValue(out, "Size", fmt.Sprintf("%dx%d, %s", res.Width, res.Height, humanize.IBytes(uint64(len(res.Data)))))
		printKeyValue(out, "Took", res.Elapsed.Round(time.Millisecond).String())
		return nil
	},
}

var presetsCmd = &cobra.Command{
	Use:     "presets",
	Short:   "List the quick-add dish library",
	GroupID: "board",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		printSection(out, "Dish library")
		for _, d := range board.Presets() {
			printKeyValue(out, d.ID, fmt.Sprintf("%s / %s", d.NameEn, d.NameZh))
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderPlan, "plan", "", "Plan file to render (- for stdin)")
	renderCmd.Flags().StringVar(&renderLang, "lang", "", "Board language (en or zh)")
	renderCmd.Flags().StringVar(&renderOut, "out", "", "Output directory (default EXPORT_DIR)")
	renderCmd.Flags().BoolVar(&renderDataURL, "data-url", false, "Print a data URL instead of writing a file")
}
