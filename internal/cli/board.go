package cli

import (
	"fmt"
	"io"
	"os"

	"meal-board/internal/board"
	"meal-board/internal/config"
	"meal-board/internal/export"
	"meal-board/internal/locale"
	"meal-board/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	planPath string
	langFlag string
	outDir   string
	savePath string
)

var boardCmd = &cobra.Command{
	Use:     "board",
	Short:   "Open the interactive terminal board",
	GroupID: "board",
	Long: `Open the 7x3 meal board in the terminal.

Move with the arrow keys, press enter to add a dish to the selected cell,
x to remove one, c to clear the plan, t to switch language and e to export
the board as a JPEG into --out.

Use --plan to start from a plan file and --save to write the board back to a
plan file on exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := loadState(cmd.InOrStdin(), planPath, langFlag, cfg)
		if err != nil {
			return err
		}
		exporter, err := newExporter(cfg)
		if err != nil {
			return err
		}

		dir := outDir
		if dir == "" {
			dir = cfg.ExportDir
		}
		model := tui.New(exporter, export.DirSink{Dir: dir}, st.Lang, tui.WithState(st))

		final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
		if err != nil {
			return fmt.Errorf("failed to run board: %w", err)
		}

		if savePath == "" {
			return nil
		}
		m, ok := final.(tui.Model)
		if !ok {
			return nil
		}
		if err := savePlan(savePath, m.State()); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Saved plan to "+savePath)
		return nil
	},
}

func init() {
	boardCmd.Flags().StringVar(&planPath, "plan", "", "Plan file to start from (- for stdin)")
	boardCmd.Flags().StringVar(&langFlag, "lang", "", "Board language (en or zh)")
	boardCmd.Flags().StringVar(&outDir, "out", "", "Directory for exported images (default EXPORT_DIR)")
	boardCmd.Flags().StringVar(&savePath, "save", "", "Write the board to this plan file on exit")
}

// loadState reads the plan file at path, or starts an empty board when path
// is empty. A non-empty lang overrides the language of the file.
func loadState(stdin io.Reader, path, lang string, cfg *config.Config) (board.State, error) {
	st := board.NewState(locale.ParseLang(cfg.DefaultLang))
	switch path {
	case "":
	case "-":
		loaded, err := board.LoadPlanFile(stdin)
		if err != nil {
			return board.State{}, err
		}
		st = loaded
	default:
		f, err := os.Open(path)
		if err != nil {
			return board.State{}, fmt.Errorf("failed to open plan file: %w", err)
		}
		defer f.Close()
		loaded, err := board.LoadPlanFile(f)
		if err != nil {
			return board.State{}, err
		}
		st = loaded
	}

	if lang != "" {
		parsed, err := board.ParseLang(lang)
		if err != nil {
			return board.State{}, err
		}
		st = st.SetLang(parsed)
	}
	return st, nil
}

func savePlan(path string, st board.State) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plan file: %w", err)
	}
	if err := board.WritePlanFile(f, st); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newExporter(cfg *config.Config) (*export.Exporter, error) {
	fonts, err := export.LoadFonts(cfg.FontPath)
	if err != nil {
		return nil, err
	}
	return export.NewExporter(export.NewRasterRenderer(fonts), nil), nil
}
