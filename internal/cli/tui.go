package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hostpin/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long:  `Launch the full-screen terminal UI showing the last assignment, live run progress, the event log and settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := tui.Deps{
			Storage: appInstance.Storage,
			Runner:  appInstance.Runner,
			Hosts:   appInstance.Hosts,
		}

		p := tui.NewProgram(deps)
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
