package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hostpin/internal/storage/models"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		events, err := appInstance.Storage.GetRecentEvents(context.Background(), limit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events yet.")
			return nil
		}

		for _, e := range events {
			fmt.Println(formatEvent(e))
		}
		return nil
	},
}

func formatEvent(e models.Event) string {
	return fmt.Sprintf("%s %-5s %s", e.Time.Local().Format("2006-01-02 15:04:05"), e.Level, e.Message)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := appInstance.Storage.GetRecentRuns(context.Background(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tSTARTED\tDURATION\tSTATE\tDOMAINS\tDETAIL")
		fmt.Fprintln(w, "-\t-------\t--------\t-----\t-------\t------")
		for _, r := range runs {
			detail := r.BackupPath
			if r.Reason != "" {
				detail = r.Reason
			}
			fmt.Fprintf(w, "%d\t%s\t%.1fs\t%s\t%d\t%s\n",
				r.ID,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.FinishedAt.Sub(r.StartedAt).Seconds(),
				r.State,
				len(r.Assignment),
				truncateName(detail, 60))
		}
		w.Flush()
		return nil
	},
}

func init() {
	logsCmd.Flags().IntP("limit", "n", 200, "number of events")
	historyCmd.Flags().IntP("limit", "n", 20, "number of runs")

	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(historyCmd)
}
