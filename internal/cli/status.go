package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hostpin/internal/hosts"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last assignment and the managed hosts block",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		lastRun, err := appInstance.Storage.GetLastRunTime(ctx)
		if err != nil {
			return err
		}
		assignment, err := appInstance.Storage.LoadAssignment(ctx)
		if err != nil {
			return err
		}
		settings, err := appInstance.Storage.LoadSettings(ctx)
		if err != nil {
			return err
		}

		fmt.Println("hostpin status")
		fmt.Println(strings.Repeat("═", 50))
		fmt.Println()

		if lastRun != nil {
			fmt.Printf("  Last update: %s (%s ago)\n",
				lastRun.Local().Format("2006-01-02 15:04:05"), time.Since(*lastRun).Round(time.Second))
		} else {
			fmt.Println("  Last update: never")
		}
		if settings.Interval > 0 {
			fmt.Printf("  Interval:    %s\n", settings.Interval)
		} else {
			fmt.Println("  Interval:    disabled")
		}
		fmt.Printf("  Hosts file:  %s\n", appInstance.Hosts.Path)
		fmt.Println()

		if len(assignment) == 0 {
			fmt.Println("No assignment yet. Run 'sudo hostpin run'.")
		} else {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DOMAIN\tADDRESS\tLATENCY\tSOURCE")
			fmt.Fprintln(w, "------\t-------\t-------\t------")
			for _, e := range assignment {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Domain, e.Address, formatLatency(e.LatencyMS), e.Source)
			}
			w.Flush()
		}
		fmt.Println()

		text, err := appInstance.Hosts.Read()
		if err != nil {
			fmt.Printf("Hosts file unreadable: %v\n", err)
			return nil
		}
		block, ok := hosts.ParseManagedBlock(text)
		if !ok {
			fmt.Println("Hosts file has no managed block.")
			return nil
		}
		fmt.Printf("Managed block (%s):\n", block.Stamp)
		for _, m := range block.Entries {
			fmt.Printf("  %-16s %s\n", m.Address, m.Domain)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
