package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hostpin/internal/runner"
	"hostpin/internal/storage"
	"hostpin/internal/storage/models"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Probe all addresses and update the hosts file once",
	Long: `Probe every candidate address for every domain, pick the fastest reachable
address per domain and rewrite the managed block of the hosts file.

Flags override the stored settings for this run only. Writing the hosts
file usually needs root (sudo) or an elevated prompt on Windows.`,
	Example: `  sudo hostpin run
  sudo hostpin run --domain www.example.com --address 1.2.3.4 --address 5.6.7.8
  sudo hostpin run --strategy tls --timeout 1500`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addresses, _ := cmd.Flags().GetStringArray("address")
		domains, _ := cmd.Flags().GetStringArray("domain")
		workers, _ := cmd.Flags().GetInt("workers")
		timeoutMS, _ := cmd.Flags().GetInt64("timeout")
		strategy, _ := cmd.Flags().GetString("strategy")
		quiet, _ := cmd.Flags().GetBool("quiet")

		if strategy != "" {
			if err := storage.ValidateSetting(storage.KeyStrategy, strategy); err != nil {
				return err
			}
		}

		req := runner.Request{
			Addresses: models.Dedup(addresses),
			Domains:   models.Dedup(domains),
			Workers:   workers,
			Timeout:   time.Duration(timeoutMS) * time.Millisecond,
			Strategy:  strategy,
		}
		if !quiet {
			req.Progress = func(o *models.Outcome, current, total int) {
				printProgress(os.Stdout, o, current, total)
			}
		}

		res := appInstance.Runner.Run(context.Background(), req)

		if !quiet {
			fmt.Println()
		}
		printResult(os.Stdout, res)

		if res.State != runner.StateDone {
			return fmt.Errorf("run failed: %s", res.Reason)
		}
		return nil
	},
}

func printProgress(w io.Writer, o *models.Outcome, current, total int) {
	if o.Success {
		fmt.Fprintf(w, "  [%d/%d] %-30s %-16s %.0f ms\n", current, total,
			truncateName(o.Domain, 30), o.Address, *o.LatencyMS)
	} else {
		fmt.Fprintf(w, "  [%d/%d] %-30s %-16s FAILED\n", current, total,
			truncateName(o.Domain, 30), o.Address)
	}
}

// printResult prints the assignment table and a one-line outcome.
func printResult(out io.Writer, res *runner.Result) {
	if len(res.Assignment) > 0 || len(res.Unresolved) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tADDRESS\tLATENCY\tSOURCE")
		fmt.Fprintln(w, "------\t-------\t-------\t------")
		for _, e := range res.Assignment {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Domain, e.Address, formatLatency(e.LatencyMS), e.Source)
		}
		for _, d := range res.Unresolved {
			fmt.Fprintf(w, "%s\t-\t-\tunresolved\n", d)
		}
		w.Flush()
		fmt.Fprintln(out)
	}

	elapsed := res.FinishedAt.Sub(res.StartedAt).Seconds()
	if res.State == runner.StateDone {
		fmt.Fprintf(out, "Summary: %d tested, %d succeeded, %d failed (%.1fs)\n",
			res.Tested, res.Succeeded, res.Failed, elapsed)
		if res.BackupPath != "" {
			fmt.Fprintf(out, "Backup:  %s\n", res.BackupPath)
		}
		return
	}
	fmt.Fprintf(out, "Run failed: %s\n", res.Reason)
}

func formatLatency(ms *float64) string {
	if ms == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.0f ms", *ms)
}

func truncateName(name string, maxLen int) string {
	if len(name) <= maxLen {
		return name
	}
	return name[:maxLen-3] + "..."
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func init() {
	runCmd.Flags().StringArrayP("address", "a", nil, "candidate address (repeatable, default: stored addresses)")
	runCmd.Flags().StringArrayP("domain", "d", nil, "domain to pin (repeatable, default: stored domains)")
	runCmd.Flags().IntP("workers", "w", 0, "number of concurrent probes (default: stored setting)")
	runCmd.Flags().Int64P("timeout", "t", 0, "per-probe timeout in milliseconds (default: stored setting)")
	runCmd.Flags().StringP("strategy", "s", "", "probe strategy (https, tls)")
	runCmd.Flags().BoolP("quiet", "q", false, "do not print per-probe progress")

	runCmd.RegisterFlagCompletionFunc("strategy", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return storage.Strategies, cobra.ShellCompDirectiveNoFileComp
	})
	runCmd.RegisterFlagCompletionFunc("domain", completeStoredList(storage.KeyDomains))
	runCmd.RegisterFlagCompletionFunc("address", completeStoredList(storage.KeyAddresses))

	rootCmd.AddCommand(runCmd)
}
