package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hostpin/internal/app"
)

var (
	appInstance *app.App
	version     = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hostpin",
	Short: "Pin domains to their fastest IP address in the hosts file",
	Long: `hostpin - pin domains to their fastest IP address

  Probes every candidate address for every domain over HTTPS, picks the
  fastest reachable address per domain and rewrites a managed block at
  the end of the system hosts file. Everything else in the file is kept.

  Quick start:
    sudo hostpin run
    hostpin status
    hostpin settings add domains www.example.com
    sudo hostpin daemon

  Core features:
    • Concurrent HTTPS or TLS probing with a bounded worker pool
    • Atomic hosts rewrite with timestamped backups
    • Periodic auto-update with a JSON API and Prometheus metrics
    • Interactive terminal view with live progress`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appInstance, err = app.New(appOptions(cmd))
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appInstance != nil {
			return appInstance.Close()
		}
		return nil
	},
}

// appOptions collects the global flags.
func appOptions(cmd *cobra.Command) app.Options {
	flags := cmd.Root().PersistentFlags()
	configPath, _ := flags.GetString("config")
	dbPath, _ := flags.GetString("db")
	hostsPath, _ := flags.GetString("hosts")
	logLevel, _ := flags.GetString("log-level")
	verbose, _ := flags.GetBool("verbose")
	logJSON, _ := flags.GetBool("log-json")

	// Interactive commands print their own output; only the daemon logs
	// run milestones by default.
	switch {
	case logLevel != "":
	case verbose:
		logLevel = "debug"
	case cmd.Name() != "daemon":
		logLevel = "warn"
	}

	return app.Options{
		ConfigPath: configPath,
		DBPath:     dbPath,
		HostsPath:  hostsPath,
		LogLevel:   logLevel,
		Console:    !logJSON,
	}
}

// skipApp is used by commands that need no database.
func skipApp(cmd *cobra.Command, args []string) error { return nil }

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if appInstance != nil {
			appInstance.Close()
		}
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "database path")
	rootCmd.PersistentFlags().String("hosts", "", "hosts file path")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")

	rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print version information",
	PersistentPreRunE: skipApp,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hostpin %s\n", version)
	},
}
