package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hostpin/internal/runner"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Update the hosts file periodically and serve the HTTP API",
	Long: `Run in the foreground, updating the hosts file every stored interval
and serving the JSON API and Prometheus metrics until interrupted.

Changing the interval with "hostpin settings set interval N" or through
the API takes effect without a restart. An interval of 0 pauses automatic
runs; POST /api/run still works.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		runNow, _ := cmd.Flags().GetBool("run-now")
		if listen == "" {
			listen = appInstance.Config.Listen
		}
		log := appInstance.Logger

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		// Runs from --run-now or the API finish before the store closes.
		defer appInstance.Runner.Wait()

		sched, err := appInstance.NewScheduler()
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()

		srv := appInstance.NewServer(sched)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(listen)
		}()

		if runNow {
			go appInstance.Runner.Run(ctx, runner.Request{})
		}

		log.Info("daemon started", zap.String("listen", listen), zap.Duration("interval", sched.Interval()))

		select {
		case <-ctx.Done():
			log.Info("shutting down")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("api server: %w", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	daemonCmd.Flags().StringP("listen", "l", "", "API listen address (default from config, 127.0.0.1:8765)")
	daemonCmd.Flags().Bool("run-now", false, "run once at startup instead of waiting for the first interval")
	rootCmd.AddCommand(daemonCmd)
}
