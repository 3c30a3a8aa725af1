// Command claimctl is the operator CLI.
//
// Usage:
//
//	claimctl evaluate --distance 1850 --delay 215 --from GB --to ES
//	claimctl dispatch
//	claimctl requeue <notificationID>
//	claimctl track
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Matthias0x44/RyUnfair/internal/app"
	"github.com/Matthias0x44/RyUnfair/internal/domain/eligibility"
	"github.com/Matthias0x44/RyUnfair/internal/infrastructure/config"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "claimctl",
		Short:         "RyUnfair operator CLI",
		SilenceUsage:  true,
	}
	root.AddCommand(evaluateCmd())
	root.AddCommand(dispatchCmd())
	root.AddCommand(requeueCmd())
	root.AddCommand(trackCmd())
	return root
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func evaluateCmd() *cobra.Command {
	var (
		distance float64
		delay    int
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Print the compensation verdict for a distance, delay and route",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := eligibility.Evaluate(distance, delay, eligibility.CountryCode(from), eligibility.CountryCode(to))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"eligible":   v.Eligible,
				"amount":     v.Amount,
				"currency":   v.Currency,
				"regulation": v.Regulation(),
				"reason":     v.Reason,
			})
		},
	}
	cmd.Flags().Float64Var(&distance, "distance", 0, "Great-circle distance in km")
	cmd.Flags().IntVar(&delay, "delay", 0, "Arrival delay in minutes")
	cmd.Flags().StringVar(&from, "from", "", "Departure country code")
	cmd.Flags().StringVar(&to, "to", "", "Arrival country code")
	cmd.MarkFlagRequired("distance")
	cmd.MarkFlagRequired("delay")
	return cmd
}

// withApp builds the application for one command and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run the dispatcher once and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				result, err := a.Dispatcher.RunOnce(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func requeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <notificationID>",
		Short: "Move a failed notification back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.Dispatcher.Requeue(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "notification %s requeued\n", args[0])
				return nil
			})
		},
	}
}

func trackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track",
		Short: "Refresh one batch of tracked flights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				n, err := a.Tracker.RefreshTracking(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d flights\n", n)
				return nil
			})
		},
	}
}
