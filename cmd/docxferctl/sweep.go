package main

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one pass of the expired-reservation sweeper",
	Long:  "Sweep runs Consecutive Service's SweepExpired once and exits, useful for driving the sweep from an external scheduler instead of serve's in-process cron.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.stop()

		n, err := a.consecutive.SweepExpired(context.Background())
		if err != nil {
			return errors.Wrap(err, "docxferctl sweep: failed")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "swept %d expired reservation(s)\n", n)
		return nil
	},
}
