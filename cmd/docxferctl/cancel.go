package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [executionId]",
	Short: "Cancel a running execution by id",
	Long:  "Cancel requests cancellation of an execution registered in the Task Tracker of the process it runs in. Each docxferctl invocation bootstraps its own, initially empty tracker, so executions started by another docxferctl process are not found and are reported as not running.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.stop()

		if !a.engine.CancelExecution(args[0]) {
			return errors.Newf("docxferctl cancel: execution %q is not running", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cancellation requested for execution %s\n", args[0])
		return nil
	},
}
