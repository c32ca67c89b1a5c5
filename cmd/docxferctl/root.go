package main

import "github.com/spf13/cobra"

var configFile string

var rootCmd = &cobra.Command{
	Use:     "docxferctl",
	Short:   "docxfer operator CLI",
	Long:    "docxferctl drives the cross-database document transfer engine: run mappings, cancel executions, sweep reservations, and serve health/metrics.",
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to docxfer config file (default: ./docxfer.yaml)")

	rootCmd.AddCommand(runCmd, cancelCmd, sweepCmd, serveCmd, configCmd)
}
