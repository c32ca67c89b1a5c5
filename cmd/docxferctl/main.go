// Command docxferctl is docxfer's operator CLI: run a mapping against a
// batch of document ids, cancel a running execution, sweep expired
// consecutive reservations, or serve the /healthz and /metrics endpoints.
// It follows forbearing-gst's cmd/gg cobra layout (one file per
// subcommand, a shared root.go wiring persistent flags).
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
