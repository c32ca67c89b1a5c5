package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/forbearing/docxfer/config"
	"github.com/forbearing/docxfer/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /healthz and /metrics and keep the sweeper/audit writer running",
	Long:  "Serve starts the background audit writer and reservation sweeper and blocks serving HTTP health and metrics endpoints, per spec.md's explicit Non-goal that the core never exposes a mapping CRUD or execution-trigger HTTP API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		a.startBackground()
		defer a.stop()

		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{Addr: config.App.Server.HTTPAddr, Handler: mux}

		errCh := make(chan error, 1)
		go func() {
			logger.Runtime.Infow("serving health and metrics", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-sigCh:
			logger.Runtime.Infow("shutting down")
			return srv.Shutdown(context.Background())
		}
	},
}
