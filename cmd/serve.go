/*
Copyright © 2025 The Triage Authors
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psychon7/Triage-AI/internal/server"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the planning pipeline over HTTP",
	Long: `Start the HTTP API. Tasks are persisted under the data directory and
restored on the next start; a task whose stage was running when the server
stopped comes back paused and re-runs that stage on resume.

Examples:
  triage serve
  triage serve --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "API server port (default from server.port)")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	cfg := appConfig
	if port := viper.GetInt("server.port"); port > 0 {
		cfg.Server.Port = port
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := newRuntime(ctx, cfg, log, runtimeOptions{restore: true, watch: true})
	if err != nil {
		return err
	}

	srv := server.New(rt.gateway, server.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Version:        version,
	}, log)

	var wg sync.WaitGroup
	errChan := make(chan error, 1)
	srv.Start(&wg, errChan)

	fmt.Fprintf(os.Stderr, "Triage API listening on http://localhost:%d (Ctrl+C to stop)\n", cfg.Server.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())
	case runErr = <-errChan:
		log.Error("server stopped", "error", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}
	wg.Wait()
	cancel()

	if err := rt.Close(shutdownCtx); err != nil {
		log.Warn("pipeline shutdown", "error", err)
	}
	return runErr
}
