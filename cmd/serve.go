package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/camden-git/facebench/config"
	"github.com/camden-git/facebench/handlers"
	"github.com/camden-git/facebench/recognition"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the statistics API",
	Long: `Starts the HTTP API over the persisted statistics. The live frame and the
event stream are only available from "facebench run --serve".`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	thresholds, err := recognition.NewThresholds(cfg.Thresholds)
	if err != nil {
		return err
	}
	addr := cfg.HTTPAddr
	if a := mustGetString(cmd, "addr"); a != "" {
		addr = a
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := &http.Server{
		Addr: addr,
		Handler: handlers.NewRouter(handlers.Routes{
			Stats:   handlers.NewStatsHandler(store, thresholds, cfg.StatsCacheTTL),
			Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down server...")
		case <-ctx.Done():
		}
		shutdownServer(server)
	}()

	fmt.Printf("Server starting on http://localhost%s\n", addr)
	log.Printf("Server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
