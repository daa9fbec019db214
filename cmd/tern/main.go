package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternflow/tern/pkg/compute"
	"github.com/ternflow/tern/pkg/config"
	"github.com/ternflow/tern/pkg/log"
	"github.com/ternflow/tern/pkg/metrics"
	"github.com/ternflow/tern/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tern",
	Short: "Tern - distributed workflow task executor",
	Long: `Tern submits workflow tasks to a grid of worker nodes, stages their
inputs into worker-local scratch areas, runs them under load-balanced
placement, and copies declared outputs back to shared storage.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tern %s (commit %s, built %s)\n", Version, Commit, BuildTime)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a worker node",
	Long: `Starts a worker that executes task envelopes on this machine. In local
mode the worker hosts its own grid; tasks submitted through the same process
run on it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		initLogging(cfg)

		grid := compute.NewGrid()
		w, err := worker.NewWorker(&worker.Config{
			Slots:     cfg.Slots,
			CacheRoot: cfg.CacheRoot,
		})
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Join(grid); err != nil {
			return err
		}

		if cfg.MetricsAddr != "" {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
					log.Errorf("Metrics server stopped", err)
				}
			}()
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("Shutting down worker")
		grid.Close()
		return nil
	},
}

func initLogging(cfg config.Config) {
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(renderCmd)
}
