package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/swarm-autopilot/internal/config"
	"github.com/cuemby/swarm-autopilot/internal/controlloop"
	"github.com/cuemby/swarm-autopilot/internal/metricsource"
	"github.com/cuemby/swarm-autopilot/internal/nodelifecycle"
	"github.com/cuemby/swarm-autopilot/internal/orchestrator"
	"github.com/cuemby/swarm-autopilot/internal/provider"
	_ "github.com/cuemby/swarm-autopilot/internal/provider/hetzner"
	"github.com/cuemby/swarm-autopilot/internal/scaler"
	"github.com/cuemby/swarm-autopilot/pkg/log"
	"github.com/cuemby/swarm-autopilot/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Closed-loop autoscaler for a Docker Swarm cluster",
	Long: `autopilot watches a Swarm cluster's service and cluster-wide CPU
(and optionally memory) load against a Prometheus-compatible metrics
backend and scales service replicas, and optionally cluster nodes through
a pluggable cloud provider, to keep load within configured bounds.`,
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"autopilot version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().Int("metrics-port", 9100, "Port to serve the autoscaler's own Prometheus metrics on")

	config.RegisterFlags(rootCmd.Flags())
	provider.RegisterAllFlags(rootCmd.Flags())

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func run(cmd *cobra.Command, _ []string) error {
	if name, ok := provider.HelpRequested(cmd.Flags()); ok {
		fmt.Print(provider.FragmentUsage(name))
		return nil
	}

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	orchestratorClient := orchestrator.NewClient(cfg.DockerSocket, config.ClientTimeout())
	metricsClient := metricsource.NewClient(cfg.MetricsURL, config.ClientTimeout())

	serviceScaler := scaler.New(orchestratorClient, cfg.Policy)

	var nodeLifecycle controlloop.NodeLifecycle
	if cfg.NodeScaleEnabled {
		nodeProvider, err := provider.Build(cfg.NodeScaleProvider, cmd.Flags())
		if err != nil {
			return fmt.Errorf("building node provider %q: %w", cfg.NodeScaleProvider, err)
		}
		nodeLifecycle = nodelifecycle.New(orchestratorClient, nodeProvider, cfg.Policy)
	}

	loop := controlloop.New(orchestratorClient, metricsClient, serviceScaler, nodeLifecycle, cfg.Policy)

	metricsPort, _ := cmd.Flags().GetInt("metrics-port")
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", metricsPort),
		Handler: metrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Run(ctx)
	}()

	select {
	case <-sigCh:
		log.Logger.Info().Msg("shutdown signal received")
		cancel()
		return <-errCh
	case err := <-errCh:
		return err
	}
}
