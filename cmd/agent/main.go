package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ampsupply-controller/internal/agent"
	"ampsupply-controller/internal/config"
	"ampsupply-controller/internal/logging"
)

// These variables will be set by the build script
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFile string
	rootCmd    = &cobra.Command{
		Use:   "agent",
		Short: "amp:supply relay controller",
		Long:  "Control agent for the amp:supply AC relay appliance. Switches the relay on MQTT commands and reports device health.",
	}

	runCmd = &cobra.Command{
		Use:          "run",
		Short:        "Run the controller",
		SilenceUsage: true,
		RunE:         runAgent,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ampsupply agent %s (commit %s, built %s)\n", version, commit, date)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/ampsupply/config.yaml", "Configuration file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configFile)
	if errors.Is(err, config.ErrMissingBroker) {
		// No broker credentials: the device cannot be reached, hand it to
		// the updater for reprovisioning.
		log := logging.New(config.Default().Logging, version)
		log.Error("bootstrap failed, rebooting into updater", "error", err)
		if rerr := agent.Recover(log); rerr != nil {
			return fmt.Errorf("recovery failed: %w", errors.Join(err, rerr))
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting agent", "commit", commit, "built", date, "device", cfg.Device.Name)

	a, release, err := agent.Build(cfg, version, log)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	defer release()

	go a.Run()

	<-ctx.Done()
	log.Info("shutting down agent")
	a.Shutdown()
	log.Info("agent shut down gracefully")
	return nil
}
