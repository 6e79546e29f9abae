package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"example.com/backstage/services/jamfops/config"
	"example.com/backstage/services/jamfops/internal/app"
	"example.com/backstage/services/jamfops/internal/functions"
)

var (
	// Used for flags
	cfgFile   string
	logLevel  string
	logFormat string
	dryRun    bool

	// Logger instance for all commands
	log = logrus.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jamfops",
	Short: "Jamf Pro device lifecycle automation",
	Long: `jamfops moves stale computers in and out of Jamf Pro management.

Selectors resolve saved advanced searches onto work queues, workers change
the remote-management state of each queued computer, and a notifier relays
the results to chat. A per-site encryption report is published to a topic.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to logging.level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, text); defaults to logging.format")

	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log device transitions instead of applying them")
}

// setupLogging configures the global logger based on command line flags
func setupLogging() {
	switch logLevel {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info", "":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	if logFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	log.SetOutput(os.Stderr)
}

// loadConfig reads the configuration and applies it to the logger. Flags
// given on the command line win over the file.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if !rootCmd.PersistentFlags().Changed("log-level") {
		logLevel = cfg.Logging.Level
	}
	if !rootCmd.PersistentFlags().Changed("log-format") {
		logFormat = cfg.Logging.Format
	}
	if cfg.Debug {
		logLevel = "debug"
	}
	setupLogging()

	return cfg
}

// bootstrap builds the runtime and the function registry over it.
func bootstrap(ctx context.Context, cfg *config.Config) (*app.Runtime, *functions.Registry, error) {
	rt, err := app.New(ctx, cfg, log.WithField("environment", cfg.Environment))
	if err != nil {
		return nil, nil, err
	}
	if dryRun {
		rt.DryRun = true
	}

	log.WithFields(logrus.Fields{
		"stage":        cfg.Stage,
		"queue_driver": cfg.Queue.Driver,
		"topic_driver": cfg.Topic.Driver,
		"dry_run":      rt.DryRun,
	}).Info("Runtime initialized")

	return rt, functions.NewRegistry(functions.FromRuntime(rt), rt.NewRelic, rt.Metrics, log), nil
}
