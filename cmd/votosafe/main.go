package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abrezinsky/votosafe/internal/config"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/pkg/reniec"
)

const programName = "votosafe"

var version = "dev"

var globalFlags = struct {
	configFile string
	logLevel   string
	logFormat  string
	store      string
	dbPath     string
}{}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%sError:%s %v\n", red, reset, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Voto Safe - mock electronic voting demo",
		Long: `Voto Safe - mock electronic voting demo

Runs the voting web server by default. Configuration is read from an
optional YAML file, a .env file and VOTOSAFE_* environment variables;
flags override all of them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd, serveFlags{})
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.configFile, "config", "", "path to YAML config file")
	pf.StringVar(&globalFlags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&globalFlags.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&globalFlags.store, "store", "", "storage backend: sqlite or badger")
	pf.StringVar(&globalFlags.dbPath, "db", "", "database path (sqlite file or badger directory)")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(ballotCommand())
	rootCmd.AddCommand(seedCommand())
	rootCmd.AddCommand(statsCommand())
	rootCmd.AddCommand(versionCommand())
	return rootCmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", programName, version)
		},
	}
}

// loadConfig reads the config file and environment, then applies any
// flags that were set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(globalFlags.configFile)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = globalFlags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = globalFlags.logFormat
	}
	if flags.Changed("store") {
		cfg.Store = globalFlags.store
	}
	if flags.Changed("db") {
		cfg.DatabasePath = globalFlags.dbPath
	}
}

// newLogger builds the application logger. A nil out writes to stdout.
func newLogger(cfg *config.Config, out io.Writer) *logger.SlogLogger {
	log := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: out,
	})
	if cfg.HTTPLogging {
		log.EnableHTTPLogging()
	}
	return log
}

// newRegistry returns the HTTP identity registry client when a URL is
// configured, otherwise the deterministic mock.
func newRegistry(cfg *config.Config, log logger.Logger) reniec.Client {
	if cfg.RegistryURL != "" {
		return reniec.NewHTTPClient(cfg.RegistryURL, log.With("component", "reniec"))
	}
	return reniec.NewMockClient()
}
