// Command tracectl manages the Trace record store and runs voice queries from
// the terminal.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"trace-go/internal/config"
	"trace-go/internal/logger"
)

var (
	flagDB      string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "tracectl",
	Short:         "Manage Trace records and ask questions about them",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "record store path (default DATABASE_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log pipeline progress to stderr")
}

// loadConfig applies the --db override on top of the usual configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DatabasePath = flagDB
	}
	return cfg, nil
}

func newLogger() *logger.Logger {
	log := logger.NewWithOutput(os.Stderr)
	if !flagVerbose {
		log.Logger.SetLevel(logrus.WarnLevel)
	}
	return log
}
