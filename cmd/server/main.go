package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kiraleos/assignment-helper/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "assignment-helper",
	Short: "Assignment tutor chatbot backend",
	Long: `assignment-helper answers student questions about a single assignment.

It greets, gives hints first, escalates to full solutions when asked, keeps
per-student conversation history and can suggest educational videos.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnvFile()

		var err error
		logger, err = newLogger("INFO")
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newLogger builds a production JSON logger at level (DEBUG, INFO, WARN,
// ERROR). Unknown levels fall back to INFO.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
