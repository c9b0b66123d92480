package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/vaultctl/internal/config"
	"github.com/TheMichaelB/vaultctl/internal/events"
	"github.com/TheMichaelB/vaultctl/internal/models"
)

var (
	cfgFile    string
	logLevel   string
	jsonOutput bool
	noColor    bool

	cfg    *config.Config
	logger *events.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vaultctl",
	Short: "Inspect and decrypt password vault containers",
	Long: `vaultctl opens KDBX 3.x vault containers. Every hashed block is
verified before any of the document is used, and protected values are
masked unless explicitly revealed.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default: ./vaultctl.yaml or ~/.config/vaultctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := applyOverrides(loaded); err != nil {
		return err
	}

	if err := loaded.EnsureDirectories(); err != nil {
		return err
	}

	l, err := events.NewLogger(&loaded.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	cfg = loaded
	logger = l
	events.SetDefault(l)
	return nil
}

// applyOverrides applies the persistent flags on top of the loaded config.
func applyOverrides(c *config.Config) error {
	if logLevel != "" {
		c.Log.Level = strings.ToLower(logLevel)
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", models.ErrInvalidConfig, err)
		}
	}
	if noColor {
		c.Log.Color = false
		color.NoColor = true
	}
	return nil
}

// commandContext is cancelled on interrupt.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			printWarning("Interrupted, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// exitCode maps load failures to distinct process exit codes.
func exitCode(err error) int {
	switch models.ErrorCode(err) {
	case models.ErrCodeCredentials:
		return 2
	case models.ErrCodeIntegrity:
		return 3
	case models.ErrCodeFormat:
		return 4
	default:
		return 1
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
				"code":    models.ErrorCode(err),
			})
		} else {
			printError("Error: %v", err)
		}
		os.Exit(exitCode(err))
	}
}
