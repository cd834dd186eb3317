// Package cmd implements the chatball command line.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linanwx/chatball/client"
	"github.com/linanwx/chatball/config"
	"github.com/linanwx/chatball/logger"
)

var (
	configDirFlag string
	apiURLFlag    string
	topKFlag      int
)

var rootCmd = &cobra.Command{
	Use:   "chatball",
	Short: "Chat with a retrieval-backed assistant from the terminal",
	Long: `chatball sends your questions, with the conversation so far, to a chat
backend and streams the answer back as it is generated.

Examples:
  chatball                                   # interactive chat
  chatball ask "How long is a quarter?"      # one question, answer on stdout
  chatball health                            # check the backend
  chatball onboard                           # write a config file`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configDirFlag == "" {
			return nil
		}
		// main initialized logging from the default location.
		config.SetConfigDir(configDirFlag)
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return initLogger(cfg)
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "Config directory (default ~/.chatball, or $"+config.EnvConfigDir+")")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "Backend base URL (overrides config and $"+config.EnvAPIURL+")")
	rootCmd.PersistentFlags().IntVar(&topKFlag, "top-k", 0, "Number of retrieved passages per answer (overrides config)")
	addChatFlags(rootCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'chatball onboard' to create one", err)
	}
	if v := strings.TrimSpace(apiURLFlag); v != "" {
		cfg.API.BaseURL = v
	}
	if topKFlag > 0 {
		cfg.API.TopK = topKFlag
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *client.Client {
	return client.New(client.Config{
		BaseURL:   cfg.API.BaseURL,
		TopK:      cfg.API.TopK,
		Headers:   cfg.API.Headers,
		ExtraBody: cfg.API.ExtraBody,
	})
}

func initLogger(cfg *config.Config) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	return logger.Init(cfg.BuildLoggerConfig(), dir)
}

// logFilePath returns the absolute log file path, or "" when file logging is off.
func logFilePath(cfg *config.Config) string {
	lc := cfg.BuildLoggerConfig()
	if !lc.Enabled || lc.File == "" {
		return ""
	}
	if filepath.IsAbs(lc.File) {
		return lc.File
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, lc.File)
}
