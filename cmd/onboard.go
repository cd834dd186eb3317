package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/linanwx/chatball/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Create the chatball configuration",
	Long:  `Create the chatball configuration directory and config file.`,
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config already exists at:", configPath)
		fmt.Println("To reconfigure, edit the file directly or delete it first.")
		return nil
	}

	cfg := config.DefaultConfig()

	// --- interactive wizard ---

	var (
		baseURL  = cfg.API.BaseURL
		topK     = strconv.Itoa(cfg.API.TopK)
		mode     = cfg.UI.Mode
		markdown = cfg.MarkdownEnabled()
	)

	// Step 1: backend
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Where the chat service listens, e.g. http://localhost:8000.").
				Validate(validateBaseURL).
				Value(&baseURL),
			huh.NewInput().
				Title("Passages per answer").
				Description("How many retrieved passages the backend should use (top_k).").
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n <= 0 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}).
				Value(&topK),
		),
	).Run()
	if err != nil {
		return err
	}

	// Step 2: interface
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose the chat interface").
				Description("auto uses the full-screen interface when running in a terminal.").
				Options(
					huh.NewOption("auto", config.UIModeAuto),
					huh.NewOption("full-screen", config.UIModeTUI),
					huh.NewOption("plain lines", config.UIModePlain),
				).
				Value(&mode),
			huh.NewConfirm().
				Title("Render answers as markdown?").
				Value(&markdown),
		),
	).Run()
	if err != nil {
		return err
	}

	// --- apply config ---

	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	cfg.API.TopK, _ = strconv.Atoi(strings.TrimSpace(topK))
	cfg.UI.Mode = mode
	cfg.UI.Markdown = &markdown

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("chatball configured successfully!")
	fmt.Println()
	fmt.Println("  Config:", configPath)
	fmt.Println("  Backend:", cfg.API.BaseURL)
	fmt.Println()
	fmt.Println("Run 'chatball' to start chatting, or 'chatball health' to check the backend.")
	return nil
}

func validateBaseURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("backend URL is required")
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("enter an http or https URL")
	}
	return nil
}
