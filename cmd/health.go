package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/linanwx/chatball/config"
	"github.com/linanwx/chatball/internal/health"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the backend and the local setup",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	configPath, _ := config.ConfigPath()
	c := newClient(cfg)

	snap := health.Collect(cmd.Context(), health.Options{
		Prober:     c,
		BaseURL:    c.BaseURL(),
		ConfigPath: configPath,
		LogPath:    logFilePath(cfg),
	})

	out := cmd.OutOrStdout()
	if healthJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
	} else {
		printHealth(out, snap)
	}

	if !snap.Backend.Reachable {
		return errors.New("backend unreachable")
	}
	return nil
}

func printHealth(w io.Writer, s health.Snapshot) {
	status := color.GreenString(s.Status)
	switch {
	case !s.Backend.Reachable:
		status = color.RedString(s.Status)
	case !s.Backend.OK:
		status = color.YellowString(s.Status)
	}
	fmt.Fprintf(w, "Status:   %s\n", status)
	fmt.Fprintf(w, "Backend:  %s\n", s.Backend.BaseURL)
	if s.Backend.Provider != "" || s.Backend.Model != "" {
		fmt.Fprintf(w, "Model:    %s %s\n", s.Backend.Provider, s.Backend.Model)
	}
	fmt.Fprintf(w, "Latency:  %s\n", s.Backend.Latency.Round(1e6))
	if s.Backend.Err != "" {
		fmt.Fprintf(w, "Error:    %s\n", color.RedString(s.Backend.Err))
	}
	fmt.Fprintf(w, "Runtime:  %s %s/%s\n", s.Runtime.Version, s.Runtime.OS, s.Runtime.Arch)
	printFile(w, "Config:  ", s.Config)
	printFile(w, "Log:     ", s.Log)
}

func printFile(w io.Writer, label string, f *health.FileInfo) {
	if f == nil {
		return
	}
	switch {
	case !f.Exists:
		fmt.Fprintf(w, "%s %s (missing)\n", label, f.Path)
	case f.ParseError != "":
		fmt.Fprintf(w, "%s %s %s\n", label, f.Path, color.RedString("(invalid: %s)", f.ParseError))
	default:
		fmt.Fprintf(w, "%s %s (%d bytes, updated %s)\n", label, f.Path, f.FileSizeBytes, f.UpdatedAt)
	}
}
