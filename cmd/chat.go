package cmd

import (
	"github.com/spf13/cobra"

	"github.com/linanwx/chatball/channel"
	"github.com/linanwx/chatball/conversation"
)

var (
	modeFlag       string
	noMarkdownFlag bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat (default command)",
	Long: `Start an interactive chat with the backend.

A full-screen interface is used when stdin is a terminal, line mode
otherwise. Use --mode to force one.

Keys (full-screen): Enter send, Esc stop the answer, Ctrl+L toggle logs,
Ctrl+C quit. Commands: /clear starts over, /quit exits.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	addChatFlags(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

func addChatFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&modeFlag, "mode", "", "Interface: auto, tui or plain (overrides config)")
	cmd.Flags().BoolVar(&noMarkdownFlag, "no-markdown", false, "Show answers as plain text")
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c := newClient(cfg)
	ctrl := conversation.New(c, conversation.Config{TopK: cfg.API.TopK})

	mode := cfg.UI.Mode
	if modeFlag != "" {
		mode = modeFlag
	}
	ch := channel.New(ctrl, channel.Config{
		Mode:           mode,
		Markdown:       cfg.MarkdownEnabled() && !noMarkdownFlag,
		Prober:         c,
		HealthInterval: cfg.HealthPollInterval(),
	})
	return ch.Run(cmd.Context())
}
