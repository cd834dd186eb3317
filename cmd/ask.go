package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/linanwx/chatball/channel"
	"github.com/linanwx/chatball/chat"
	"github.com/linanwx/chatball/client"
	"github.com/linanwx/chatball/termmd"
)

var (
	askNoStream bool
	askRender   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask one question and print the answer",
	Long: `Ask a single question without history and print the answer to stdout.

The question is taken from the arguments, or from stdin when no
arguments are given. Ctrl+C stops the answer.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "Wait for the full answer instead of streaming it")
	askCmd.Flags().BoolVar(&askRender, "render", false, "Render the answer as terminal markdown (implies waiting for the full answer)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question, err := readQuestion(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c := newClient(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	messages := []chat.Turn{chat.UserTurn(question)}

	if askNoStream {
		resp, err := c.Ask(ctx, messages, 0)
		if err != nil {
			return err
		}
		writeAnswer(out, resp.Answer)
		return nil
	}

	answer, err := streamAnswer(ctx, c, messages, out, !askRender)
	if askRender && answer != "" {
		writeAnswer(out, answer)
	}
	return err
}

func readQuestion(args []string, in io.Reader) (string, error) {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read question: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return "", errors.New("no question given")
	}
	return question, nil
}

// streamAnswer streams one answer, echoing deltas to out when echo is set,
// and returns the accumulated text.
func streamAnswer(ctx context.Context, c *client.Client, messages []chat.Turn, out io.Writer, echo bool) (string, error) {
	var (
		mu       sync.Mutex
		answer   strings.Builder
		finished bool
		failure  error
	)
	h := c.Stream(ctx, messages, client.StreamOptions{}, client.Callbacks{
		OnDelta: func(text string) {
			mu.Lock()
			defer mu.Unlock()
			answer.WriteString(text)
			if echo {
				_, _ = io.WriteString(out, text)
			}
		},
		OnDone: func() {
			mu.Lock()
			finished = true
			mu.Unlock()
		},
		OnError: func(err error) {
			mu.Lock()
			failure = err
			mu.Unlock()
		},
	})
	<-h.Done()

	mu.Lock()
	defer mu.Unlock()
	if echo && answer.Len() > 0 {
		fmt.Fprintln(out)
	}
	switch {
	case failure != nil:
		return answer.String(), failure
	case ctx.Err() != nil:
		fmt.Fprintln(os.Stderr, color.YellowString("(stopped)"))
		return answer.String(), nil
	case !finished:
		return answer.String(), errors.New("answer ended unexpectedly")
	}
	return answer.String(), nil
}

func writeAnswer(out io.Writer, answer string) {
	if askRender {
		fmt.Fprintln(out, strings.TrimRight(termmd.Render(answer, channel.TerminalWidth(out, 80)), "\n"))
		return
	}
	fmt.Fprintln(out, answer)
}
