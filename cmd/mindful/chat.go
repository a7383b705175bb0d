package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/mindful/pkg/assistant"
	"github.com/aretw0/mindful/pkg/scoped"
)

const chatHistoryKey = "chat"

var (
	chatSystem string
	chatReset  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant",
	Long: `Start an interactive chat. Answers are streamed as they are produced.
With --owner the conversation is kept in the owner's "chat" slot and resumed next time.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx, cancel := interruptible()
		defer cancel()

		client := newAssistant(ctx, cfg)
		if client == nil {
			fmt.Println(assistant.Fallback(cfg.Locale))
			os.Exit(1)
		}

		svc, closeAll := openService(ctx, cfg, false)
		defer closeAll()

		history, err := scoped.New(ctx, svc.Storage(), chatHistoryKey, []assistant.Message{}, owner,
			scoped.WithLogger(slog.Default()), scoped.WithoutSync())
		if err != nil {
			fatal("Failed to open chat history", err)
		}
		if chatReset {
			if err := history.Set(ctx, []assistant.Message{}); err != nil {
				slog.Warn("failed to reset chat history", "error", err)
			}
		}
		if n := len(history.Value()); n > 0 {
			fmt.Fprintf(os.Stderr, "Resuming conversation (%d messages)\n", n)
		}

		opts := assistant.Options{SystemInstruction: chatSystem}
		lines := readLines(os.Stdin)
		var seq assistant.Sequencer
		pending := ""
		for {
			msg := pending
			pending = ""
			if msg == "" {
				fmt.Print("> ")
				select {
				case line, ok := <-lines:
					if !ok {
						fmt.Println()
						return
					}
					msg = strings.TrimSpace(line)
				case <-ctx.Done():
					return
				}
			}
			if msg == "" {
				continue
			}
			if msg == "/exit" || msg == "/quit" {
				return
			}

			token := seq.Next()
			turnCtx, stopTurn := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				streamTurn(turnCtx, client, history, &seq, token, msg, opts)
			}()

			// A line typed while the answer streams supersedes it.
			select {
			case <-done:
			case line, ok := <-lines:
				seq.Next()
				stopTurn()
				<-done
				fmt.Fprintln(os.Stderr, "\n(answer interrupted)")
				if ok {
					pending = strings.TrimSpace(line)
				}
			case <-ctx.Done():
			}
			stopTurn()
			if ctx.Err() != nil {
				return
			}
		}
	},
}

// streamTurn streams one answer and records the exchange, unless token was
// superseded in the meantime.
func streamTurn(ctx context.Context, client *assistant.Client, history *scoped.Store[[]assistant.Message],
	seq *assistant.Sequencer, token assistant.Token, msg string, opts assistant.Options) {
	var answer strings.Builder
	failed := false
	client.StreamChat(ctx, history.Value(), msg,
		func(text string, final bool) {
			seq.Apply(token, func() {
				if final {
					fmt.Println()
					return
				}
				answer.WriteString(text)
				fmt.Print(text)
			})
		},
		func(err error) {
			seq.Apply(token, func() {
				failed = true
				fmt.Println()
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			})
		},
		opts,
	)

	seq.Apply(token, func() {
		if failed || ctx.Err() != nil {
			return
		}
		err := history.Update(ctx, func(prev []assistant.Message) []assistant.Message {
			return append(prev,
				assistant.Message{Role: assistant.RoleUser, Text: msg},
				assistant.Message{Role: assistant.RoleModel, Text: answer.String()},
			)
		})
		if err != nil {
			slog.Warn("chat history not saved", "error", err)
		}
	})
}

// readLines feeds r line by line into a channel that is closed at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatSystem, "system", "You are a supportive wellbeing assistant.", "System instruction")
	chatCmd.Flags().BoolVar(&chatReset, "reset", false, "Start a new conversation")
}
