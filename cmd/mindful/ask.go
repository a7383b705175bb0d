package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/mindful"
	"github.com/aretw0/mindful/pkg/assistant"
)

var (
	askWeb    bool
	askSystem string
	askJSON   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt...]",
	Short: "Ask the assistant a single question",
	Long: `Send a prompt to the generative model. When the model cannot be reached
(or no API key is configured) a canned message in the configured locale is printed instead.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := context.Background()
		client := newAssistant(ctx, cfg)

		opts := assistant.Options{SystemInstruction: askSystem, WebSearch: askWeb}
		var res assistant.Result
		if client == nil {
			res = assistant.Result{Text: assistant.Fallback(cfg.Locale), Fallback: true}
		} else {
			res = client.GenerateOrFallback(ctx, strings.Join(args, " "), opts, cfg.Locale)
		}

		if askJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(res); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		fmt.Println(res.Text)
		for i, c := range res.Citations {
			title := c.Title
			if title == "" {
				title = c.URI
			}
			fmt.Printf("[%d] %s <%s>\n", i+1, title, c.URI)
		}
	},
}

// newAssistant returns nil when no API key is configured.
func newAssistant(ctx context.Context, cfg *mindful.Config) *assistant.Client {
	if cfg.GenAIAPIKey == "" {
		slog.Warn("no API key configured (MINDFUL_GENAI_API_KEY), assistant disabled")
		return nil
	}
	client, err := assistant.New(ctx, cfg.GenAIAPIKey,
		assistant.WithModel(cfg.Model),
		assistant.WithLogger(slog.Default()),
	)
	if err != nil {
		slog.Warn("failed to create assistant client", "error", err)
		return nil
	}
	return client
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askWeb, "web", false, "Ground the answer with web search and print citations")
	askCmd.Flags().StringVar(&askSystem, "system", "", "System instruction")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Output in JSON format")
}
