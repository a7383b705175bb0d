package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/mindful/pkg/core"
)

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch [pattern]",
	Short: "Print slot changes made by other processes",
	Long: `Follow the storage and print every change made by another handle
(another process on the same root, or another host through the relay) until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pattern := "*"
		if len(args) == 1 {
			pattern = args[0]
		}

		ctx, cancel := interruptible()
		defer cancel()

		svc, closeAll := openService(ctx, loadConfig(), true)
		defer closeAll()

		events, err := svc.Watch(ctx, pattern)
		if err != nil {
			fatal("Failed to watch storage", err)
		}

		fmt.Fprintf(os.Stderr, "Watching '%s' (Ctrl+C to stop)\n", pattern)
		encoder := json.NewEncoder(os.Stdout)
		for e := range events {
			if watchJSON {
				if err := encoder.Encode(eventView(e)); err != nil {
					fatal("Failed to encode JSON", err)
				}
				continue
			}
			fmt.Println(e.String())
		}
	},
}

type watchEvent struct {
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Removed   bool            `json:"removed,omitempty"`
	Origin    string          `json:"origin,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Value     json.RawMessage `json:"value,omitempty"`
}

func eventView(e core.Event) watchEvent {
	v := watchEvent{
		Type:      string(e.Type),
		Key:       e.Key,
		Removed:   e.Removed,
		Origin:    e.Origin,
		Timestamp: e.Timestamp,
	}
	if json.Valid(e.Value) {
		v.Value = e.Value
	}
	return v
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Output one JSON object per event")
}
