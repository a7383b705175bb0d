package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var keysJSON bool

var keysCmd = &cobra.Command{
	Use:   "keys [pattern]",
	Short: "List slot keys",
	Long:  `List the slots whose key matches a glob pattern (default "*"). With --owner only that owner's slots are listed.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pattern := "*"
		if len(args) == 1 {
			pattern = args[0]
		}
		if owner != "" && len(args) == 0 {
			pattern = "*_" + owner
		}

		ctx := context.Background()
		svc, closeAll := openService(ctx, loadConfig(), false)
		defer closeAll()

		keys, err := svc.Keys(ctx, pattern)
		if err != nil {
			fatal("Failed to list slots", err)
		}

		if keysJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if keys == nil {
				keys = []string{}
			}
			if err := encoder.Encode(keys); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}
		for _, k := range keys {
			fmt.Println(k)
		}
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.Flags().BoolVar(&keysJSON, "json", false, "Output in JSON format")
}
