package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var getPretty bool

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the content of a slot",
	Long:  `Print the raw content of a slot. With --owner the argument is a base key (e.g. "tasks").`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc, closeAll := openService(ctx, loadConfig(), false)
		defer closeAll()

		key := slotKey(args[0])
		data, ok, err := svc.Get(ctx, key)
		if err != nil {
			fatal("Failed to read slot", err)
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "Slot '%s' is empty\n", key)
			os.Exit(1)
		}

		if getPretty {
			var v any
			if err := json.Unmarshal(data, &v); err == nil {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(v); err != nil {
					fatal("Failed to encode JSON", err)
				}
				return
			}
		}
		fmt.Println(string(data))
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().BoolVar(&getPretty, "pretty", false, "Indent JSON content")
}
