package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var setRaw bool

var setCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Write a slot",
	Long: `Write a value to a slot. The value must be JSON unless --raw is given.
Use "-" as the value to read it from stdin.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		value := []byte(args[1])
		if args[1] == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fatal("Failed to read stdin", err)
			}
			value = data
		}
		if !setRaw && !json.Valid(value) {
			fatal("Invalid value", errors.New("not valid JSON (use --raw to store it anyway)"))
		}

		ctx := context.Background()
		svc, closeAll := openService(ctx, loadConfig(), false)
		defer closeAll()

		key := slotKey(args[0])
		if err := svc.Set(ctx, key, value); err != nil {
			fatal("Failed to write slot", err)
		}
		fmt.Printf("Slot '%s' saved (%d bytes).\n", key, len(value))
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().BoolVar(&setRaw, "raw", false, "Store the value without JSON validation")
}
