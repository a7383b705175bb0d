package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete [key]",
	Aliases: []string{"rm"},
	Short:   "Remove a slot",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc, closeAll := openService(ctx, loadConfig(), false)
		defer closeAll()

		key := slotKey(args[0])
		if err := svc.Remove(ctx, key); err != nil {
			fatal("Failed to remove slot", err)
		}
		fmt.Printf("Slot '%s' removed.\n", key)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
