package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune [owner]",
	Short: "Remove every slot of an owner",
	Long:  `Remove all slots keyed to an owner, e.g. after the account was deleted. Nothing is removed implicitly on sign-out.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc, closeAll := openService(ctx, loadConfig(), false)
		defer closeAll()

		removed, err := svc.PruneOwner(ctx, args[0])
		if err != nil {
			fatal("Failed to prune owner", err)
		}
		for _, k := range removed {
			fmt.Println("removed", k)
		}
		fmt.Printf("%d slot(s) removed.\n", len(removed))
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
