package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/mindful"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of mindful",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mindful version %s\n", strings.TrimSpace(mindful.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
