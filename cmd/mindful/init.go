package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/mindful"
)

var initAdapter string

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a data root",
	Long:  `Create the .mindful system directory and a default mindful.yaml in the current directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fatal("Failed to get CWD", err)
		}

		cfg := &mindful.Config{Adapter: initAdapter, SystemDir: ".mindful"}
		if err := os.MkdirAll(filepath.Join(cwd, cfg.SystemDir), 0755); err != nil {
			fatal("Failed to create system directory", err)
		}

		path := filepath.Join(cwd, "mindful.yaml")
		if _, err := os.Stat(path); err == nil {
			fmt.Println("Already initialized:", path)
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			fatal("Failed to check configuration", err)
		}

		data, err := yaml.Marshal(map[string]any{
			"adapter":    cfg.Adapter,
			"system_dir": cfg.SystemDir,
		})
		if err != nil {
			fatal("Failed to encode configuration", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			fatal("Failed to write configuration", err)
		}

		fmt.Println("Initialized mindful data root in", cwd)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initAdapter, "with-adapter", "fs", "Storage adapter written to mindful.yaml")
}
