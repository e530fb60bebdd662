package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"foreman/internal/control"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the run active in this directory",
	Long: `Cancel drops a cancel signal into .foreman/signals. A foreman run
started from the same directory picks it up and stops: in-flight tasks
are frozen as failed and the partial report is still produced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		watcher, err := control.NewWatcher(filepath.Join(cwd, ".foreman"))
		if err != nil {
			return fmt.Errorf("open control directory: %w", err)
		}
		defer watcher.Close()

		if err := watcher.SendCancel(); err != nil {
			return fmt.Errorf("send cancel signal: %w", err)
		}
		fmt.Println("Cancel signal sent.")
		return nil
	},
}
