package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the latest delivery attempt for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("GET", "/status/"+args[0], nil)
		if err != nil {
			return fmt.Errorf("status lookup failed: %w", err)
		}
		return printResponse(resp)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
