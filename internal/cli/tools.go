package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools",
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	_, _, p, logCloser, err := initApp()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	for _, tool := range p.Registry().All() {
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", tool.Name, tool.Description)
	}

	return nil
}
