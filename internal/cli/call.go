package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolpipe/toolpipe/pkg/pipeline"
)

var (
	callInput   string
	callRole    string
	callTimeout time.Duration
	callNoCache bool
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Invoke a tool once and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runCall,
}

func init() {
	callCmd.Flags().StringVar(&callInput, "input", "{}", "tool input as a JSON object")
	callCmd.Flags().StringVar(&callRole, "role", "", "role to run the invocation as")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 0, "per-call timeout override")
	callCmd.Flags().BoolVar(&callNoCache, "no-cache", false, "bypass the result cache")

	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	_, _, p, logCloser, err := initApp()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	var input map[string]interface{}
	if err := json.Unmarshal([]byte(callInput), &input); err != nil {
		return fmt.Errorf("invalid --input: %w", err)
	}

	opts := pipeline.ExecuteOptions{
		Role:    callRole,
		Timeout: callTimeout,
	}
	if callNoCache {
		cacheEnabled := false
		opts.Cache = &cacheEnabled
	}

	result, err := p.ExecuteWithOptions(cmd.Context(), args[0], input, opts)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(map[string]interface{}{
		"tool":        result.ToolName,
		"output":      result.Output,
		"duration_ms": result.Duration.Milliseconds(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

	return nil
}
