package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reflex/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and exercise the capability registry",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered capabilities",
	RunE:  listTools,
}

var toolsInvokeCmd = &cobra.Command{
	Use:   "invoke [name] [json-args]",
	Short: "Invoke a capability directly, outside any plan",
	Long: `Runs one capability with JSON arguments. Useful for checking a
manifest before the agent depends on it.

Example:
  reflex tools invoke calc_eval '{"expression": "(3+4)*12"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: invokeTool,
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsInvokeCmd)
}

func buildRegistry() (*tools.Registry, error) {
	registry := tools.NewRegistry(logger)
	if cfg.Tools.EnableBuiltins {
		tools.RegisterBuiltins(registry)
	}
	if cfg.Tools.ManifestDir != "" {
		if _, err := tools.LoadManifestDir(registry, cfg.Tools.ManifestDir); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func listTools(cmd *cobra.Command, args []string) error {
	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	all := registry.All()
	if len(all) == 0 {
		fmt.Println("No capabilities registered.")
		return nil
	}

	for _, d := range all {
		fmt.Printf("%-20s %-10s %s\n", d.Name, d.ServerID, d.Description)
		for _, req := range d.Parameters.Required {
			if p, ok := d.Parameters.Properties[req]; ok {
				fmt.Printf("  %s [%s]: %s\n", req, p.Type, p.Description)
			}
		}
		if len(d.Tags) > 0 {
			fmt.Printf("  tags: %s\n", strings.Join(d.Tags, ", "))
		}
	}
	fmt.Printf("\n%d capabilities.\n", len(all))
	return nil
}

func invokeTool(cmd *cobra.Command, args []string) error {
	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	toolArgs := map[string]any{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	result, err := registry.Invoke(cmd.Context(), args[0], toolArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invoke failed: %v\n", err)
		return err
	}
	fmt.Printf("%s  (%dms)\n", result.Value, result.DurationMs)
	return nil
}
