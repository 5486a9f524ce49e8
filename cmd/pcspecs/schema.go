package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Koba-gh/bedrock-json-cdk/internal/specs"
)

var schemaExample bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the extraction tool definition",
	Long: `Print the json_tool definition sent with every request: its name,
description and input schema. With --example, print a valid tool input
instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if schemaExample {
			rec, err := specs.ParseArguments(specs.ExampleArguments())
			if err != nil {
				return err
			}
			return Output(rec)
		}

		var schema map[string]any
		if err := json.Unmarshal(specs.ToolSchema(), &schema); err != nil {
			return fmt.Errorf("failed to decode tool schema: %w", err)
		}
		return Output(map[string]any{
			"name":         specs.ToolName,
			"description":  specs.ToolDescription,
			"input_schema": schema,
		})
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaExample, "example", false, "print an example tool input")
}
