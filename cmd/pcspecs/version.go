package main

import (
	"github.com/spf13/cobra"

	"github.com/Koba-gh/bedrock-json-cdk/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Output(version.Get())
	},
}
