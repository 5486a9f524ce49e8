package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Koba-gh/bedrock-json-cdk/version"
)

var (
	cfgFile      string
	homeDir      string
	envFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "pcspecs",
	Short: "Extract PC specifications from uploaded images and documents",
	Long: `pcspecs reads an uploaded image, PDF or text file, asks a model to
call json_tool with the PC specifications it shows, and stores the six
validated fields as one table item keyed by the object key.

It runs as the S3-triggered Lambda function, or locally against MinIO
bucket notifications or a watched directory.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
			return err
		}
		return SetOutputFormat(outputFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./pcspecs.yaml or ~/.pcspecs/pcspecs.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "pcspecs home directory (default: ~/.pcspecs)",
	)
	rootCmd.PersistentFlags().StringVar(
		&envFile, "env-file", ".env", "dotenv file loaded before config",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.AddCommand(lambdaCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadEnvFile loads path without overriding variables already set. A
// missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
