package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Koba-gh/bedrock-json-cdk/internal/config"
	"github.com/Koba-gh/bedrock-json-cdk/internal/home"
)

var (
	configForce  bool
	configInHome bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := home.ConfigFileName
		switch {
		case len(args) == 1:
			path = args[0]
		case configInHome:
			h, err := home.New(homeDir)
			if err != nil {
				return err
			}
			if err := h.EnsureExists(); err != nil {
				return err
			}
			path = h.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print configuration after defaults, config file and environment are
merged. ${ENV_VAR} references are shown unexpanded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(configPath())
		if err != nil {
			return err
		}
		return Output(redacted(*mgr.Get()))
	},
}

// redacted blanks every secret that is a literal value. ${ENV_VAR}
// references are kept since they name the secret without holding it.
func redacted(cfg config.Config) config.Config {
	for _, secret := range []*string{
		&cfg.AWS.SecretAccessKey,
		&cfg.OpenAI.APIKey,
		&cfg.MinIO.SecretKey,
		&cfg.Table.PostgresDSN,
	} {
		if *secret != "" && !strings.HasPrefix(*secret, "${") {
			*secret = "<redacted>"
		}
	}
	return cfg
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configInitCmd.Flags().BoolVar(&configInHome, "user", false, "write to the home directory instead of ./pcspecs.yaml")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
