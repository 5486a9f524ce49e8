package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Koba-gh/bedrock-json-cdk/internal/server"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
)

var (
	extractFile     string
	extractSource   string
	extractDryRun   bool
	extractProvider string
	extractServer   string
)

var extractCmd = &cobra.Command{
	Use:   "extract [bucket key]",
	Short: "Extract and store the record for one object",
	Long: `Run the pipeline once for an object, the same way an upload
notification would, and print the stored item.

Examples:
  pcspecs extract uploads "desk/gaming beast.png"
  pcspecs extract --source minio uploads spec.pdf
  pcspecs extract --file ./spec.txt --dry-run --provider mock -o json
  pcspecs extract --server http://127.0.0.1:8080 uploads spec.pdf`,
	Args: func(cmd *cobra.Command, args []string) error {
		if extractFile != "" {
			if extractServer != "" {
				return fmt.Errorf("--file and --server cannot be combined")
			}
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if extractServer != "" {
			res, err := server.NewClient(extractServer).Extract(ctx, storage.ObjectRef{Bucket: args[0], Key: args[1]})
			if err != nil {
				return err
			}
			return Output(res)
		}

		overrides := map[string]any{}
		if extractDryRun {
			overrides["table.backend"] = "memory"
		}
		if extractProvider != "" {
			overrides["provider"] = extractProvider
		}
		a, err := newApp(overrides)
		if err != nil {
			return err
		}
		defer a.close()

		var (
			store storage.ObjectStore
			ref   storage.ObjectRef
		)
		switch {
		case extractFile != "":
			abs, err := filepath.Abs(extractFile)
			if err != nil {
				return err
			}
			store = storage.NewLocalStore(filepath.Dir(abs))
			ref = storage.ObjectRef{Bucket: "local", Key: filepath.Base(abs)}
		case extractSource == "minio":
			ms, err := a.minioStore()
			if err != nil {
				return err
			}
			store = ms
			ref = storage.ObjectRef{Bucket: args[0], Key: args[1]}
		case extractSource == "s3":
			s3, err := a.s3Store(ctx)
			if err != nil {
				return err
			}
			store = s3
			ref = storage.ObjectRef{Bucket: args[0], Key: args[1]}
		default:
			return fmt.Errorf("unknown source %q (want s3 or minio)", extractSource)
		}

		proc, err := a.processor(ctx, store)
		if err != nil {
			return err
		}
		res, err := proc.Process(ctx, ref)
		if err != nil {
			return err
		}
		return Output(res)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "read a local file instead of a bucket object")
	extractCmd.Flags().StringVar(&extractSource, "source", "s3", "object source for bucket/key: s3 or minio")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "keep the record in memory instead of writing the table")
	extractCmd.Flags().StringVar(&extractServer, "server", "", "send bucket/key to a running ops server instead of processing locally")
	extractCmd.Flags().StringVar(&extractProvider, "provider", "", "override the configured provider: bedrock, openai or mock")
}
