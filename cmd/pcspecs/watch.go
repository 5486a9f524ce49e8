package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Koba-gh/bedrock-json-cdk/internal/home"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
	"github.com/Koba-gh/bedrock-json-cdk/internal/trigger"
)

var (
	watchExisting bool
	watchBucket   string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Process files dropped into a local directory",
	Long: `Watch a directory tree and run the pipeline for every supported file
once it stops changing. Item keys are paths relative to the directory.
Without a directory, the inbox under the home directory is watched.

Examples:
  pcspecs watch ./inbox --provider mock
  pcspecs watch ./inbox --existing`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		dir, err := watchDir(args)
		if err != nil {
			return err
		}

		overrides := map[string]any{}
		if p, _ := cmd.Flags().GetString("provider"); p != "" {
			overrides["provider"] = p
		}
		a, err := newApp(overrides)
		if err != nil {
			return err
		}
		defer a.close()
		a.watchConfig()

		proc, err := a.processor(ctx, storage.NewLocalStore(dir))
		if err != nil {
			return err
		}
		ops := a.serveOps(ctx, proc)

		w := trigger.NewWatcher(trigger.WatcherConfig{
			Dir:      dir,
			Bucket:   watchBucket,
			Settle:   a.cfg.Watch.Settle,
			Existing: watchExisting,
			OnResult: logResult(a.logger),
		}, proc, a.logger)
		runErr := w.Run(ctx)
		cancel()
		if err := <-ops; err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	},
}

func watchDir(args []string) (string, error) {
	if len(args) == 1 {
		if _, err := os.Stat(args[0]); err != nil {
			return "", err
		}
		return args[0], nil
	}
	h, err := home.New(homeDir)
	if err != nil {
		return "", err
	}
	if err := h.EnsureExists(); err != nil {
		return "", err
	}
	return h.InboxPath(), nil
}

func init() {
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also process files already in the directory")
	watchCmd.Flags().StringVar(&watchBucket, "bucket", "local", "bucket name recorded on items")
	watchCmd.Flags().String("provider", "", "override the configured provider: bedrock, openai or mock")
}
