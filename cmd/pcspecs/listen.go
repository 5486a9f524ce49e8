package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Koba-gh/bedrock-json-cdk/internal/pipeline"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
	"github.com/Koba-gh/bedrock-json-cdk/internal/trigger"
)

var (
	listenBucket       string
	listenPrefix       string
	listenCreateBucket bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Process uploads to a MinIO bucket as they arrive",
	Long: `Subscribe to s3:ObjectCreated:* notifications of a MinIO bucket and run
the pipeline for every supported object, like the S3 trigger does in AWS.

When server.addr is set, /health, /ready, /metrics and POST /extract are
served alongside.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()
		a.watchConfig()

		bucket := listenBucket
		if bucket == "" {
			bucket = a.cfg.MinIO.Bucket
		}
		if bucket == "" {
			return errors.New("bucket is required (--bucket or minio.bucket)")
		}

		store, err := a.minioStore()
		if err != nil {
			return err
		}
		if listenCreateBucket {
			if err := store.EnsureBucket(ctx, bucket, a.cfg.MinIO.Region); err != nil {
				return err
			}
		}
		a.checks["minio"] = func(ctx context.Context) error {
			_, err := store.Client().BucketExists(ctx, bucket)
			return err
		}

		proc, err := a.processor(ctx, store)
		if err != nil {
			return err
		}
		ops := a.serveOps(ctx, proc)

		l := trigger.NewListener(store.Client(), bucket, listenPrefix, proc, a.logger)
		l.OnResult(logResult(a.logger))
		runErr := l.Run(ctx)
		cancel()
		if err := <-ops; err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	},
}

func init() {
	listenCmd.Flags().StringVar(&listenBucket, "bucket", "", "bucket to listen on (default: minio.bucket)")
	listenCmd.Flags().StringVar(&listenPrefix, "prefix", "", "only process keys with this prefix")
	listenCmd.Flags().BoolVar(&listenCreateBucket, "create-bucket", false, "create the bucket if it does not exist")
}

// logResult reports each processed object on stdout in the output format.
func logResult(logger *zap.Logger) trigger.ResultFunc {
	return func(ref storage.ObjectRef, res *pipeline.Result, err error) {
		if err != nil {
			return
		}
		if outErr := Output(res.Item); outErr != nil {
			logger.Warn("failed to print result", zap.Error(outErr))
		}
	}
}
