package trigger

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7/pkg/notification"
	"go.uber.org/zap"

	"github.com/Koba-gh/bedrock-json-cdk/internal/media"
	"github.com/Koba-gh/bedrock-json-cdk/internal/specs"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
)

// ObjectCreatedEvents are the notification types the listener subscribes to.
var ObjectCreatedEvents = []string{string(notification.ObjectCreatedAll)}

// NotificationSource is satisfied by *minio.Client.
type NotificationSource interface {
	ListenBucketNotification(ctx context.Context, bucketName, prefix, suffix string, events []string) <-chan notification.Info
}

// Listener processes objects created in a MinIO bucket, the self-hosted
// equivalent of an S3 event notification.
type Listener struct {
	source   NotificationSource
	bucket   string
	prefix   string
	proc     Processor
	logger   *zap.Logger
	onResult ResultFunc
}

// NewListener returns a listener on bucket. Only keys under prefix are
// considered.
func NewListener(source NotificationSource, bucket, prefix string, proc Processor, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		source: source,
		bucket: bucket,
		prefix: prefix,
		proc:   proc,
		logger: logger.With(zap.String("bucket", bucket)),
	}
}

// OnResult sets a callback run after each processed object.
func (l *Listener) OnResult(fn ResultFunc) {
	l.onResult = fn
}

// Run listens until ctx is canceled or the notification stream fails.
// MinIO accepts a single suffix per subscription, so extensions are
// filtered here.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("listening for uploads",
		zap.String("prefix", l.prefix),
		zap.Strings("extensions", media.Extensions()),
	)
	ch := l.source.ListenBucketNotification(ctx, l.bucket, l.prefix, "", ObjectCreatedEvents)
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("notification stream for %s closed", l.bucket)
			}
			if info.Err != nil {
				return fmt.Errorf("notification stream for %s: %w", l.bucket, info.Err)
			}
			for _, event := range info.Records {
				l.handle(ctx, event)
			}
		}
	}
}

func (l *Listener) handle(ctx context.Context, event notification.Event) {
	ref := storage.ObjectRef{
		Bucket: event.S3.Bucket.Name,
		Key:    specs.KeyFor(event.S3.Object.Key),
	}
	if ref.Bucket == "" {
		ref.Bucket = l.bucket
	}
	if _, err := media.Detect(ref.Key); err != nil {
		l.logger.Debug("ignoring object", zap.String("key", ref.Key))
		return
	}
	res, err := l.proc.Process(ctx, ref)
	if l.onResult != nil {
		l.onResult(ref, res, err)
	}
}
