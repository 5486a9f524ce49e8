// Package trigger feeds uploaded objects to the pipeline: from Lambda S3
// events, MinIO bucket notifications, or a watched local directory.
package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"

	"github.com/Koba-gh/bedrock-json-cdk/internal/pipeline"
	"github.com/Koba-gh/bedrock-json-cdk/internal/specs"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
)

// Processor is the pipeline entry point the triggers drive.
type Processor interface {
	Process(ctx context.Context, ref storage.ObjectRef) (*pipeline.Result, error)
}

// LambdaHandler handles S3 put notifications delivered to Lambda.
type LambdaHandler struct {
	proc   Processor
	logger *zap.Logger
}

// NewLambdaHandler returns a handler for lambda.Start.
func NewLambdaHandler(proc Processor, logger *zap.Logger) *LambdaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LambdaHandler{proc: proc, logger: logger}
}

// Handle processes every record in order. A failing record does not stop the
// rest; the invocation fails with all record errors joined so the platform
// retries or dead-letters it.
func (h *LambdaHandler) Handle(ctx context.Context, event events.S3Event) error {
	logger := h.logger
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With(zap.String("aws_request_id", lc.AwsRequestID))
	}
	if len(event.Records) == 0 {
		logger.Warn("event has no records")
		return nil
	}

	var (
		errs      []error
		retryable int
	)
	for i, record := range event.Records {
		ref := RefFromRecord(record)
		var err error
		if ref.Key == "" {
			err = fmt.Errorf("record %d: %w: missing object key", i, pipeline.ErrUnsupportedMedia)
		} else if _, perr := h.proc.Process(ctx, ref); perr != nil {
			err = fmt.Errorf("record %d (%s): %w", i, ref, perr)
		}
		if err == nil {
			continue
		}
		errs = append(errs, err)
		terminal := pipeline.Terminal(err)
		if !terminal {
			retryable++
		}
		logger.Warn("record failed",
			zap.Int("record", i),
			zap.String("key", ref.Key),
			zap.String("class", string(pipeline.Classify(err))),
			zap.Bool("terminal", terminal),
		)
	}
	if len(errs) > 0 {
		// A redelivery only helps if some failure was upstream.
		logger.Error("invocation failed",
			zap.Int("records", len(event.Records)),
			zap.Int("failed", len(errs)),
			zap.Int("retryable", retryable),
		)
	}
	return errors.Join(errs...)
}

// RefFromRecord returns the bucket and decoded key of an S3 event record.
// Keys arrive URL-encoded, with spaces as '+'.
func RefFromRecord(record events.S3EventRecord) storage.ObjectRef {
	return storage.ObjectRef{
		Bucket: record.S3.Bucket.Name,
		Key:    specs.KeyFor(record.S3.Object.Key),
	}
}
