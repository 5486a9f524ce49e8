package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// GetObjectAPI is the subset of the S3 client used here.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads objects from S3 or any S3-compatible endpoint.
type S3Store struct {
	client GetObjectAPI
}

// NewS3Store wraps an S3 client.
func NewS3Store(client GetObjectAPI) *S3Store {
	return &S3Store{client: client}
}

// Get reads the whole object.
func (s *S3Store) Get(ctx context.Context, ref ObjectRef) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to get %s: %w", ref, err)
	}
	defer out.Body.Close()

	data, err := readAll(out.Body, ref)
	if err != nil {
		return nil, err
	}
	return &Object{
		Ref:         ref,
		Data:        data,
		ContentType: aws.ToString(out.ContentType),
		ETag:        aws.ToString(out.ETag),
	}, nil
}
