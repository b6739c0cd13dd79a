package awsx

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutAPI is the subset of the S3 client used for uploads.
// Nothing here ever gets or lists remote objects.
type ObjectPutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client creates an S3 client from an (assumed-role) config.
func NewS3Client(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg)
}

// PutObject uploads content under bucket/key and returns the
// remote-reported content identifier (the ETag, possibly quoted).
func PutObject(ctx context.Context, api ObjectPutAPI, bucket, key string, body io.Reader) (string, error) {
	out, err := api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return aws.ToString(out.ETag), nil
}
