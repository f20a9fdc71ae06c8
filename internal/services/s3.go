package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/savaki/catalog-deployer/internal/errors"
	"github.com/savaki/catalog-deployer/internal/sources"
)

// S3Getter is the subset of the S3 client used to read objects
type S3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Reader reads objects addressed by s3:// or https S3 urls
type S3Reader struct {
	client S3Getter
}

func NewS3Reader(client S3Getter) *S3Reader {
	return &S3Reader{client: client}
}

// ReadURL returns the object's content. Returns errors.ErrNotFound when the
// bucket or key does not exist.
func (r *S3Reader) ReadURL(ctx context.Context, rawURL string) ([]byte, error) {
	loc, err := sources.ParseObjectStorageURL(rawURL)
	if err != nil {
		return nil, err
	}

	bucket, key := loc.Bucket, loc.Key
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("not an object url: %s", rawURL)
	}

	// buckets outside the client's region answer with a redirect the sdk does not follow
	var optFns []func(*s3.Options)
	if loc.Region != "" {
		optFns = append(optFns, func(o *s3.Options) {
			o.Region = loc.Region
		})
	}

	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, optFns...)
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, errors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}

	return data, nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if stderrors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return true
		}
	}

	// Also check for 404-like errors
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "StatusCode: 404")
}
