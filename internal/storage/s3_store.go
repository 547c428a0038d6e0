// Package storage provides an S3-backed implementation of the core.ObjectStore
// and core.Presigner interfaces. Any S3-compatible endpoint (MinIO, R2) works
// through Options.BaseEndpoint.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ErrEmptyObject is returned when a downloaded object has no body.
var ErrEmptyObject = errors.New("empty file body")

const (
	errCodeNotFound  = "NotFound"
	errCodeNoSuchKey = "NoSuchKey"
)

type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type presignAPI interface {
	PresignPutObject(
		ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions),
	) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(
		ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions),
	) (*v4.PresignedHTTPRequest, error)
}

// Options configures the S3 client built by New.
type Options struct {
	BaseEndpoint string
	UsePathStyle bool
}

// S3Store implements core.ObjectStore and core.Presigner on top of S3.
type S3Store struct {
	objects   objectAPI
	presigner presignAPI
}

// New creates an S3Store from a loaded AWS configuration.
func New(awsConfig aws.Config, opts Options) *S3Store {
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}

		o.UsePathStyle = opts.UsePathStyle
	})

	return NewWithClient(client)
}

// NewWithClient creates an S3Store around an existing client.
func NewWithClient(client *s3.Client) *S3Store {
	return &S3Store{
		objects:   client,
		presigner: s3.NewPresignClient(client),
	}
}

// Download reads an object fully into memory.
func (s *S3Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	output, err := s.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, bucket, err)
	}

	if output.Body == nil {
		return nil, fmt.Errorf("%w: '%s'", ErrEmptyObject, key)
	}

	data, readErr := io.ReadAll(output.Body)
	closeErr := output.Body.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return nil, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: '%s'", ErrEmptyObject, key)
	}

	return data, nil
}

// Upload writes data under key with the given content type.
func (s *S3Store) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, bucket, err)
	}

	return nil
}

// Exists reads object metadata. A missing object is reported as (false, nil);
// any other failure is returned as an error.
func (s *S3Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	if isNotFound(err) {
		return false, nil
	}

	return false, fmt.Errorf("failed to head object '%s' in bucket '%s': %w", key, bucket, err)
}

// PresignPut returns a URL that permits a PUT of key with contentType until it expires.
func (s *S3Store) PresignPut(
	ctx context.Context, bucket, key, contentType string, expires time.Duration,
) (string, error) {
	request, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign put for '%s': %w", key, err)
	}

	return request.URL, nil
}

// PresignGet returns a URL that permits a GET of key until it expires.
func (s *S3Store) PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign get for '%s': %w", key, err)
	}

	return request.URL, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()

		return code == errCodeNotFound || code == errCodeNoSuchKey
	}

	return false
}
