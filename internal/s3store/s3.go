// Package s3store is the S3-compatible object store backend.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/Lllllllleong/datasegmentationflow/internal/config"
	"github.com/Lllllllleong/datasegmentationflow/internal/models"
	"github.com/Lllllllleong/datasegmentationflow/internal/services"
)

// s3API is the subset of *s3.Client the store uses.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ s3API = (*s3.Client)(nil)

// Store reads and writes objects in S3 or an S3-compatible service.
type Store struct {
	client s3API
}

var _ services.ObjectStore = (*Store)(nil)

// New creates a store with static credentials. A custom endpoint switches to
// path-style addressing, which most S3-compatible services require.
func New(cfg config.S3Config) *Store {
	opts := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.KeyID, cfg.Secret, "",
		),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return &Store{client: s3.New(opts)}
}

// Head reports whether the object exists.
func (s *Store) Head(ctx context.Context, ref models.ObjectRef) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head s3://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	return true, nil
}

// Read returns the first limit bytes of the object, or all of it when
// limit <= 0.
func (s *Store) Read(ctx context.Context, ref models.ObjectRef, limit int64) ([]byte, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}
	if limit > 0 {
		in.Range = aws.String(fmt.Sprintf("bytes=0-%d", limit-1))
	}
	out, err := s.client.GetObject(ctx, in)
	if err != nil {
		switch {
		case isNotFound(err):
			return nil, services.ErrObjectNotFound
		case apiErrorCode(err) == "InvalidRange":
			// Ranged read of an empty object.
			return nil, nil
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	return data, nil
}

// Write creates the object only if no object exists under the key.
func (s *Store) Write(ctx context.Context, ref models.ObjectRef, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ref.Bucket),
		Key:         aws.String(ref.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		switch apiErrorCode(err) {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return services.ErrObjectExists
		}
		return fmt.Errorf("put s3://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	code := apiErrorCode(err)
	return code == "NotFound" || code == "NoSuchKey"
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
