// Package s3store keeps artifacts as objects in an S3 bucket.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/KaramelBytes/dataprof/internal/storage"
)

const (
	DefaultRegion = "us-west-2"
	DefaultBucket = "my-app-bucket"
)

func init() {
	storage.Register("s3", New)
}

// s3API is the subset of *s3.Client used by Store.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketCors(ctx context.Context, in *s3.PutBucketCorsInput, optFns ...func(*s3.Options)) (*s3.PutBucketCorsOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store implements storage.Store on S3.
type Store struct {
	api     s3API
	bucket  string
	region  string
	origins []string
}

// New builds an S3 client. Static credentials are used when both keys are
// configured; otherwise the default AWS credential chain applies. A custom
// Endpoint (MinIO, localstack) switches to path-style addressing.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	sc := cfg.S3
	if sc.Region == "" {
		sc.Region = DefaultRegion
	}
	if sc.Bucket == "" {
		sc.Bucket = DefaultBucket
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(sc.Region)}
	if sc.AccessKey != "" && sc.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKey, sc.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newWithAPI(client, sc), nil
}

func newWithAPI(api s3API, sc storage.S3Config) *Store {
	origins := sc.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Store{api: api, bucket: sc.Bucket, region: sc.Region, origins: origins}
}

// Init creates the bucket when it does not exist yet and applies the CORS
// rule that lets browsers fetch artifacts directly.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var nf *types.NotFound
		var nsb *types.NoSuchBucket
		if !errors.As(err, &nf) && !errors.As(err, &nsb) {
			return fmt.Errorf("s3store: head bucket %s: %w", s.bucket, err)
		}
		in := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
		// us-east-1 rejects an explicit location constraint.
		if s.region != "us-east-1" {
			in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(s.region),
			}
		}
		if _, err := s.api.CreateBucket(ctx, in); err != nil {
			return fmt.Errorf("s3store: create bucket %s: %w", s.bucket, err)
		}
	}

	_, err = s.api.PutBucketCors(ctx, &s3.PutBucketCorsInput{
		Bucket: aws.String(s.bucket),
		CORSConfiguration: &types.CORSConfiguration{
			CORSRules: []types.CORSRule{{
				AllowedHeaders: []string{"*"},
				AllowedMethods: []string{"GET", "PUT", "POST", "HEAD"},
				AllowedOrigins: s.origins,
				ExposeHeaders:  []string{"ETag"},
				MaxAgeSeconds:  aws.Int32(3000),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("s3store: put bucket cors %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if contentType == "" {
		contentType = storage.ContentTypeFor(key)
	}
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3store put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*storage.Object, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3store get %s: %w", key, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("s3store get %s: %w", key, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store read %s: %w", key, err)
	}
	ct := aws.ToString(out.ContentType)
	if ct == "" {
		ct = storage.ContentTypeFor(key)
	}
	return &storage.Object{Data: b, ContentType: ct}, nil
}

func (s *Store) Close() error { return nil }
