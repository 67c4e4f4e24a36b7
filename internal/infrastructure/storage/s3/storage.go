package s3

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type objectAPI interface {
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *awss3.CreateBucketInput, optFns ...func(*awss3.Options)) (*awss3.CreateBucketOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, in *awss3.PutBucketLifecycleConfigurationInput, optFns ...func(*awss3.Options)) (*awss3.PutBucketLifecycleConfigurationOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	TTLDays         int
}

// Storage writes images under a prefix that the bucket lifecycle expires.
type Storage struct {
	client  objectAPI
	bucket  string
	prefix  string
	ttlDays int
	now     func() time.Time
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	storage := newWithClient(client, cfg)
	if err := storage.EnsureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return storage, nil
}

func newWithClient(client objectAPI, cfg Config) *Storage {
	ttlDays := cfg.TTLDays
	if ttlDays <= 0 {
		ttlDays = 1
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "notes"
	}
	return &Storage{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  prefix,
		ttlDays: ttlDays,
		now:     time.Now,
	}
}

// EnsureBucket creates the bucket when missing and installs the expiry rule
// for the image prefix.
func (s *Storage) EnsureBucket(ctx context.Context, region string) error {
	if _, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		input := &awss3.CreateBucketInput{Bucket: aws.String(s.bucket)}
		if region != "" && region != "us-east-1" {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(region),
			}
		}
		if _, err := s.client.CreateBucket(ctx, input); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
		slog.Info("s3_bucket_created", "bucket", s.bucket)
	}

	_, err := s.client.PutBucketLifecycleConfiguration(ctx, &awss3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(s.bucket),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: []types.LifecycleRule{
				{
					ID:     aws.String("expire-" + s.prefix),
					Status: types.ExpirationStatusEnabled,
					Filter: &types.LifecycleRuleFilter{Prefix: aws.String(s.prefix + "/")},
					Expiration: &types.LifecycleExpiration{
						Days: aws.Int32(int32(s.ttlDays)),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put lifecycle rule: %w", err)
	}
	return nil
}

func (s *Storage) Put(ctx context.Context, key, mimeType string, data []byte) (string, error) {
	objectKey := path.Join(s.prefix, s.now().UTC().Format("2006/01/02"), path.Base(key))
	expires := s.now().Add(time.Duration(s.ttlDays) * 24 * time.Hour)

	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(data))),
		Expires:       aws.Time(expires),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", objectKey, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), nil
}
