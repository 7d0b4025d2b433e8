// Copyright 2026 The Coursely Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxURLTTL is the longest expiry SigV4 presigning accepts.
const MaxURLTTL = 7 * 24 * time.Hour

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Signer presigns GetObject requests.
type S3Signer struct {
	bucket    string
	presigner *s3.PresignClient
}

// NewS3Signer builds a signer. Static credentials are used when both keys are
// set; otherwise the default AWS credential chain applies.
func NewS3Signer(ctx context.Context, cfg S3Config) (*S3Signer, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("media: bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Signer{
		bucket:    cfg.Bucket,
		presigner: s3.NewPresignClient(client),
	}, nil
}

// Presign returns a GET URL for objectKey valid for ttl.
func (s *S3Signer) Presign(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	if ttl <= 0 || ttl > MaxURLTTL {
		return "", fmt.Errorf("media: url ttl %s out of range", ttl)
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %q: %w", objectKey, err)
	}
	return req.URL, nil
}

// ErrSigningDisabled is returned by the signer used when no bucket is configured.
var ErrSigningDisabled = errors.New("media: signing is not configured")

// DisabledSigner refuses every request. It keeps the scoped read and its
// audit trail in place on deployments without a bucket.
type DisabledSigner struct{}

func (DisabledSigner) Presign(context.Context, string, time.Duration) (string, error) {
	return "", ErrSigningDisabled
}
