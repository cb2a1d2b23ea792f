// Package storage issues upload URLs for, and writes objects to, S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectStore is the subset of object storage the attachment flow needs.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	Put(ctx context.Context, key, contentType string, body []byte) error
	PublicURL(key string) string
}

// Config configures an S3Store.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3Store talks to an S3-compatible endpoint with static credentials and path-style addressing.
// Uploaded objects are public-read so the returned URL can be embedded directly.
type S3Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	endpoint string
	bucket   string
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store builds the client. No request is made until an operation is called.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		// S3-compatible providers reject the SDK's default checksum trailers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		endpoint: endpoint,
		bucket:   cfg.Bucket,
	}, nil
}

// PresignPut returns a URL the browser can PUT the object to until it expires.
// The upload must send the same Content-Type and the x-amz-acl: public-read header.
func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, nil
}

// Put uploads body under key.
func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the public address of key.
func (s *S3Store) PublicURL(key string) string {
	return s.endpoint + "/" + s.bucket + "/" + key
}
