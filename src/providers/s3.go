package providers

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"screen-capture-upload/src/payload"
)

// S3Settings is the saved state of an S3-compatible provider (MinIO, AWS,
// any S3 endpoint). The core treats it as opaque; it is only decoded here.
type S3Settings struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	// PublicBaseURL, when set, is joined with the object key to form the
	// result URL. Otherwise a presigned GET link is generated.
	PublicBaseURL string `yaml:"public_base_url"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// S3Provider uploads capture payloads to an S3-compatible object store.
type S3Provider struct {
	name     string
	client   *minio.Client
	settings S3Settings
}

const presignExpiry = 7 * 24 * time.Hour

// NewS3Provider builds the client and verifies the bucket exists, creating
// it when missing.
func NewS3Provider(name string, settings S3Settings) (*S3Provider, error) {
	if settings.Endpoint == "" || settings.Bucket == "" {
		return nil, fmt.Errorf("s3 provider %q needs endpoint and bucket", name)
	}

	client, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure: settings.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client for %q: %w", name, err)
	}

	p := &S3Provider{name: name, client: client, settings: settings}
	if err := p.ensureBucket(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *S3Provider) Name() string { return p.name }

func (p *S3Provider) ensureBucket() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := p.client.BucketExists(ctx, p.settings.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		log.Printf("providers: creating bucket %s", p.settings.Bucket)
		if err := p.client.MakeBucket(ctx, p.settings.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// Upload stores the payload under a collision-free key and returns either a
// public or a presigned URL for it.
func (p *S3Provider) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	key := p.objectKey(filename)

	_, err := p.client.PutObject(ctx, p.settings.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: payload.ContentType(filename)})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	log.Printf("providers: %s uploaded %s (%d bytes)", p.name, key, len(data))

	if base := strings.TrimSuffix(p.settings.PublicBaseURL, "/"); base != "" {
		return fmt.Sprintf("%s/%s/%s", base, p.settings.Bucket, key), nil
	}

	u, err := p.client.PresignedGetObject(ctx, p.settings.Bucket, key, presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}

func (p *S3Provider) objectKey(filename string) string {
	prefix := strings.Trim(p.settings.KeyPrefix, "/")
	if prefix == "" {
		prefix = "captures"
	}
	return fmt.Sprintf("%s/%s/%s", prefix, uuid.NewString(), filename)
}
