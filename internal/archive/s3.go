package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"km-backend/internal/config"
	"km-backend/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const maxKeySegment = 64

// ObjectPutter is the part of the S3 client the archive uses
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store keeps raw provider callbacks in an S3-compatible bucket.
// A nil *Store archives nothing.
type Store struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

func New(client ObjectPutter, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// NewFromConfig builds an S3 client for the configured endpoint.
// It returns nil, nil when archiving is disabled.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Store, error) {
	a := cfg.Archive
	if !a.Enabled {
		return nil, nil
	}
	if a.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.AccessKey,
			a.SecretKey,
			"",
		)),
		awsconfig.WithRegion(a.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure archive client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if a.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Printf("[Archive] Callback payloads go to %s/%s", a.Bucket, a.Prefix)
	return New(client, a.Bucket, a.Prefix), nil
}

// Key returns the object key of a callback payload received at t
func (s *Store) Key(provider, checkoutID string, t time.Time) string {
	if provider == "" {
		provider = "unknown"
	}
	provider = keySegment(provider)
	if provider == "" {
		provider = "unknown"
	}
	checkoutID = keySegment(checkoutID)
	if checkoutID == "" {
		checkoutID = "no-checkout"
	}
	u := t.UTC()
	name := fmt.Sprintf("%s_%d.json", checkoutID, u.UnixNano())
	return path.Join(s.prefix, "callbacks", strings.ToLower(provider), u.Format("2006/01/02"), name)
}

// keySegment keeps letters, digits, '-' and '_' of an untrusted name so it
// cannot add path segments to a key
func keySegment(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
		if b.Len() >= maxKeySegment {
			break
		}
	}
	return b.String()
}

// ArchiveCallback uploads one raw callback payload
func (s *Store) ArchiveCallback(ctx context.Context, provider, checkoutID string, payload []byte) error {
	if s == nil || s.client == nil {
		return nil
	}

	key := s.Key(provider, checkoutID, s.now())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		metrics.ArchivedPayloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to archive callback %s: %w", key, err)
	}

	metrics.ArchivedPayloadsTotal.WithLabelValues("ok").Inc()
	return nil
}
