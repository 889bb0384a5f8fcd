// Package avatar turns stored avatar object keys into time-limited URLs.
package avatar

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"huddle/api/internal/content"
)

// Config names the bucket that holds avatar objects.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	URLTTL    time.Duration
}

// Presigner signs GET URLs for avatar objects.
type Presigner interface {
	AvatarURL(ctx context.Context, key string) (string, error)
}

// Minio presigns URLs against a MinIO or S3 bucket. Signing is local; no
// request reaches the server.
type Minio struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewMinio(cfg Config) (*Minio, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("avatar storage requires endpoint and bucket")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Minio{client: client, bucket: cfg.Bucket, ttl: ttl}, nil
}

func (m *Minio) AvatarURL(ctx context.Context, key string) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign avatar %s: %w", key, err)
	}
	return u.String(), nil
}

// Directory replaces avatar object keys in user records with signed URLs.
// Values that are already absolute URLs pass through. A key that cannot be
// signed, or any key when presigner is nil, is dropped so the chip shows an
// initial badge instead.
type Directory struct {
	next      content.Directory
	presigner Presigner
	logger    zerolog.Logger
}

func NewDirectory(next content.Directory, presigner Presigner, logger zerolog.Logger) *Directory {
	return &Directory{next: next, presigner: presigner, logger: logger}
}

func (d *Directory) TasksByIDs(ctx context.Context, ids []string) ([]content.TaskRecord, error) {
	return d.next.TasksByIDs(ctx, ids)
}

func (d *Directory) TasksByPrefix(ctx context.Context, prefixes []string) ([]content.TaskRecord, error) {
	if pd, ok := d.next.(content.PrefixDirectory); ok {
		return pd.TasksByPrefix(ctx, prefixes)
	}
	return nil, nil
}

func (d *Directory) UsersByIDs(ctx context.Context, ids []string) ([]content.UserRecord, error) {
	users, err := d.next.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		key := users[i].AvatarURL
		if key == "" || isAbsoluteURL(key) {
			continue
		}
		if d.presigner == nil {
			users[i].AvatarURL = ""
			continue
		}
		signed, err := d.presigner.AvatarURL(ctx, key)
		if err != nil {
			d.logger.Warn().Err(err).Str("user_id", users[i].ID).Msg("avatar: presign failed")
			users[i].AvatarURL = ""
			continue
		}
		users[i].AvatarURL = signed
	}
	return users, nil
}

func isAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}
