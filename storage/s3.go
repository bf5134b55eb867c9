package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"compound-harmonizer/config"
)

// ObjectPutter ist der Teil des S3-Clients, den der Upload benötigt.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Endpunkt.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3URL != "" {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		}
	}), nil
}

// Uploader lädt Artefakte unter einem Präfix in einen Bucket.
type Uploader struct {
	client  ObjectPutter
	bucket  string
	baseURL string
	logger  *zap.Logger
}

func NewUploader(client ObjectPutter, bucket, baseURL string, logger *zap.Logger) *Uploader {
	return &Uploader{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// UploadFile lädt eine Datei ins S3 hoch und gibt den Link zurück.
func (u *Uploader) UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", u.baseURL, u.bucket, key), nil
}

// UploadArtifacts lädt die gegebenen Dateien unter prefix hoch und liefert die Links in derselben Reihenfolge.
func (u *Uploader) UploadArtifacts(ctx context.Context, prefix string, files []string) ([]string, error) {
	links := make([]string, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return links, err
		}
		key := path.Join(prefix, filepath.Base(file))
		link, err := u.UploadFile(ctx, key, data, contentTypeFor(file))
		if err != nil {
			return links, err
		}
		u.logger.Info("Artefakt hochgeladen", zap.String("key", key), zap.String("link", link))
		links = append(links, link)
	}
	return links, nil
}

func contentTypeFor(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
