// Package attachments stores order files in an S3-compatible bucket through MinIO.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned when no object storage is set up.
var ErrNotConfigured = errors.New("attachment storage not configured")

// Storage is where attachment bytes live.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type MinIOStorage struct {
	client     *minio.Client
	bucketName string
	log        logrus.FieldLogger
}

// NewMinIOStorage connects to endpoint and creates the bucket when it is missing.
func NewMinIOStorage(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, log logrus.FieldLogger) (*MinIOStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		log.WithField("bucket", bucketName).Info("bucket created")
	}

	return &MinIOStorage{client: client, bucketName: bucketName, log: log}, nil
}

func (m *MinIOStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucketName, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	m.log.WithFields(logrus.Fields{"key": key, "size": size}).Info("attachment uploaded")
	return nil
}

// URL returns a presigned download link valid for one hour.
func (m *MinIOStorage) URL(ctx context.Context, key string) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucketName, key, time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (m *MinIOStorage) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ObjectKey builds a unique key under the order's prefix, keeping the file extension.
func ObjectKey(orderID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("orders/%s/%s%s", orderID, uuid.NewString(), ext)
}

// ContentType prefers the declared type and falls back to the file extension.
func ContentType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
