package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/khaledhikmat/wildwatch-go/service/config"
)

// objectURLExpiry bounds the presigned URLs handed to notification channels.
const objectURLExpiry = 24 * time.Hour

type minioService struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to a MinIO (or any S3 compatible) endpoint and makes
// sure the bucket exists.
func NewMinio(ctx context.Context, params config.StorageParameters) (IService, error) {
	if params.Endpoint == "" || params.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}

	client, err := minio.New(params.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(params.AccessKey, params.SecretKey, ""),
		Secure: params.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, params.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", params.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, params.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", params.Bucket, err)
		}
	}

	return &minioService{
		client: client,
		bucket: params.Bucket,
	}, nil
}

func (svc *minioService) StoreFile(ctx context.Context, fileName string) (string, error) {
	key := path.Join("clips", filepath.Base(fileName))
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	f, err := os.Open(fileName)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	_, err = svc.client.PutObject(ctx, svc.bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", fileName, err)
	}
	return svc.objectURL(ctx, key)
}

func (svc *minioService) StoreBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := svc.client.PutObject(ctx, svc.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
		})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return svc.objectURL(ctx, key)
}

func (svc *minioService) objectURL(ctx context.Context, key string) (string, error) {
	u, err := svc.client.PresignedGetObject(ctx, svc.bucket, key, objectURLExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}
