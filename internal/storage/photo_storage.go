package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PhotoStorage holds the device photos attached to repair tickets. Keys are
// store-scoped so one store can never enumerate another's objects.
type PhotoStorage interface {
	UploadPhoto(ctx context.Context, storeID, repairID uuid.UUID, reader io.Reader, size int64, contentType string) (string, error)
	GetPhotoURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	DeletePhoto(ctx context.Context, key string) error
	EnsureBucket(ctx context.Context) error
	Ping(ctx context.Context) error
}

type minioPhotoStorage struct {
	client *minio.Client
	bucket string
}

func NewMinioPhotoStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool) (PhotoStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &minioPhotoStorage{client: client, bucket: bucket}, nil
}

func photoKey(storeID, repairID uuid.UUID) string {
	return fmt.Sprintf("%s/repairs/%s/%s", storeID.String(), repairID.String(), uuid.NewString())
}

func (s *minioPhotoStorage) UploadPhoto(ctx context.Context, storeID, repairID uuid.UUID, reader io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := photoKey(storeID, repairID)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *minioPhotoStorage) GetPhotoURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", err
	}
	return url.String(), nil
}

func (s *minioPhotoStorage) DeletePhoto(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *minioPhotoStorage) EnsureBucket(ctx context.Context) error {
	found, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !found {
		return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *minioPhotoStorage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
