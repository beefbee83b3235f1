package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrStorageUnavailable = errors.New("image storage not configured")

// S3Uploader is the slice of the S3 client the image service needs.
type S3Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ImageService stores dish and recipe photos in S3 and hands back public
// object URLs.
type ImageService struct {
	client S3Uploader
	bucket string
}

func NewImageService(client S3Uploader, bucket string) *ImageService {
	return &ImageService{client: client, bucket: bucket}
}

func (s *ImageService) Available() bool {
	return s.client != nil && s.bucket != ""
}

// Upload stores the image under a per-user key and returns its public URL.
func (s *ImageService) Upload(ctx context.Context, userID uuid.UUID, filename, contentType string, data []byte) (string, error) {
	if !s.Available() {
		return "", ErrStorageUnavailable
	}

	ext := filepath.Ext(filename)
	key := fmt.Sprintf("uploads/%s/%d%s", userID, time.Now().UnixNano(), ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading image: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key), nil
}
