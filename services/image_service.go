package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/kendall-kelly/servicepro-api/utils"
)

// jobImagePrefix is the key prefix for job intake photos
const jobImagePrefix = "jobs"

// ImageService validates, stores and links job photos
type ImageService interface {
	// UploadImage validates and uploads an image, returning its storage key
	UploadImage(ctx context.Context, fileHeader *multipart.FileHeader) (string, error)
	// GetImageURL returns a link for an uploaded image
	GetImageURL(ctx context.Context, imageKey string) (string, error)
	DeleteImage(ctx context.Context, imageKey string) error
}

// S3ImageService implements ImageService on top of S3Interface
type S3ImageService struct {
	store S3Interface
}

// NewS3ImageService wraps an object store
func NewS3ImageService(store S3Interface) *S3ImageService {
	return &S3ImageService{store: store}
}

// UploadImage returns a *utils.FileUploadError when the file is rejected
func (s *S3ImageService) UploadImage(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	key, err := s.store.UploadFile(ctx, fileHeader, jobImagePrefix)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return key, nil
}

func (s *S3ImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	url, err := s.store.GetPresignedURL(ctx, imageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}
	return url, nil
}

func (s *S3ImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}
	if err := s.store.DeleteFile(ctx, imageKey); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
