package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxImageSize is the maximum accepted event image size (5MB).
	MaxImageSize = 5 * 1024 * 1024
	// FolderEvents is the S3 prefix for event images.
	FolderEvents = "events"
	// FolderArchives is the S3 prefix for attendee archives of purged events.
	FolderArchives = "archives"
	// FolderProfiles is the S3 prefix for profile photos.
	FolderProfiles = "profile_photos"
)

// AllowedImageTypes maps accepted image MIME types to file extensions.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ImagesBucket         string
	ArchiveBucket        string
	PresignExpireMinutes int
}

// S3 provides event image and archive operations.
type S3 struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the default chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("images_bucket", cfg.ImagesBucket))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ImageExtension returns the file extension for an accepted image type.
func ImageExtension(contentType string) (string, bool) {
	ext, ok := AllowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

// EventImageKey returns a fresh object key: events/{event_id}/{random}{ext}.
// Each upload gets a new key so cached URLs of the old image stay valid.
func EventImageKey(eventID uuid.UUID, contentType string) (string, error) {
	ext, ok := ImageExtension(contentType)
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", contentType)
	}
	return path.Join(FolderEvents, eventID.String(), uuid.NewString()+ext), nil
}

// ProfilePhotoKey returns a fresh object key: profile_photos/{user_id}/{random}{ext}.
func ProfilePhotoKey(userID uuid.UUID, contentType string) (string, error) {
	ext, ok := ImageExtension(contentType)
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", contentType)
	}
	return path.Join(FolderProfiles, userID.String(), uuid.NewString()+ext), nil
}

// ArchiveKey returns archives/{event_id}/attendees-{yyyymmdd}.csv.
func ArchiveKey(eventID uuid.UUID, date time.Time) string {
	return path.Join(FolderArchives, eventID.String(), "attendees-"+date.UTC().Format("20060102")+".csv")
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PresignImageUpload returns a pre-signed PUT URL for a direct browser upload.
func (s *S3) PresignImageUpload(ctx context.Context, key, contentType string) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.ImagesBucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.PresignExpire()
	})
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return req.URL, nil
}

// PresignImageDownload returns a pre-signed GET URL for an event image.
func (s *S3) PresignImageDownload(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.ImagesBucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.PresignExpire()
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// DeleteImage removes an event image object.
func (s *S3) DeleteImage(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.ImagesBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// UploadArchive streams a CSV body to the archive bucket.
func (s *S3) UploadArchive(ctx context.Context, key string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.ArchiveBucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	s.logger.Info("attendee archive uploaded", zap.String("bucket", s.cfg.ArchiveBucket), zap.String("key", key))
	return nil
}
