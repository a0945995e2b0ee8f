package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
)

var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrFileTypeRejected = errors.New("file type not allowed")
)

// FileStorage stores uploaded files and hands back their public URL.
type FileStorage interface {
	UploadFile(ctx context.Context, file *multipart.FileHeader, folder string, ownerID uint) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
}

type StorageService struct {
	s3Client    s3iface.S3API
	bucket      string
	region      string
	allowed     []string
	maxFileSize int64
}

// Options configures NewStorageService. Empty keys use the default AWS credential chain.
type Options struct {
	Region            string
	AccessKeyID       string
	SecretAccessKey   string
	Bucket            string
	AllowedExtensions []string
	MaxFileSize       int64
}

func NewStorageService(opts Options) (*StorageService, error) {
	cfg := &aws.Config{Region: aws.String(opts.Region)}
	if opts.AccessKeyID != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKeyID, opts.SecretAccessKey, "")
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}
	return NewStorageServiceWithClient(s3.New(sess), opts), nil
}

// NewStorageServiceWithClient uses an existing S3 client.
func NewStorageServiceWithClient(client s3iface.S3API, opts Options) *StorageService {
	return &StorageService{
		s3Client:    client,
		bucket:      opts.Bucket,
		region:      opts.Region,
		allowed:     opts.AllowedExtensions,
		maxFileSize: opts.MaxFileSize,
	}
}

// UploadFile puts file under folder/<owner>/<yyyy>/<mm>/<random>.<ext> with public-read ACL.
func (s *StorageService) UploadFile(ctx context.Context, file *multipart.FileHeader, folder string, ownerID uint) (string, error) {
	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		return "", ErrFileTooLarge
	}
	ext := getFileExtension(file.Filename)
	if !s.isAllowed(ext) {
		return "", ErrFileTypeRejected
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %v", err)
	}
	defer src.Close()

	fileBytes, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %v", err)
	}

	now := time.Now()
	key := fmt.Sprintf("%s/%d/%d/%02d/%s.%s",
		strings.Trim(folder, "/"),
		ownerID,
		now.Year(),
		now.Month(),
		uuid.New().String()[:16],
		ext,
	)

	_, err = s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(fileBytes),
		ContentType: aws.String(getContentType(ext)),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %v", err)
	}
	return s.PublicURL(key), nil
}

// PublicURL is the virtual-hosted S3 URL of key.
func (s *StorageService) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// DeleteFile removes the object behind a URL returned by UploadFile.
func (s *StorageService) DeleteFile(ctx context.Context, fileURL string) error {
	key := extractKeyFromURL(fileURL)
	if key == "" {
		return fmt.Errorf("invalid file URL")
	}
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *StorageService) isAllowed(ext string) bool {
	if ext == "" {
		return false
	}
	if len(s.allowed) == 0 {
		return true
	}
	for _, a := range s.allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return true
		}
	}
	return false
}

func getFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 1 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

func getContentType(extension string) string {
	switch strings.ToLower(extension) {
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// extractKeyFromURL maps https://bucket.s3.region.amazonaws.com/key to key.
func extractKeyFromURL(url string) string {
	parts := strings.SplitN(url, ".amazonaws.com/", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
