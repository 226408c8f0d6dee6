package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"analytics-ai/internal/codegen"
	"analytics-ai/internal/dto"
	"analytics-ai/internal/utils"
	"analytics-ai/pkg/object_store"

	"github.com/sirupsen/logrus"
)

const (
	timestampLayout     = "2006-01-02 15:04:05"
	uploadedSourceInfo  = "Your uploaded files"
	publicSourceInfoFmt = "Public bucket: %s"
)

// StorageService browses, previews, uploads and deletes dataset files.
type StorageService struct {
	store         object_store.Store
	defaultBucket string
	log           logrus.FieldLogger
}

// NewStorageService creates a StorageService writing uploads to defaultBucket.
func NewStorageService(store object_store.Store, defaultBucket string, log logrus.FieldLogger) *StorageService {
	return &StorageService{
		store:         store,
		defaultBucket: defaultBucket,
		log:           log,
	}
}

// DefaultBucket returns the writable bucket name.
func (s *StorageService) DefaultBucket() string {
	return s.defaultBucket
}

// ListFiles lists every object in bucket.
func (s *StorageService) ListFiles(ctx context.Context, bucket string) ([]dto.FileInfo, error) {
	objects, err := s.store.List(ctx, bucket)
	if err != nil {
		return nil, mapStoreError(err, bucket, "")
	}

	files := make([]dto.FileInfo, 0, len(objects))
	for _, obj := range objects {
		files = append(files, toFileInfo(obj))
	}
	return files, nil
}

// DefaultBucketFiles lists the default bucket.
func (s *StorageService) DefaultBucketFiles(ctx context.Context) ([]dto.FileInfo, error) {
	return s.ListFiles(ctx, s.defaultBucket)
}

// CombinedFiles merges the default bucket with publicBucket. Files from the
// public bucket whose names already appear are skipped. A bucket that fails to
// list contributes nothing.
func (s *StorageService) CombinedFiles(ctx context.Context, publicBucket string) []dto.FileInfo {
	combined := []dto.FileInfo{}
	if publicBucket == "" {
		return combined
	}

	seen := make(map[string]bool)

	uploaded, err := s.ListFiles(ctx, s.defaultBucket)
	if err != nil {
		s.log.WithError(err).WithField("bucket", s.defaultBucket).Warn("listing default bucket failed")
	}
	for _, f := range uploaded {
		f.Source = codegen.SourceUploaded
		f.Bucket = s.defaultBucket
		f.SourceInfo = uploadedSourceInfo
		seen[f.Name] = true
		combined = append(combined, f)
	}

	if publicBucket == s.defaultBucket {
		return combined
	}

	public, err := s.ListFiles(ctx, publicBucket)
	if err != nil {
		s.log.WithError(err).WithField("bucket", publicBucket).Warn("listing public bucket failed")
	}
	for _, f := range public {
		if seen[f.Name] {
			continue
		}
		f.Source = codegen.SourcePublic
		f.Bucket = publicBucket
		f.SourceInfo = fmt.Sprintf(publicSourceInfoFmt, publicBucket)
		combined = append(combined, f)
	}

	return combined
}

// PreviewFile returns the first rows of bucket/name.
func (s *StorageService) PreviewFile(ctx context.Context, bucket, name string, rows int) (*utils.PreviewResult, error) {
	if _, err := s.store.Stat(ctx, bucket, name); err != nil {
		return nil, mapStoreError(err, bucket, name)
	}

	content, err := object_store.ReadAll(ctx, s.store, bucket, name)
	if err != nil {
		return nil, mapStoreError(err, bucket, name)
	}

	preview, err := utils.BuildPreview(name, content, rows)
	if err != nil {
		return nil, fmt.Errorf("preview %s/%s: %w", bucket, name, err)
	}
	return preview, nil
}

// Upload stores content in the default bucket under filename.
func (s *StorageService) Upload(ctx context.Context, filename, contentType string, content []byte) (*dto.UploadResponse, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("upload %q: %w", filename, ErrEmptyFile)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.store.Put(ctx, s.defaultBucket, filename, contentType, content); err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", s.defaultBucket, filename, err)
	}

	s.log.WithFields(logrus.Fields{
		"bucket":   s.defaultBucket,
		"filename": filename,
		"size":     len(content),
	}).Info("file uploaded")

	return &dto.UploadResponse{
		Message:     fmt.Sprintf("File '%s' uploaded successfully", filename),
		Filename:    filename,
		Size:        int64(len(content)),
		ContentType: contentType,
	}, nil
}

// Delete removes bucket/name. Only the default bucket is writable.
func (s *StorageService) Delete(ctx context.Context, bucket, name string) error {
	if bucket != s.defaultBucket {
		return fmt.Errorf("delete from %q: %w", bucket, ErrReadOnlyBucket)
	}

	if err := s.store.Delete(ctx, bucket, name); err != nil {
		return mapStoreError(err, bucket, name)
	}

	s.log.WithFields(logrus.Fields{"bucket": bucket, "filename": name}).Info("file deleted")
	return nil
}

func mapStoreError(err error, bucket, name string) error {
	switch {
	case errors.Is(err, object_store.ErrBucketNotFound):
		return fmt.Errorf("bucket %q: %w", bucket, ErrBucketNotFound)
	case errors.Is(err, object_store.ErrObjectNotFound):
		return fmt.Errorf("%s/%s: %w", bucket, name, ErrFileNotFound)
	default:
		return err
	}
}

func toFileInfo(obj object_store.ObjectInfo) dto.FileInfo {
	info := dto.FileInfo{
		Name:    obj.Name,
		Size:    obj.Size,
		Updated: formatTime(obj.Updated),
		Created: formatTime(obj.Created),
	}
	if obj.ContentType != "" {
		ct := obj.ContentType
		info.ContentType = &ct
	}
	return info
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(timestampLayout)
	return &s
}
