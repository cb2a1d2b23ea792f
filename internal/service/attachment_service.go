package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	apperrors "todocal/internal/errors"
	"todocal/internal/storage"
)

// UploadURLTTL is how long a presigned upload URL stays valid.
const UploadURLTTL = 5 * time.Minute

// UploadURL is a presigned upload target and the public address the object will have.
type UploadURL struct {
	UploadURL string `json:"uploadUrl"`
	ImageURL  string `json:"imageUrl"`
}

// AttachmentService issues upload targets for todo images.
type AttachmentService interface {
	IssueUploadURL(ctx context.Context, filename, contentType string) (*UploadURL, error)
	UploadDirect(ctx context.Context, filename, contentType string, body []byte) (string, error)
}

type attachmentService struct {
	store    storage.ObjectStore
	maxBytes int64
	now      func() time.Time
}

// NewAttachmentService creates an attachment service. maxBytes bounds direct uploads.
func NewAttachmentService(store storage.ObjectStore, maxBytes int64) AttachmentService {
	return &attachmentService{
		store:    store,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// IssueUploadURL presigns a PUT for a new object. No bytes pass through the server.
func (s *attachmentService) IssueUploadURL(ctx context.Context, filename, contentType string) (*UploadURL, error) {
	key, err := s.objectKey(filename, contentType)
	if err != nil {
		return nil, err
	}

	uploadURL, err := s.store.PresignPut(ctx, key, contentType, UploadURLTTL)
	if err != nil {
		return nil, apperrors.Upstream("presign upload", err)
	}
	return &UploadURL{
		UploadURL: uploadURL,
		ImageURL:  s.store.PublicURL(key),
	}, nil
}

// UploadDirect stores body through the server and returns its public URL.
func (s *attachmentService) UploadDirect(ctx context.Context, filename, contentType string, body []byte) (string, error) {
	if len(body) == 0 {
		return "", apperrors.Invalid("no file uploaded")
	}
	if s.maxBytes > 0 && int64(len(body)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", apperrors.ErrTooLarge, len(body), s.maxBytes)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := s.objectKey(filename, contentType)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, key, contentType, body); err != nil {
		return "", apperrors.Upstream("upload object", err)
	}
	return s.store.PublicURL(key), nil
}

// objectKey builds images/<unix-millis>-<basename>.
func (s *attachmentService) objectKey(filename, contentType string) (string, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" || strings.TrimSpace(contentType) == "" {
		return "", apperrors.ErrUploadParamsRequired
	}
	return fmt.Sprintf("images/%d-%s", s.now().UnixMilli(), name), nil
}
