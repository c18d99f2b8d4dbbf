package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/campusdesk/circular-api/pkg/errors"
	"github.com/campusdesk/circular-api/pkg/storage"
)

const attachmentDir = "attachments"

// AttachmentService stores circular attachments on disk and issues
// time-limited signed download tokens for them.
type AttachmentService struct {
	store        *storage.LocalStorage
	signer       *storage.SignedURLSigner
	maxSizeBytes int64
	allowedMIMEs map[string]struct{}
	logger       *zap.Logger
}

// NewAttachmentService constructs the service. allowedMIMEs defaults to PDF
// only when empty.
func NewAttachmentService(store *storage.LocalStorage, signer *storage.SignedURLSigner, maxSizeBytes int64, allowedMIMEs []string, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSizeBytes <= 0 {
		maxSizeBytes = 5 << 20
	}
	if len(allowedMIMEs) == 0 {
		allowedMIMEs = []string{"application/pdf"}
	}
	allowed := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &AttachmentService{
		store:        store,
		signer:       signer,
		maxSizeBytes: maxSizeBytes,
		allowedMIMEs: allowed,
		logger:       logger,
	}
}

// UploadedAttachment describes a stored attachment. DownloadURL carries the
// signed token path a client can fetch without further credentials.
type UploadedAttachment struct {
	FileID      string    `json:"file_id"`
	FileName    string    `json:"file_name"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Upload validates and persists an attachment, returning its locator.
func (s *AttachmentService) Upload(filename, contentType string, size int64, r io.Reader) (*UploadedAttachment, error) {
	if size > s.maxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("attachment exceeds the %d byte limit", s.maxSizeBytes))
	}
	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if _, ok := s.allowedMIMEs[mime]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unsupported attachment type %q", contentType))
	}

	fileID := uuid.NewString()
	relPath := path.Join(attachmentDir, fileID+strings.ToLower(filepath.Ext(filename)))

	// io.LimitReader guards against clients lying in Content-Length.
	stored, err := s.store.SaveStream(relPath, io.LimitReader(r, s.maxSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}

	token, expiresAt, err := s.SignDownload(fileID, stored)
	if err != nil {
		// Unsignable files are unreachable; do not leave them on disk.
		_ = s.store.Delete(stored)
		return nil, err
	}

	s.logger.Info("attachment stored",
		zap.String("file_id", fileID),
		zap.String("path", stored),
		zap.Int64("size", size))

	return &UploadedAttachment{
		FileID:      fileID,
		FileName:    filepath.Base(filename),
		Size:        size,
		DownloadURL: "/attachments/download?token=" + token,
		ExpiresAt:   expiresAt,
	}, nil
}

// SignDownload issues a fresh signed token for an already stored file path.
func (s *AttachmentService) SignDownload(fileID, relPath string) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(fileID, relPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attachment url")
	}
	return token, expiresAt, nil
}

// SignedDownload is returned when a stored attachment is re-signed.
type SignedDownload struct {
	FileID      string    `json:"file_id"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Resign exchanges a previously issued download token, expired or not, for a
// fresh one. The signature must still verify; only the expiry is renewed.
func (s *AttachmentService) Resign(token string) (*SignedDownload, error) {
	fileID, relPath, _, err := s.signer.Parse(token, true)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unrecognized attachment token")
	}
	fresh, expiresAt, err := s.SignDownload(fileID, relPath)
	if err != nil {
		return nil, err
	}
	return &SignedDownload{
		FileID:      fileID,
		DownloadURL: "/attachments/download?token=" + fresh,
		ExpiresAt:   expiresAt,
	}, nil
}

// Cleanup removes stored attachments older than ttl and reports how many were
// deleted. A non-positive ttl disables the sweep.
func (s *AttachmentService) Cleanup(ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clean up attachments")
	}
	if len(deleted) > 0 {
		s.logger.Info("expired attachments removed", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

// Open validates a signed token and returns the underlying file handle.
func (s *AttachmentService) Open(token string) (*os.File, string, error) {
	fileID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment")
	}
	return file, fileID, nil
}
