package service

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/campusdesk/circular-api/pkg/errors"
	"github.com/campusdesk/circular-api/pkg/storage"
)

const downloadURLPrefix = "/attachments/download?token="

func newTestAttachmentService(t *testing.T, maxSize int64) (*AttachmentService, *storage.LocalStorage, string) {
	t.Helper()
	baseDir := t.TempDir()
	store, err := storage.NewLocalStorage(baseDir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewAttachmentService(store, signer, maxSize, nil, zap.NewNop()), store, baseDir
}

func TestAttachmentUploadStoresPDFAndSignsURL(t *testing.T) {
	svc, _, _ := newTestAttachmentService(t, 0)

	uploaded, err := svc.Upload("notice.pdf", "application/pdf; charset=binary", 8, strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.NotEmpty(t, uploaded.FileID)
	assert.Equal(t, "notice.pdf", uploaded.FileName)
	require.True(t, strings.HasPrefix(uploaded.DownloadURL, downloadURLPrefix))

	token := strings.TrimPrefix(uploaded.DownloadURL, downloadURLPrefix)
	file, fileID, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	assert.Equal(t, uploaded.FileID, fileID)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))
}

func TestAttachmentUploadRejectsNonPDF(t *testing.T) {
	svc, _, _ := newTestAttachmentService(t, 0)

	_, err := svc.Upload("photo.png", "image/png", 8, strings.NewReader("not-pdf"))
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAttachmentUploadRejectsOversizedFile(t *testing.T) {
	svc, _, _ := newTestAttachmentService(t, 16)

	_, err := svc.Upload("big.pdf", "application/pdf", 17, strings.NewReader("%PDF-1.4 padding"))
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAttachmentResignRefreshesExpiredToken(t *testing.T) {
	svc, store, _ := newTestAttachmentService(t, 0)

	stored, err := store.SaveStream("attachments/att-1.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	expiredSigner := storage.NewSignedURLSigner("test-secret", 10*time.Millisecond)
	expired, _, err := expiredSigner.Generate("att-1", stored)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, _, err = svc.Open(expired)
	require.Error(t, err)

	signed, err := svc.Resign(expired)
	require.NoError(t, err)
	assert.Equal(t, "att-1", signed.FileID)
	require.True(t, strings.HasPrefix(signed.DownloadURL, downloadURLPrefix))

	file, fileID, err := svc.Open(strings.TrimPrefix(signed.DownloadURL, downloadURLPrefix))
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	assert.Equal(t, "att-1", fileID)
}

func TestAttachmentResignRejectsTamperedToken(t *testing.T) {
	svc, _, _ := newTestAttachmentService(t, 0)

	foreign := storage.NewSignedURLSigner("other-secret", time.Hour)
	token, _, err := foreign.Generate("att-1", "attachments/att-1.pdf")
	require.NoError(t, err)

	for _, bad := range []string{"garbage", token} {
		_, err := svc.Resign(bad)
		require.Error(t, err)

		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
}

func TestAttachmentCleanupRemovesExpiredUploads(t *testing.T) {
	svc, store, baseDir := newTestAttachmentService(t, 0)

	stale, err := store.SaveStream("attachments/stale.pdf", strings.NewReader("old"))
	require.NoError(t, err)
	past := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(baseDir, stale), past, past))

	removed, err := svc.Cleanup(0)
	require.NoError(t, err)
	assert.Zero(t, removed)
	_, err = os.Stat(filepath.Join(baseDir, stale))
	require.NoError(t, err)

	removed, err = svc.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = os.Stat(filepath.Join(baseDir, stale))
	require.True(t, os.IsNotExist(err))
}
