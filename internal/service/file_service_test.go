package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edudrive/internal/config"
	"edudrive/internal/domain"
)

func upload(name string, data []byte, folderID *int64) domain.FileUpload {
	return domain.FileUpload{
		Name:     name,
		MIMEType: "application/octet-stream",
		Size:     int64(len(data)),
		FolderID: folderID,
		Data:     data,
	}
}

func TestUploadStoresBlobAndChargesQuota(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	data := bytes.Repeat([]byte("a"), 100)
	result, err := env.fileSvc.Upload(ctx, "user-1", upload("notes.txt", data, nil))
	require.NoError(t, err)

	assert.False(t, result.Deduplicated)
	assert.Equal(t, int64(100), result.File.SizeBytes)
	assert.NotEmpty(t, result.File.ContentHash)
	assert.True(t, env.storage.has(result.File.StoredName))

	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.StorageUsed)

	assert.Contains(t, env.activities.actions("user-1"), domain.ActionUpload)
}

func TestUploadQuotaExceeded(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	// Drive limit is 1000 bytes in the fakes.
	data := bytes.Repeat([]byte("a"), 1001)
	_, err := env.fileSvc.Upload(ctx, "user-1", upload("big.bin", data, nil))
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)

	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.StorageUsed)
	assert.Empty(t, env.storage.objects)
}

func TestUploadEmptyRejected(t *testing.T) {
	env := newTestEnvSkip()
	_, err := env.fileSvc.Upload(context.Background(), "user-1", upload("empty.txt", nil, nil))
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestUploadDedupSkip(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	data := []byte("identical payload")
	first, err := env.fileSvc.Upload(ctx, "user-1", upload("a.txt", data, nil))
	require.NoError(t, err)
	require.False(t, first.Deduplicated)

	second, err := env.fileSvc.Upload(ctx, "user-1", upload("b.txt", data, nil))
	require.NoError(t, err)

	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.File.UUID, second.File.UUID)

	// Only one blob and one quota charge.
	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.StorageUsed)
	assert.Len(t, env.storage.objects, 1)

	// Both uploads appear in the activity log, the second marked deduplicated.
	entries := env.activities.byOwner("user-1")
	uploads := 0
	for _, a := range entries {
		if a.Action == domain.ActionUpload {
			uploads++
		}
	}
	assert.Equal(t, 2, uploads)
	assert.Contains(t, string(entries[len(entries)-1].Metadata), `"deduplicated":true`)
}

func TestUploadDedupSkipIsPerOwner(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	data := []byte("shared payload")
	_, err := env.fileSvc.Upload(ctx, "user-1", upload("a.txt", data, nil))
	require.NoError(t, err)

	other, err := env.fileSvc.Upload(ctx, "user-2", upload("a.txt", data, nil))
	require.NoError(t, err)
	assert.False(t, other.Deduplicated)
}

func TestUploadDedupStore(t *testing.T) {
	env := newTestEnv(config.DedupStore)
	ctx := context.Background()

	data := []byte("identical payload")
	first, err := env.fileSvc.Upload(ctx, "user-1", upload("a.txt", data, nil))
	require.NoError(t, err)
	second, err := env.fileSvc.Upload(ctx, "user-1", upload("b.txt", data, nil))
	require.NoError(t, err)

	assert.False(t, second.Deduplicated)
	assert.NotEqual(t, first.File.UUID, second.File.UUID)

	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2*len(data)), info.StorageUsed)
	assert.Len(t, env.storage.objects, 2)
}

func TestUploadCompensatesOnInsertFailure(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()
	env.files.createErr = errors.New("insert failed")

	_, err := env.fileSvc.Upload(ctx, "user-1", upload("a.txt", []byte("payload"), nil))
	require.Error(t, err)

	// Blob removed and quota returned.
	assert.Empty(t, env.storage.objects)
	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.StorageUsed)
}

func TestDownloadChargesBandwidth(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	data := bytes.Repeat([]byte("x"), 200)
	result, err := env.fileSvc.Upload(ctx, "user-1", upload("a.bin", data, nil))
	require.NoError(t, err)

	file, obj, err := env.fileSvc.Download(ctx, "user-1", result.File.UUID, 0, -1, false)
	require.NoError(t, err)
	defer obj.Close()

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, result.File.UUID, file.UUID)

	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), info.BandwidthUsed)
	assert.Contains(t, env.activities.actions("user-1"), domain.ActionDownload)
}

func TestDownloadRangeChargesPartial(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	data := bytes.Repeat([]byte("x"), 200)
	result, err := env.fileSvc.Upload(ctx, "user-1", upload("a.bin", data, nil))
	require.NoError(t, err)

	_, obj, err := env.fileSvc.Download(ctx, "user-1", result.File.UUID, 0, 49, true)
	require.NoError(t, err)
	defer obj.Close()

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Len(t, got, 50)

	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), info.BandwidthUsed)
}

func TestDownloadOpenEndedRangeServesSuffix(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	result, err := env.fileSvc.Upload(ctx, "user-1", upload("a.bin", data, nil))
	require.NoError(t, err)

	// "bytes=500-" resolves to the 500-byte suffix.
	_, obj, err := env.fileSvc.Download(ctx, "user-1", result.File.UUID, 500, -1, true)
	require.NoError(t, err)
	defer obj.Close()

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	require.Len(t, got, 500)
	assert.Equal(t, data[500:], got)

	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), info.BandwidthUsed)
}

func TestDownloadRangeStartPastEOF(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	result, err := env.fileSvc.Upload(ctx, "user-1", upload("a.bin", bytes.Repeat([]byte("x"), 100), nil))
	require.NoError(t, err)

	_, _, err = env.fileSvc.Download(ctx, "user-1", result.File.UUID, 5000, 6000, true)
	require.ErrorIs(t, err, domain.ErrInvalidRange)

	// No bandwidth charged for a rejected range.
	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.BandwidthUsed)
}

func TestDownloadBandwidthExceeded(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	data := bytes.Repeat([]byte("x"), 600)
	result, err := env.fileSvc.Upload(ctx, "user-1", upload("a.bin", data, nil))
	require.NoError(t, err)

	// Bandwidth limit is 1000 in the fakes: first download fits, second does not.
	_, obj, err := env.fileSvc.Download(ctx, "user-1", result.File.UUID, 0, -1, false)
	require.NoError(t, err)
	obj.Close()

	_, _, err = env.fileSvc.Download(ctx, "user-1", result.File.UUID, 0, -1, false)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestDownloadForeignFileNotFound(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	result, err := env.fileSvc.Upload(ctx, "user-1", upload("a.bin", []byte("data"), nil))
	require.NoError(t, err)

	_, _, err = env.fileSvc.Download(ctx, "user-2", result.File.UUID, 0, -1, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRenameFile(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	result, err := env.fileSvc.Upload(ctx, "user-1", upload("old.txt", []byte("data"), nil))
	require.NoError(t, err)

	renamed, err := env.fileSvc.RenameFile(ctx, "user-1", result.File.UUID, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "new.txt", renamed.Name)

	stored, err := env.files.GetLive(ctx, result.File.UUID)
	require.NoError(t, err)
	assert.Equal(t, "new.txt", stored.Name)
}

func TestMoveFileIntoFolder(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	docs, err := env.folderSvc.CreateFolder(ctx, "user-1", "Docs", nil)
	require.NoError(t, err)
	result, err := env.fileSvc.Upload(ctx, "user-1", upload("a.txt", []byte("data"), nil))
	require.NoError(t, err)

	moved, err := env.fileSvc.MoveFile(ctx, "user-1", result.File.UUID, &docs.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.FolderID)
	assert.Equal(t, docs.ID, *moved.FolderID)

	// Back to the root.
	moved, err = env.fileSvc.MoveFile(ctx, "user-1", result.File.UUID, nil)
	require.NoError(t, err)
	assert.Nil(t, moved.FolderID)
}

func TestMoveFileForeignFolder(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	docs, err := env.folderSvc.CreateFolder(ctx, "user-2", "Docs", nil)
	require.NoError(t, err)
	result, err := env.fileSvc.Upload(ctx, "user-1", upload("a.txt", []byte("data"), nil))
	require.NoError(t, err)

	_, err = env.fileSvc.MoveFile(ctx, "user-1", result.File.UUID, &docs.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
