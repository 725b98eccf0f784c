package service

import (
	"context"
	"testing"

	"alcyxob/coursevault/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetByCidUnknownReturnsNotFound(t *testing.T) {
	fx := newBackupFixture(t, true)
	restore := NewRestoreService(fx.records, fx.store)

	_, err := restore.GetByCid(context.Background(), "QmNonexistent")
	assert.ErrorIs(t, err, ErrCidNotFound)

	_, err = restore.GetByCid(context.Background(), "")
	assert.ErrorIs(t, err, ErrCidNotFound)
}

func TestDownloadUnknownCidNeverHitsStore(t *testing.T) {
	fx := newBackupFixture(t, true)
	// If the store were consulted, this error would surface instead of
	// NotFound.
	fx.store.catErr = transientErr("cat")
	restore := NewRestoreService(fx.records, fx.store)

	_, _, _, err := restore.Download(context.Background(), "QmNonexistent")
	assert.ErrorIs(t, err, ErrCidNotFound)
}

func TestDownloadRoundTrip(t *testing.T) {
	fx := newBackupFixture(t, true)
	restore := NewRestoreService(fx.records, fx.store)
	ctx := context.Background()
	content := []byte("round trip payload")

	_, record, err := fx.backup.Upload(ctx, "course-1", "", content, "notes.pdf", "application/pdf")
	require.NoError(t, err)

	data, filename, mimeType, err := restore.Download(ctx, record.Cid)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, "notes.pdf", filename)
	assert.Equal(t, "application/pdf", mimeType)
}

func TestGetByCidReturnsStoredRecord(t *testing.T) {
	fx := newBackupFixture(t, true)
	restore := NewRestoreService(fx.records, fx.store)
	ctx := context.Background()

	_, record, err := fx.backup.Upload(ctx, "course-1", "", []byte("lookup payload"), "clip.mp4", "video/mp4")
	require.NoError(t, err)

	found, err := restore.GetByCid(ctx, record.Cid)
	require.NoError(t, err)
	assert.Equal(t, record.Cid, found.Cid)
	assert.Equal(t, domain.CidStatusPinned, found.Status)
	assert.Equal(t, "clip.mp4", found.Filename)
}

func TestDownloadPropagatesStoreFailure(t *testing.T) {
	fx := newBackupFixture(t, true)
	restore := NewRestoreService(fx.records, fx.store)
	ctx := context.Background()

	_, record, err := fx.backup.Upload(ctx, "course-1", "", []byte("payload"), "a.bin", "")
	require.NoError(t, err)

	fx.store.catErr = transientErr("cat")
	_, _, _, err = restore.Download(ctx, record.Cid)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCidNotFound)
}
