package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"alcyxob/coursevault/internal/contentstore"
	"alcyxob/coursevault/internal/domain"
	"alcyxob/coursevault/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// -------- test fakes --------

type fakeBackupService struct {
	asset  *domain.Asset
	record *domain.CidRecord
	err    error

	gotCourseID string
	gotData     []byte
}

func (f *fakeBackupService) Upload(ctx context.Context, courseID, originalPath string, data []byte, filename, mimeType string) (*domain.Asset, *domain.CidRecord, error) {
	f.gotCourseID = courseID
	f.gotData = data
	if f.err != nil {
		return f.asset, nil, f.err
	}
	return f.asset, f.record, nil
}

func (f *fakeBackupService) UploadForAsset(ctx context.Context, asset *domain.Asset, src io.Reader, declaredFilename string) (*domain.CidRecord, error) {
	return f.record, f.err
}

type fakeRestoreService struct {
	record   *domain.CidRecord
	data     []byte
	filename string
	mimeType string
	err      error
}

func (f *fakeRestoreService) GetByCid(ctx context.Context, cid string) (*domain.CidRecord, error) {
	return f.record, f.err
}

func (f *fakeRestoreService) Download(ctx context.Context, cid string) ([]byte, string, string, error) {
	return f.data, f.filename, f.mimeType, f.err
}

type fakeSweeperService struct {
	processed int
	err       error
	gotLimit  int
}

func (f *fakeSweeperService) ProcessPending(ctx context.Context, limit int) (int, error) {
	f.gotLimit = limit
	return f.processed, f.err
}

func (f *fakeSweeperService) RunScheduler(ctx context.Context) {}

// -------- helpers --------

func newTestRouter(backup service.BackupService, restore service.RestoreService, sweeper service.SweeperService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, backup, restore, sweeper)
	return router
}

func multipartUpload(t *testing.T, courseID string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("course_id", courseID))
	part, err := writer.CreateFormFile("file", "lecture.mp4")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func sampleRecord() *domain.CidRecord {
	return &domain.CidRecord{
		ID:       primitive.NewObjectID(),
		Cid:      "QmSample",
		Filename: "lecture.mp4",
		MimeType: "video/mp4",
		Size:     11,
		Status:   domain.CidStatusPinned,
		Attempts: 1,
		Sha256:   "abc123",
	}
}

// -------- tests --------

func TestUploadAssetReturnsCreated(t *testing.T) {
	backup := &fakeBackupService{
		asset:  &domain.Asset{ID: primitive.NewObjectID(), CourseID: "course-1", BackedUp: true},
		record: sampleRecord(),
	}
	router := newTestRouter(backup, &fakeRestoreService{}, &fakeSweeperService{})

	body, contentType := multipartUpload(t, "course-1", []byte("hello world"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "course-1", backup.gotCourseID)
	assert.Equal(t, []byte("hello world"), backup.gotData)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "QmSample", resp.CidRecord.Cid)
	assert.True(t, resp.Asset.BackedUp)
}

func TestUploadAssetWithoutFile(t *testing.T) {
	router := newTestRouter(&fakeBackupService{}, &fakeRestoreService{}, &fakeSweeperService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadAssetValidationError(t *testing.T) {
	backup := &fakeBackupService{err: service.ErrCourseIDRequired}
	router := newTestRouter(backup, &fakeRestoreService{}, &fakeSweeperService{})

	body, contentType := multipartUpload(t, "", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadAssetStoreOutageMapsToBadGateway(t *testing.T) {
	backup := &fakeBackupService{
		asset: &domain.Asset{ID: primitive.NewObjectID(), CourseID: "course-1"},
		err:   &contentstore.StoreError{Op: "add", Transient: true, Err: io.ErrUnexpectedEOF},
	}
	router := newTestRouter(backup, &fakeRestoreService{}, &fakeSweeperService{})

	body, contentType := multipartUpload(t, "course-1", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetByCidUnknownReturns404(t *testing.T) {
	restore := &fakeRestoreService{err: service.ErrCidNotFound}
	router := newTestRouter(&fakeBackupService{}, restore, &fakeSweeperService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets/cid/QmNonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetByCidReturnsRecord(t *testing.T) {
	restore := &fakeRestoreService{record: sampleRecord()}
	router := newTestRouter(&fakeBackupService{}, restore, &fakeSweeperService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets/cid/QmSample", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp CidRecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "QmSample", resp.Cid)
	assert.Equal(t, "pinned", resp.Status)
}

func TestDownloadByCidSetsContentHeaders(t *testing.T) {
	restore := &fakeRestoreService{
		data:     []byte("hello world"),
		filename: "lecture.mp4",
		mimeType: "video/mp4",
	}
	router := newTestRouter(&fakeBackupService{}, restore, &fakeSweeperService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets/cid/QmSample/download", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("hello world"), w.Body.Bytes())
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "lecture.mp4")
}

func TestTriggerSweepReturnsProcessedCount(t *testing.T) {
	sweeper := &fakeSweeperService{processed: 4}
	router := newTestRouter(&fakeBackupService{}, &fakeRestoreService{}, sweeper)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/backup/sweep?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, sweeper.gotLimit)
	assert.JSONEq(t, `{"processed": 4}`, w.Body.String())
}

func TestTriggerSweepRejectsBadLimit(t *testing.T) {
	router := newTestRouter(&fakeBackupService{}, &fakeRestoreService{}, &fakeSweeperService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/backup/sweep?limit=-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
