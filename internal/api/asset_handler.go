package api

import (
	"alcyxob/coursevault/internal/contentstore"
	"alcyxob/coursevault/internal/domain"
	"alcyxob/coursevault/internal/service"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// AssetHandler exposes the backup subsystem over HTTP. It is a thin
// translation layer; all semantics live in the services.
type AssetHandler struct {
	backupService  service.BackupService
	restoreService service.RestoreService
	sweeperService service.SweeperService
}

func NewAssetHandler(
	backupService service.BackupService,
	restoreService service.RestoreService,
	sweeperService service.SweeperService,
) *AssetHandler {
	return &AssetHandler{
		backupService:  backupService,
		restoreService: restoreService,
		sweeperService: sweeperService,
	}
}

// --- DTOs ---

type AssetResponse struct {
	ID              string `json:"id"`
	CourseID        string `json:"courseId"`
	Filename        string `json:"filename"`
	MimeType        string `json:"mimeType"`
	Size            int64  `json:"size"`
	Sha256          string `json:"sha256,omitempty"`
	BackedUp        bool   `json:"backedUp"`
	Abandoned       bool   `json:"abandoned"`
	LastBackupError string `json:"lastBackupError,omitempty"`
}

type CidRecordResponse struct {
	ID       string `json:"id"`
	Cid      string `json:"cid"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Sha256   string `json:"sha256"`
}

type UploadResponse struct {
	Asset     AssetResponse      `json:"asset"`
	CidRecord *CidRecordResponse `json:"cidRecord,omitempty"`
}

func mapAssetToResponse(asset *domain.Asset) AssetResponse {
	return AssetResponse{
		ID:              asset.ID.Hex(),
		CourseID:        asset.CourseID,
		Filename:        asset.Filename,
		MimeType:        asset.MimeType,
		Size:            asset.Size,
		Sha256:          asset.Sha256,
		BackedUp:        asset.BackedUp,
		Abandoned:       asset.Abandoned,
		LastBackupError: asset.LastBackupError,
	}
}

func mapCidRecordToResponse(record *domain.CidRecord) *CidRecordResponse {
	if record == nil {
		return nil
	}
	return &CidRecordResponse{
		ID:       record.ID.Hex(),
		Cid:      record.Cid,
		Filename: record.Filename,
		MimeType: record.MimeType,
		Size:     record.Size,
		Status:   string(record.Status),
		Attempts: record.Attempts,
		Sha256:   record.Sha256,
	}
}

// --- Handler Methods ---

// UploadAsset godoc
// @Summary Upload a course asset for backup
// @Description Registers an asset and backs its bytes up into the content-addressed store. Identical content deduplicates to the existing cid.
// @Tags Assets
// @Accept multipart/form-data
// @Produce json
// @Param course_id formData string true "Owning course ID"
// @Param original_path formData string false "Path the retry sweep can re-read the bytes from"
// @Param file formData file true "Asset content"
// @Success 201 {object} UploadResponse "Asset registered and backed up"
// @Failure 400 {object} gin.H "Missing course ID or content"
// @Failure 502 {object} gin.H "Content store unavailable (asset registered, retry pending)"
// @Router /assets [post]
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	courseID := c.PostForm("course_id")
	originalPath := c.PostForm("original_path")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "A file is required.")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Could not read the uploaded file.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Could not read the uploaded file.")
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	asset, record, err := h.backupService.Upload(c.Request.Context(), courseID, originalPath, data, fileHeader.Filename, mimeType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCourseIDRequired), errors.Is(err, service.ErrSourceRequired):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case contentstore.IsTransient(err):
			// The asset is registered and the sweep will retry; tell the
			// caller the store is the problem, not the request.
			log.Printf("ERROR: Interactive backup failed (transient): %v", err)
			abortWithError(c, http.StatusBadGateway, "Content store is temporarily unavailable; backup will be retried.")
		default:
			log.Printf("ERROR: Interactive backup failed: %v", err)
			abortWithError(c, http.StatusInternalServerError, "Failed to back up the asset.")
		}
		return
	}

	c.JSON(http.StatusCreated, UploadResponse{
		Asset:     mapAssetToResponse(asset),
		CidRecord: mapCidRecordToResponse(record),
	})
}

// GetByCid godoc
// @Summary Get the content record for a cid
// @Tags Assets
// @Produce json
// @Param cid path string true "Content identifier"
// @Success 200 {object} CidRecordResponse
// @Failure 404 {object} gin.H "Unknown cid"
// @Router /assets/cid/{cid} [get]
func (h *AssetHandler) GetByCid(c *gin.Context) {
	record, err := h.restoreService.GetByCid(c.Request.Context(), c.Param("cid"))
	if err != nil {
		if errors.Is(err, service.ErrCidNotFound) {
			abortWithError(c, http.StatusNotFound, "Unknown cid.")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to look up cid.")
		return
	}
	c.JSON(http.StatusOK, mapCidRecordToResponse(record))
}

// DownloadByCid godoc
// @Summary Download the content behind a cid
// @Tags Assets
// @Produce octet-stream
// @Param cid path string true "Content identifier"
// @Success 200 {file} binary
// @Failure 404 {object} gin.H "Unknown cid"
// @Failure 502 {object} gin.H "Content store unavailable"
// @Router /assets/cid/{cid}/download [get]
func (h *AssetHandler) DownloadByCid(c *gin.Context) {
	data, filename, mimeType, err := h.restoreService.Download(c.Request.Context(), c.Param("cid"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCidNotFound):
			abortWithError(c, http.StatusNotFound, "Unknown cid.")
		case contentstore.IsTransient(err):
			abortWithError(c, http.StatusBadGateway, "Content store is temporarily unavailable.")
		default:
			log.Printf("ERROR: Download failed for cid %s: %v", c.Param("cid"), err)
			abortWithError(c, http.StatusInternalServerError, "Failed to download content.")
		}
		return
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, mimeType, data)
}

// TriggerSweep godoc
// @Summary Trigger a backup retry sweep
// @Description Runs one sweep over pending assets. Returns 0 if a sweep is already in flight.
// @Tags Backup
// @Produce json
// @Param limit query int false "Max assets to attempt"
// @Success 200 {object} gin.H "Number of assets attempted"
// @Router /backup/sweep [post]
func (h *AssetHandler) TriggerSweep(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			abortWithError(c, http.StatusBadRequest, "limit must be a non-negative integer.")
			return
		}
		limit = parsed
	}

	processed, err := h.sweeperService.ProcessPending(c.Request.Context(), limit)
	if err != nil {
		log.Printf("ERROR: Manual sweep failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, "Sweep failed.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}
