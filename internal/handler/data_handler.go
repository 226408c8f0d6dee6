package handler

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"analytics-ai/internal/dto"
	"analytics-ai/internal/service"
	"analytics-ai/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DataHandler serves the storage browser.
type DataHandler struct {
	storageService *service.StorageService
	log            logrus.FieldLogger
}

// NewDataHandler creates a DataHandler.
func NewDataHandler(storageService *service.StorageService, log logrus.FieldLogger) *DataHandler {
	return &DataHandler{
		storageService: storageService,
		log:            log,
	}
}

// ListSources returns the configured external data sources. None are supported yet.
func (h *DataHandler) ListSources(c *gin.Context) {
	utils.SuccessResponse(c, []interface{}{})
}

// ListBucketFiles lists one bucket.
// @Summary List bucket files
// @Tags data
// @Produce json
// @Param bucket path string true "bucket name"
// @Success 200 {array} dto.FileInfo
// @Router /api/data/bucket/{bucket}/files [get]
func (h *DataHandler) ListBucketFiles(c *gin.Context) {
	bucket := c.Param("bucket")
	h.writeListing(c, bucket, func() ([]dto.FileInfo, error) {
		return h.storageService.ListFiles(c.Request.Context(), bucket)
	})
}

// ListDefaultBucketFiles lists the writable bucket.
func (h *DataHandler) ListDefaultBucketFiles(c *gin.Context) {
	h.writeListing(c, h.storageService.DefaultBucket(), func() ([]dto.FileInfo, error) {
		return h.storageService.DefaultBucketFiles(c.Request.Context())
	})
}

func (h *DataHandler) writeListing(c *gin.Context, bucket string, list func() ([]dto.FileInfo, error)) {
	files, err := list()
	switch {
	case errors.Is(err, service.ErrBucketNotFound):
		utils.NotFound(c, fmt.Sprintf("Bucket '%s' not found", bucket))
	case err != nil:
		h.log.WithError(err).WithField("bucket", bucket).Error("list files failed")
		utils.InternalError(c, "Failed to list files: "+err.Error())
	default:
		utils.SuccessResponse(c, files)
	}
}

// CombinedFiles merges the default bucket with an optional public bucket.
// @Summary Combined file listing
// @Tags data
// @Produce json
// @Param public_bucket query string false "public bucket"
// @Success 200 {array} dto.FileInfo
// @Router /api/data/combined-files [get]
func (h *DataHandler) CombinedFiles(c *gin.Context) {
	var query dto.CombinedFilesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	utils.SuccessResponse(c, h.storageService.CombinedFiles(c.Request.Context(), query.PublicBucket))
}

// previewSuffix ends preview paths. Gin cannot match segments after a
// catch-all, so GET requests under file/*file are dispatched here.
const previewSuffix = "/preview"

// GetFile serves GET /data/bucket/:bucket/file/*file. Only the preview
// sub-resource exists.
func (h *DataHandler) GetFile(c *gin.Context) {
	name := objectParam(c)
	if !strings.HasSuffix(name, previewSuffix) || len(name) == len(previewSuffix) {
		utils.NotFound(c, "Not Found")
		return
	}
	h.previewFile(c, strings.TrimSuffix(name, previewSuffix))
}

// previewFile returns the first rows of a file.
// @Summary Preview file
// @Tags data
// @Produce json
// @Param bucket path string true "bucket name"
// @Param file path string true "object name"
// @Param rows query int false "rows to show" default(10)
// @Router /api/data/bucket/{bucket}/file/{file}/preview [get]
func (h *DataHandler) previewFile(c *gin.Context, name string) {
	bucket := c.Param("bucket")

	var query dto.PreviewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	rows := utils.DefaultPreviewRows
	if query.Rows != nil {
		rows = *query.Rows
	}

	preview, err := h.storageService.PreviewFile(c.Request.Context(), bucket, name, rows)
	switch {
	case errors.Is(err, service.ErrFileNotFound), errors.Is(err, service.ErrBucketNotFound):
		utils.NotFound(c, fmt.Sprintf("File '%s' not found in bucket '%s'", name, bucket))
	case err != nil:
		h.log.WithError(err).WithFields(logrus.Fields{"bucket": bucket, "file": name}).Error("preview failed")
		utils.InternalError(c, "Failed to preview file: "+err.Error())
	default:
		utils.SuccessResponse(c, preview)
	}
}

// UploadFile stores a multipart "file" in the default bucket.
// @Summary Upload file
// @Tags data
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "file"
// @Success 200 {object} dto.UploadResponse
// @Router /api/data/default-bucket/upload [post]
func (h *DataHandler) UploadFile(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		utils.BadRequest(c, "No file provided: "+err.Error())
		return
	}

	src, err := file.Open()
	if err != nil {
		utils.BadRequest(c, "Failed to open file: "+err.Error())
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		utils.BadRequest(c, "Failed to read file: "+err.Error())
		return
	}

	resp, err := h.storageService.Upload(c.Request.Context(), file.Filename, file.Header.Get("Content-Type"), content)
	switch {
	case errors.Is(err, service.ErrEmptyFilename):
		utils.BadRequest(c, service.ErrEmptyFilename.Error())
	case errors.Is(err, service.ErrEmptyFile):
		utils.BadRequest(c, service.ErrEmptyFile.Error())
	case err != nil:
		h.log.WithError(err).WithField("file", file.Filename).Error("upload failed")
		utils.InternalError(c, "Failed to upload file: "+err.Error())
	default:
		utils.SuccessResponse(c, resp)
	}
}

// DeleteFile removes a file from the default bucket.
// @Summary Delete file
// @Tags data
// @Produce json
// @Param bucket path string true "bucket name"
// @Param file path string true "object name"
// @Router /api/data/bucket/{bucket}/file/{file} [delete]
func (h *DataHandler) DeleteFile(c *gin.Context) {
	bucket := c.Param("bucket")
	name := objectParam(c)

	err := h.storageService.Delete(c.Request.Context(), bucket, name)
	switch {
	case errors.Is(err, service.ErrReadOnlyBucket):
		utils.Forbidden(c, service.ErrReadOnlyBucket.Error())
	case errors.Is(err, service.ErrFileNotFound), errors.Is(err, service.ErrBucketNotFound):
		utils.NotFound(c, fmt.Sprintf("File '%s' not found", name))
	case err != nil:
		h.log.WithError(err).WithFields(logrus.Fields{"bucket": bucket, "file": name}).Error("delete failed")
		utils.InternalError(c, "Failed to delete file: "+err.Error())
	default:
		utils.SuccessWithMessage(c, fmt.Sprintf("File '%s' deleted successfully", name))
	}
}

// objectParam returns the object name captured by the *file wildcard, which
// may contain slashes.
func objectParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("file"), "/")
}
