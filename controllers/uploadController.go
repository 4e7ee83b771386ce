package controllers

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gulfstream-dynamics/crm_backend/utils"
)

type uploadSignRequest struct {
	FileName string `json:"fileName" binding:"required"`
	MimeType string `json:"mimeType" binding:"required"`
	Size     int64  `json:"size" binding:"required"`
	// quotation | purchase-order | delivery-note
	DocumentType string `json:"documentType"`
}

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

var documentMimeTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"image/jpeg": true,
	"image/png":  true,
}

// SignDocumentUpload mints a signed PUT URL for an order document. The
// returned access URL is what gets stored as the file reference.
func SignDocumentUpload(c *gin.Context) {
	var req uploadSignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if req.Size > maxUploadSizeBytes {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "file size exceeds 5MB limit")
		return
	}
	if !documentMimeTypes[req.MimeType] {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "unsupported document type")
		return
	}

	folder := strings.Trim(req.DocumentType, "/")
	if folder == "" {
		folder = "documents"
	}
	ext := path.Ext(req.FileName)
	objectKey := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext)

	signed, err := utils.SignDocumentUpload(objectKey, req.MimeType, 15*time.Minute)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", err.Error())
		return
	}
	respondOK(c, signed)
}
