package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/craftbridge/catalog-backend/internal/http/response"
	"github.com/craftbridge/catalog-backend/internal/pkg/errors"
	"github.com/craftbridge/catalog-backend/internal/types"
	"github.com/craftbridge/catalog-backend/internal/upload"
)

type UploadHandler struct {
	manager upload.Manager
}

func NewUploadHandler(manager upload.Manager) *UploadHandler {
	return &UploadHandler{manager: manager}
}

// POST /v1/catalog/upload/initiate
// body: { "tenantId": "...", "artisanId": "...", "contentType": "image/jpeg", "totalSize": 12582912 }
func (uh *UploadHandler) Initiate(c *gin.Context) {
	var req struct {
		TenantID    string `json:"tenantId"`
		ArtisanID   string `json:"artisanId"`
		ContentType string `json:"contentType"`
		TotalSize   int64  `json:"totalSize"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, errors.Wrap(errors.KindValidation, "invalid request body", err))
		return
	}

	handle, err := uh.manager.Initiate(c.Request.Context(), upload.InitiateInput{
		TenantID:    req.TenantID,
		ArtisanID:   req.ArtisanID,
		ContentType: req.ContentType,
		TotalSize:   req.TotalSize,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, handle)
}

// POST /v1/catalog/upload/:trackingId/parts
// body: { "partNumber": 2, "eTag": "..." }
func (uh *UploadHandler) RecordPart(c *gin.Context) {
	var req struct {
		PartNumber int    `json:"partNumber"`
		ETag       string `json:"eTag"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, errors.Wrap(errors.KindValidation, "invalid request body", err))
		return
	}

	state, err := uh.manager.RecordPartCompletion(c.Request.Context(), c.Param("trackingId"), req.PartNumber, req.ETag)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, state)
}

// GET /v1/catalog/upload/:trackingId/resume
func (uh *UploadHandler) Resume(c *gin.Context) {
	info, err := uh.manager.GetResumeInfo(c.Request.Context(), c.Param("trackingId"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, info)
}

// POST /v1/catalog/upload/complete
// body: { "trackingId": "trk_...", "photoKey": "...", "audioKey": "...", "language": "hi", "priority": "normal" }
func (uh *UploadHandler) Complete(c *gin.Context) {
	var req struct {
		TrackingID string            `json:"trackingId"`
		PhotoKey   string            `json:"photoKey"`
		AudioKey   string            `json:"audioKey"`
		Language   string            `json:"language"`
		Priority   string            `json:"priority"`
		Metadata   map[string]string `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, errors.Wrap(errors.KindValidation, "invalid request body", err))
		return
	}

	out, err := uh.manager.Complete(c.Request.Context(), upload.CompleteInput{
		TrackingID: req.TrackingID,
		PhotoKey:   req.PhotoKey,
		AudioKey:   req.AudioKey,
		Language:   req.Language,
		Priority:   types.Priority(req.Priority),
		Metadata:   req.Metadata,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /v1/catalog/upload/:trackingId/abort
func (uh *UploadHandler) Abort(c *gin.Context) {
	if err := uh.manager.Abort(c.Request.Context(), c.Param("trackingId")); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
