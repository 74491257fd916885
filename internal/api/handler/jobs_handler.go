package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"geoshard-pipeline/internal/model"
	"geoshard-pipeline/internal/pipeline"
	"geoshard-pipeline/internal/storage"
	"geoshard-pipeline/internal/store"
)

// Handler carries the collaborators for the REST surface. Handles are
// constructed in main and passed in; there is no ambient global state.
type Handler struct {
	input       storage.ObjectStore
	jobs        *store.JobStore
	workflow    *pipeline.Workflow
	maxFileSize int64
	log         *zap.Logger
}

func New(input storage.ObjectStore, jobs *store.JobStore, workflow *pipeline.Workflow, maxFileSize int64, log *zap.Logger) *Handler {
	return &Handler{
		input:       input,
		jobs:        jobs,
		workflow:    workflow,
		maxFileSize: maxFileSize,
		log:         log,
	}
}

// UploadRequest is the JSON body accepted by POST /upload.
type UploadRequest struct {
	DatasetID   string `json:"datasetId"`
	FileContent string `json:"fileContent"` // base64
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
}

// Upload stores a file and triggers ingestion
// @Summary Upload a geospatial file
// @Description Stores the uploaded file, creates a PENDING job record, and starts the processing workflow asynchronously
// @Tags jobs
// @Accept json
// @Produce json
// @Param upload body UploadRequest true "Base64-encoded file upload"
// @Success 200 {object} map[string]interface{} "Upload accepted"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.DatasetID == "" || req.FileContent == "" {
		http.Error(w, "Missing datasetId or fileContent", http.StatusBadRequest)
		return
	}
	if strings.ContainsAny(req.DatasetID, "/\\") {
		http.Error(w, "Invalid datasetId", http.StatusBadRequest)
		return
	}
	if req.FileName == "" {
		req.FileName = "upload.geojson"
	}

	fileBytes, err := base64.StdEncoding.DecodeString(req.FileContent)
	if err != nil {
		http.Error(w, "fileContent is not valid base64", http.StatusBadRequest)
		return
	}
	if int64(len(fileBytes)) > h.maxFileSize {
		http.Error(w, fmt.Sprintf("File too large: %d > %d bytes", len(fileBytes), h.maxFileSize), http.StatusBadRequest)
		return
	}

	key := fmt.Sprintf("ingest/%s/%s", req.DatasetID, req.FileName)
	contentType := "application/json"
	if pipeline.FileTypeOf(key) == model.FileTypeGeoTIFF {
		contentType = "image/tiff"
	}
	if err := h.input.Put(r.Context(), key, fileBytes, contentType); err != nil {
		h.log.Error("failed to store uploaded object", zap.String("key", key), zap.Error(err))
		http.Error(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	rec := model.JobRecord{
		DatasetID: req.DatasetID,
		Status:    model.StatusPending,
		FileName:  req.FileName,
		FileType:  pipeline.FileTypeOf(key),
	}
	if err := h.jobs.PutJob(rec); err != nil {
		h.log.Warn("failed to create PENDING job record",
			zap.String("datasetId", req.DatasetID), zap.Error(err))
	}

	// The stored object triggers the workflow, mirroring an
	// object-created event. The request context ends with the response,
	// so the run gets its own.
	size := int64(len(fileBytes))
	go func() {
		if _, err := h.workflow.Run(context.Background(), key, size); err != nil {
			h.log.Warn("workflow run failed",
				zap.String("datasetId", req.DatasetID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasetId": req.DatasetID,
		"status":    model.StatusPending,
		"message":   "File uploaded successfully",
	})
}

// Status returns the job record for a dataset
// @Summary Get job status
// @Description Retrieve the job record projection for a dataset
// @Tags jobs
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Success 200 {object} map[string]interface{} "Job record"
// @Failure 400 {object} map[string]interface{} "Missing dataset ID"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /status/{datasetId} [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimPrefix(r.URL.Path, "/api/v1/status/")
	if datasetID == "" || strings.Contains(datasetID, "/") {
		http.Error(w, "Missing datasetId", http.StatusBadRequest)
		return
	}

	rec, err := h.jobs.GetJob(datasetID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("failed to fetch job", zap.String("datasetId", datasetID), zap.Error(err))
		http.Error(w, "Failed to fetch job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasetId": rec.DatasetID,
		"status":    rec.Status,
		"fileName":  rec.FileName,
		"fileType":  rec.FileType,
		"createdAt": rec.CreatedAt,
		"updatedAt": rec.UpdatedAt,
		"result":    rec.Result,
		"error":     rec.Error,
	})
}

// Jobs lists all jobs
// @Summary List jobs
// @Description List every job with its current status, newest first
// @Tags jobs
// @Produce json
// @Success 200 {object} map[string]interface{} "Job list"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs [get]
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListJobs()
	if err != nil {
		h.log.Error("failed to list jobs", zap.Error(err))
		http.Error(w, "Failed to fetch jobs", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []model.JobListEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
