package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"geoshard-pipeline/internal/metrics"
	"geoshard-pipeline/internal/model"
	"geoshard-pipeline/internal/notify"
	"geoshard-pipeline/internal/pipeline"
	"geoshard-pipeline/internal/storage"
	"geoshard-pipeline/internal/store"
)

const uploadCollection = `{
	"type": "FeatureCollection",
	"features": [
		{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 1]}}
	]
}`

func newTestHandler(t *testing.T) (*Handler, storage.ObjectStore, *store.JobStore) {
	t.Helper()
	input, err := storage.NewDirStore(t.TempDir())
	require.NoError(t, err)
	output, err := storage.NewDirStore(t.TempDir())
	require.NoError(t, err)
	jobs, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { jobs.Close() })

	workflow := pipeline.NewWorkflow(pipeline.Deps{
		Input:       input,
		Output:      output,
		Jobs:        jobs,
		Sink:        metrics.NewMemorySink(),
		Notifier:    notify.NewLogNotifier(zap.NewNop()),
		MaxFileSize: 1 << 20,
		MaxShards:   3,
		Log:         zap.NewNop(),
	})
	return New(input, jobs, workflow, 1<<20, zap.NewNop()), input, jobs
}

func postUpload(t *testing.T, h *Handler, req UploadRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload", bytes.NewReader(body))
	h.Upload(w, r)
	return w
}

func TestUpload_AcceptsAndProcesses(t *testing.T) {
	h, input, jobs := newTestHandler(t)

	w := postUpload(t, h, UploadRequest{
		DatasetID:   "city-parks",
		FileContent: base64.StdEncoding.EncodeToString([]byte(uploadCollection)),
		FileName:    "parks.geojson",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "city-parks", resp["datasetId"])
	assert.Equal(t, string(model.StatusPending), resp["status"])

	stored, err := input.Get(context.Background(), "ingest/city-parks/parks.geojson")
	require.NoError(t, err)
	assert.Equal(t, []byte(uploadCollection), stored)

	// The workflow runs asynchronously after the response is written.
	require.Eventually(t, func() bool {
		rec, err := jobs.GetJob("city-parks")
		return err == nil && rec.Status == model.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec, err := jobs.GetJob("city-parks")
	require.NoError(t, err)
	require.NotNil(t, rec.Result)
	assert.Equal(t, 1, rec.Result.PointCount)
	assert.Equal(t, "city-parks/manifest.json", rec.ManifestKey)
}

func TestUpload_Validation(t *testing.T) {
	h, _, _ := newTestHandler(t)
	content := base64.StdEncoding.EncodeToString([]byte("{}"))

	tests := []struct {
		name string
		req  UploadRequest
	}{
		{name: "missing datasetId", req: UploadRequest{FileContent: content}},
		{name: "missing fileContent", req: UploadRequest{DatasetID: "d1"}},
		{name: "datasetId with slash", req: UploadRequest{DatasetID: "a/b", FileContent: content}},
		{name: "datasetId with backslash", req: UploadRequest{DatasetID: `a\b`, FileContent: content}},
		{name: "invalid base64", req: UploadRequest{DatasetID: "d1", FileContent: "not base64!!!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postUpload(t, h, tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestUpload_MalformedJSON(t *testing.T) {
	h, _, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload", bytes.NewReader([]byte("{not json")))
	h.Upload(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_FileTooLarge(t *testing.T) {
	h, _, _ := newTestHandler(t)
	// Shrink the cap for this handler instance.
	h.maxFileSize = 8

	w := postUpload(t, h, UploadRequest{
		DatasetID:   "big",
		FileContent: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("x"), 64)),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "File too large")
}

func TestStatus(t *testing.T) {
	h, _, jobs := newTestHandler(t)
	require.NoError(t, jobs.PutJob(model.JobRecord{
		DatasetID: "d1",
		Status:    model.StatusProcessing,
		FileName:  "a.geojson",
		FileType:  model.FileTypeGeoJSON,
	}))

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "known dataset", path: "/api/v1/status/d1", wantCode: http.StatusOK},
		{name: "unknown dataset", path: "/api/v1/status/nope", wantCode: http.StatusNotFound},
		{name: "missing dataset id", path: "/api/v1/status/", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			h.Status(w, r)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}

	w := httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/api/v1/status/d1", nil))
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "d1", resp["datasetId"])
	assert.Equal(t, string(model.StatusProcessing), resp["status"])
	assert.Equal(t, "a.geojson", resp["fileName"])
	assert.Nil(t, resp["result"])
}

func TestJobs_EmptyListIsNotNull(t *testing.T) {
	h, _, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.Jobs(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs": []}`, w.Body.String())
}

func TestJobs_ListsRecords(t *testing.T) {
	h, _, jobs := newTestHandler(t)
	require.NoError(t, jobs.PutJob(model.JobRecord{DatasetID: "a", Status: model.StatusPending, FileName: "a.geojson"}))
	require.NoError(t, jobs.PutJob(model.JobRecord{DatasetID: "b", Status: model.StatusPending, FileName: "b.tif"}))

	w := httptest.NewRecorder()
	h.Jobs(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Jobs []model.JobListEntry `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 2)
}
