package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/binaa-yemen/raster-pipeline/internal/raster"
	"github.com/binaa-yemen/raster-pipeline/internal/rasterjob"
	"github.com/binaa-yemen/raster-pipeline/internal/utils"
	"github.com/binaa-yemen/raster-pipeline/internal/worker"
)

// maxUploadBytes bounds a single upload; large archives are rare and this
// keeps one bad request from exhausting the staging disk.
const maxUploadBytes = 2 << 30 // 2 GiB

// Dispatcher accepts raster uploads, hands them to the worker runtime, and
// answers status/cancel/queue-depth queries against the job store. It is
// the entry point this pipeline exposes in place of the original upload
// handler's image-finalize flow.
type Dispatcher struct {
	store      rasterjob.Store
	runtime    *worker.Runtime
	stagingDir string
}

// NewDispatcher builds a Dispatcher. stagingDir holds uploaded files until
// a worker claims them; it is created if missing.
func NewDispatcher(store rasterjob.Store, runtime *worker.Runtime, stagingDir string) *Dispatcher {
	return &Dispatcher{store: store, runtime: runtime, stagingDir: stagingDir}
}

// EnqueueResponse is returned from a successful upload.
type EnqueueResponse struct {
	JobID     string `json:"job_id"`
	LayerID   string `json:"layer_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// Enqueue accepts a multipart file upload, stages it to disk, creates the
// job/layer rows, and submits a task to the worker runtime. The file must
// be a GeoTIFF (.tif/.tiff) or a zip archive containing one. The optional
// form field layer_id lets a caller reuse an existing layer across uploads
// (the layer upsert is ON CONFLICT safe for concurrent callers of the same
// id); when absent a fresh id is minted. The optional form field priority
// (normal|high) routes the resulting ingest task onto the high_priority
// queue ahead of the default processing/validation lanes.
func (d *Dispatcher) Enqueue(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.SendValidationError(c, fmt.Errorf("missing_file: %w", err))
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	var kind worker.TaskKind
	switch ext {
	case ".tif", ".tiff":
		kind = worker.TaskProcessGeoTIFF
	case ".zip":
		kind = worker.TaskProcessArchive
	default:
		utils.SendValidationError(c, fmt.Errorf("unsupported_kind: only .tif, .tiff, and .zip uploads are accepted, got %q", ext))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}
	header := make([]byte, 512)
	n, _ := io.ReadFull(f, header)
	f.Close()
	if sniffed := raster.SniffKind(header[:n]); !raster.MatchesExtension(sniffed, ext) {
		utils.SendValidationError(c, fmt.Errorf("content_mismatch: file contents do not look like a %s (sniffed %q)", ext, sniffed))
		return
	}

	jobID := uuid.NewString()
	layerID := c.PostForm("layer_id")
	if layerID == "" {
		layerID = uuid.NewString()
	}

	priority := worker.PriorityNormal
	if p := c.PostForm("priority"); p != "" {
		switch worker.Priority(p) {
		case worker.PriorityNormal, worker.PriorityHigh:
			priority = worker.Priority(p)
		default:
			utils.SendValidationError(c, fmt.Errorf("invalid_priority: must be one of normal, high, got %q", p))
			return
		}
	}

	if err := os.MkdirAll(d.stagingDir, 0o755); err != nil {
		utils.SendInternalError(c, err)
		return
	}
	dstPath := filepath.Join(d.stagingDir, layerID+ext)
	if err := c.SaveUploadedFile(fileHeader, dstPath); err != nil {
		utils.SendInternalError(c, err)
		return
	}

	job := &rasterjob.Job{
		ID:       jobID,
		LayerID:  layerID,
		Status:   rasterjob.StatusQueued,
		Progress: 0,
		Metadata: rasterjob.Metadata{"original_filename": fileHeader.Filename},
	}
	layer := &rasterjob.Layer{
		ID:       layerID,
		Filename: fileHeader.Filename,
		Status:   rasterjob.LayerProcessing,
		Metadata: rasterjob.Metadata{},
	}
	if err := d.store.CreateJobAndLayer(c.Request.Context(), job, layer); err != nil {
		os.Remove(dstPath)
		utils.SendInternalError(c, err)
		return
	}

	submitted := d.runtime.Submit(&worker.Task{
		Kind:     kind,
		JobID:    jobID,
		LayerID:  layerID,
		SrcPath:  dstPath,
		Original: fileHeader.Filename,
		Priority: priority,
	})
	if !submitted {
		utils.SendError(c, http.StatusServiceUnavailable, "processing queue is full, try again later", nil)
		return
	}

	utils.SendCreated(c, "upload accepted", EnqueueResponse{
		JobID:     jobID,
		LayerID:   layerID,
		Status:    string(rasterjob.StatusQueued),
		StatusURL: fmt.Sprintf("/api/v1/jobs/%s", jobID),
	})
}

// Status reports a job's current lifecycle state and progress.
func (d *Dispatcher) Status(c *gin.Context) {
	jobID := c.Param("job_id")
	job, err := d.store.GetJob(c.Request.Context(), jobID)
	if err != nil || job == nil {
		utils.SendError(c, http.StatusNotFound, "not_found", err)
		return
	}
	utils.SendSuccess(c, "job status retrieved", job)
}

// Cancel marks a queued or processing job cancelled. It does not stop an
// in-flight worker immediately; the worker's own terminal-state guard on
// FinishJob prevents it from overwriting the cancellation afterwards.
func (d *Dispatcher) Cancel(c *gin.Context) {
	jobID := c.Param("job_id")
	ok, err := d.store.CancelJob(c.Request.Context(), jobID)
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}
	if !ok {
		utils.SendError(c, http.StatusConflict, "not_cancellable", fmt.Errorf("job %s is not queued or processing", jobID))
		return
	}
	utils.SendSuccess(c, "job cancelled", gin.H{"job_id": jobID, "status": rasterjob.StatusCancelled})
}

// QueueStatus reports worker capacity, active tasks, per-queue backlog,
// and job counts over the last 24h.
func (d *Dispatcher) QueueStatus(c *gin.Context) {
	stats, err := d.runtime.QueueStatus(c.Request.Context())
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}
	utils.SendSuccess(c, "queue status", gin.H{
		"queue_stats": stats,
		"timestamp":   time.Now().Unix(),
	})
}

// Health reports the job store's connectivity.
func (d *Dispatcher) Health(c *gin.Context) {
	if err := d.store.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error(), "timestamp": time.Now().Unix()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().Unix()})
}
