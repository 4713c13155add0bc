// Package rasterjob holds the durable job/layer model shared by the
// dispatcher, the worker runtime, and the job store.
package rasterjob

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a processing job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Cancellable reports whether a job in this status may still be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusQueued || s == StatusProcessing
}

// LayerStatus is the lifecycle state of the logical deliverable.
type LayerStatus string

const (
	LayerPending    LayerStatus = "pending"
	LayerProcessing LayerStatus = "processing"
	LayerProcessed  LayerStatus = "processed"
	LayerError      LayerStatus = "error"
)

// Metadata is an open string -> value mapping, persisted as JSONB.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("rasterjob: cannot scan %T into Metadata", value)
		}
		b = []byte(s)
	}
	if len(b) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// Bounds is a geographic bounding box ordered [west, south, east, north] in
// EPSG:4326, per invariant I3.
type Bounds [4]float64

func (b Bounds) West() float64  { return b[0] }
func (b Bounds) South() float64 { return b[1] }
func (b Bounds) East() float64  { return b[2] }
func (b Bounds) North() float64 { return b[3] }

// Leaflet returns the [[south, west], [north, east]] projection used by the
// Leaflet map viewer, derived from the canonical bbox.
func (b Bounds) Leaflet() [2][2]float64 {
	return [2][2]float64{
		{b.South(), b.West()},
		{b.North(), b.East()},
	}
}

// Value implements driver.Valuer.
func (b Bounds) Value() (driver.Value, error) {
	return json.Marshal([4]float64(b))
}

// Scan implements sql.Scanner.
func (b *Bounds) Scan(value any) error {
	if value == nil {
		return nil
	}
	raw, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("rasterjob: cannot scan %T into Bounds", value)
		}
		raw = []byte(s)
	}
	var arr [4]float64
	if err := json.Unmarshal(raw, &arr); err != nil {
		return err
	}
	*b = Bounds(arr)
	return nil
}

// Job is one row per accepted upload.
type Job struct {
	ID        string    `db:"id" json:"job_id"`
	LayerID   string    `db:"layer_id" json:"layer_id"`
	Status    Status    `db:"status" json:"status"`
	Progress  int       `db:"progress" json:"progress"`
	Metadata  Metadata  `db:"metadata" json:"metadata"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Layer is the logical deliverable a job (or chain of jobs) produces.
type Layer struct {
	ID          string      `db:"id" json:"id"`
	Filename    string      `db:"filename" json:"filename"`
	Status      LayerStatus `db:"status" json:"status"`
	ImageURL    *string     `db:"image_url" json:"image_url,omitempty"`
	COGURL      *string     `db:"cog_url" json:"cog_url,omitempty"`
	BoundsWGS84 *Bounds     `db:"bounds_wgs84" json:"bounds_wgs84,omitempty"`
	Width       *int        `db:"width" json:"width,omitempty"`
	Height      *int        `db:"height" json:"height,omitempty"`
	CRS         *string     `db:"crs" json:"crs,omitempty"`
	Metadata    Metadata    `db:"metadata" json:"metadata"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Manifest is the canonical per-layer manifest written to metadata.json and
// embedded in the job's terminal metadata.
type Manifest struct {
	Success           bool      `json:"success"`
	LayerID           string    `json:"layer_id"`
	OriginalFilename  string    `json:"original_filename"`
	ImageFile         string    `json:"imageFile"`
	PNGURL            string    `json:"png_url"`
	COGURL            string    `json:"cog_url"`
	MetadataURL       string    `json:"metadata_url,omitempty"`
	Bbox              [4]float64 `json:"bbox"`
	LeafletBounds     [2][2]float64 `json:"leaflet_bounds"`
	Width             int       `json:"width"`
	Height            int       `json:"height"`
	CRS               string    `json:"crs"`
	ProcessedAt       string    `json:"processed_at"`
	JobID             string    `json:"job_id"`
}

// ErrorKind classifies a job failure for retry/HTTP-mapping decisions.
type ErrorKind string

const (
	ErrValidation  ErrorKind = "validation"
	ErrIOTransient ErrorKind = "io_transient"
	ErrIOFatal     ErrorKind = "io_fatal"
	ErrTimeout     ErrorKind = "timeout"
	ErrCancelled   ErrorKind = "cancelled"
	ErrInternal    ErrorKind = "internal"
)

// JobError is the structured error recorded in a job's terminal metadata.
type JobError struct {
	Kind      ErrorKind `json:"error_kind"`
	Message   string    `json:"error"`
	Traceback string    `json:"traceback,omitempty"`
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retriable reports whether the runtime may retry the task that produced
// this error, per the error taxonomy in the error-handling design.
func (e *JobError) Retriable() bool {
	return e.Kind == ErrIOTransient
}

// NewValidationError builds a non-retriable validation failure.
func NewValidationError(format string, args ...any) *JobError {
	return &JobError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NewIOFatalError builds a non-retriable I/O failure.
func NewIOFatalError(err error) *JobError {
	return &JobError{Kind: ErrIOFatal, Message: err.Error()}
}

// NewIOTransientError builds a retriable I/O failure.
func NewIOTransientError(err error) *JobError {
	return &JobError{Kind: ErrIOTransient, Message: err.Error()}
}

// NewTimeoutError builds a terminal timeout failure.
func NewTimeoutError() *JobError {
	return &JobError{Kind: ErrTimeout, Message: "exceeded per-task time limit"}
}

// NewInternalError wraps an unclassified error with its stack trace
// recorded for later inspection.
func NewInternalError(err error, stack string) *JobError {
	return &JobError{Kind: ErrInternal, Message: err.Error(), Traceback: stack}
}

// AsJobError unwraps err into a *JobError, classifying unknown errors as
// internal.
func AsJobError(err error) *JobError {
	if err == nil {
		return nil
	}
	if je, ok := err.(*JobError); ok {
		return je
	}
	return &JobError{Kind: ErrInternal, Message: err.Error()}
}
