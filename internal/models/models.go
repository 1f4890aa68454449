// Package models defines the entities shared by the project store, the job
// queue, and the assembly pipeline: Project, Scene, Asset and Job, plus the
// enums that constrain their fields.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus is the caller-driven lifecycle stage of a Project. It is
// advisory: nothing in the project store or job queue derives it
// automatically, and the assembly idempotence short-circuit never touches it.
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusRendering  ProjectStatus = "rendering"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusFailed     ProjectStatus = "failed"
)

// AssetKind is the type of a produced or uploaded artifact.
type AssetKind string

const (
	AssetKindImage    AssetKind = "image"
	AssetKindVideo    AssetKind = "video"
	AssetKindAudio    AssetKind = "audio"
	AssetKindMusic    AssetKind = "music"
	AssetKindSpeech   AssetKind = "speech"
	AssetKindSubtitle AssetKind = "subtitle"
)

// AssetSource records how an Asset came to exist.
type AssetSource string

const (
	AssetSourceGenerated AssetSource = "generated"
	AssetSourceUploaded  AssetSource = "uploaded"
	AssetSourceStock     AssetSource = "stock"
	AssetSourceTemplate  AssetSource = "template"
)

// TaskKind selects which post-completion hook a job's result is routed to.
type TaskKind string

const (
	TaskKindVideo  TaskKind = "video"
	TaskKindImage  TaskKind = "image"
	TaskKindAudio  TaskKind = "audio"
	TaskKindMusic  TaskKind = "music"
	TaskKindSpeech TaskKind = "speech"
)

// JobStatus is the job queue's lifecycle state. Transitions are monotonic:
// queued -> in_progress -> {completed, failed, cancelled}, each entered at
// most once.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Metadata is a free-form key/value bag attached to Assets, Jobs and
// generation arguments. It round-trips through JSON untouched.
type Metadata map[string]interface{}

// Float reads a numeric field, returning fallback if the key is absent or
// not a number. JSON-decoded metadata always carries numbers as float64,
// but values set directly in Go code may be int.
func (m Metadata) Float(key string, fallback float64) float64 {
	if m == nil {
		return fallback
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

// Asset is a concrete produced or uploaded artifact: an image, a video clip,
// a speech/music/audio track, or a subtitle file.
type Asset struct {
	ID              uuid.UUID   `json:"id"`
	Kind            AssetKind   `json:"kind"`
	Source          AssetSource `json:"source"`
	RemoteURL       string      `json:"remote_url,omitempty"`
	LocalPath       string      `json:"local_path,omitempty"`
	Cost            float64     `json:"cost"`
	Metadata        Metadata    `json:"metadata,omitempty"`
	GenerationParams Metadata   `json:"generation_params,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Scene is an ordered segment of a project's timeline.
type Scene struct {
	ID            uuid.UUID   `json:"id"`
	Order         int         `json:"order"`
	DurationS     float64     `json:"duration_s"`
	Description   string      `json:"description"`
	Assets        []*Asset    `json:"assets"`
	AudioTrackIDs []uuid.UUID `json:"audio_track_ids,omitempty"`
}

// VideoAsset returns the scene's single video asset, if any.
func (s *Scene) VideoAsset() *Asset {
	for _, a := range s.Assets {
		if a.Kind == AssetKindVideo {
			return a
		}
	}
	return nil
}

// Project is the top-level unit of work: a title, a target platform, an
// ordered list of scenes, and a set of project-global audio tracks.
type Project struct {
	ID                uuid.UUID     `json:"id"`
	Title             string        `json:"title"`
	Platform          string        `json:"platform"`
	AspectRatio       string        `json:"aspect_ratio"`
	TargetDurationS   *float64      `json:"target_duration_s,omitempty"`
	Script            string        `json:"script,omitempty"`
	Status            ProjectStatus `json:"status"`
	Scenes            []*Scene      `json:"scenes"`
	GlobalAudioTracks []*Asset      `json:"global_audio_tracks"`
	TotalCost         float64       `json:"total_cost"`
	ActualDurationS   float64       `json:"actual_duration_s"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// LogEntry is one line of provider-reported progress, appended to a Job's
// log as events are drained from the provider event stream.
type LogEntry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Job is the job queue's unit of work: one remote generation request and its
// lifecycle, independent of the Project/Scene/Asset graph it may feed into.
type Job struct {
	ID              uuid.UUID  `json:"id"`
	RemoteRequestID string     `json:"remote_request_id,omitempty"`
	ProjectID       *uuid.UUID `json:"project_id,omitempty"`
	SceneID         *uuid.UUID `json:"scene_id,omitempty"`
	TaskKind        TaskKind   `json:"task_kind"`
	ModelID         string     `json:"model_id"`
	Arguments       Metadata   `json:"arguments"`
	Status          JobStatus  `json:"status"`
	QueuePosition   *int       `json:"queue_position,omitempty"`
	ProgressPct     *float64   `json:"progress_pct,omitempty"`
	LogEntries      []LogEntry `json:"log_entries"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	Result          Metadata   `json:"result,omitempty"`
	Metadata        Metadata   `json:"metadata,omitempty"`
}

// ElapsedS returns the time since creation, or total lifetime if terminal.
func (j *Job) ElapsedS() float64 {
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(j.CreatedAt).Seconds()
	}
	return time.Since(j.CreatedAt).Seconds()
}

// ProcessingS returns the time between start and completion, or the time
// since start while the job is still running; nil before started_at is set.
func (j *Job) ProcessingS() *float64 {
	if j.StartedAt == nil {
		return nil
	}
	var d float64
	if j.CompletedAt != nil {
		d = j.CompletedAt.Sub(*j.StartedAt).Seconds()
	} else {
		d = time.Since(*j.StartedAt).Seconds()
	}
	return &d
}

// IsTerminal reports whether status is one from which no further
// transition is possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// UploadCacheEntry is one mapping from a content hash to its remote URL.
type UploadCacheEntry struct {
	SHA256     string    `json:"sha256"`
	URL        string    `json:"url"`
	InsertedAt time.Time `json:"inserted_at"`
}
