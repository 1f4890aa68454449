// Package hooks wires the job queue's post-completion callbacks to the
// project store and asset storage. The queue itself never imports either
// service; the composition root calls Register at startup, closing the
// tool/service cycle the other way around.
package hooks

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/h2adev/reelforge/internal/assetstore"
	"github.com/h2adev/reelforge/internal/catalog"
	"github.com/h2adev/reelforge/internal/models"
	"github.com/h2adev/reelforge/internal/project"
	"github.com/h2adev/reelforge/internal/provider"
	"github.com/h2adev/reelforge/internal/queue"
	"github.com/h2adev/reelforge/internal/subtitle"
	"github.com/h2adev/reelforge/internal/transcribe"
)

// Hooks holds the services a completion hook mutates. Transcriber is
// optional; when present, completed speech jobs are enriched with a
// word-timed subtitle asset.
type Hooks struct {
	Projects    *project.Store
	Assets      *assetstore.Store
	Transcriber *transcribe.Client
}

// Register binds one hook per task kind on the queue.
func Register(q *queue.Queue, h *Hooks) {
	q.RegisterHook(models.TaskKindVideo, h.onComplete(models.AssetKindVideo))
	q.RegisterHook(models.TaskKindImage, h.onComplete(models.AssetKindImage))
	q.RegisterHook(models.TaskKindAudio, h.onComplete(models.AssetKindAudio))
	q.RegisterHook(models.TaskKindMusic, h.onComplete(models.AssetKindMusic))
	q.RegisterHook(models.TaskKindSpeech, h.onSpeechComplete)
}

// onComplete builds the standard hook: construct an Asset from the job's
// result URL and queued metadata, download it, and attach it to the job's
// scene (video/image) or to the project's global audio tracks (music).
// Errors here are returned to the queue, which logs and swallows them —
// the job stays completed either way.
func (h *Hooks) onComplete(kind models.AssetKind) queue.HookFunc {
	return func(ctx context.Context, job *models.Job, resultURL string) error {
		_, err := h.materialize(ctx, job, kind, resultURL)
		return err
	}
}

// onSpeechComplete is the speech hook plus the optional transcription
// enrichment: the downloaded track is transcribed via Whisper and rendered
// into an ASS subtitle asset attached to the same scene. Enrichment is
// best-effort; its failure never removes the speech asset.
func (h *Hooks) onSpeechComplete(ctx context.Context, job *models.Job, resultURL string) error {
	asset, err := h.materialize(ctx, job, models.AssetKindSpeech, resultURL)
	if err != nil {
		return err
	}
	if h.Transcriber == nil || job.ProjectID == nil || job.SceneID == nil || asset.LocalPath == "" {
		return nil
	}
	if err := h.enrichWithSubtitles(ctx, job, asset); err != nil {
		log.Printf("[hooks] subtitle enrichment for job %s skipped: %v", job.ID, err)
	}
	return nil
}

func (h *Hooks) materialize(ctx context.Context, job *models.Job, kind models.AssetKind, resultURL string) (*models.Asset, error) {
	if resultURL == "" {
		return nil, fmt.Errorf("job %s completed without a result URL", job.ID)
	}

	asset := &models.Asset{
		ID:               uuid.New(),
		Kind:             kind,
		Source:           models.AssetSourceGenerated,
		RemoteURL:        resultURL,
		Cost:             jobCost(job),
		Metadata:         assetMetadata(job),
		GenerationParams: job.Arguments,
		CreatedAt:        job.CreatedAt,
	}

	if job.ProjectID == nil {
		log.Printf("[hooks] job %s has no project, asset %s left unattached", job.ID, asset.ID)
		return asset, nil
	}

	localPath, err := h.Assets.Download(ctx, *job.ProjectID, asset.ID, kind, resultURL)
	if err != nil {
		log.Printf("[hooks] download failed for job %s asset %s: %v", job.ID, asset.ID, err)
	} else {
		asset.LocalPath = localPath
	}

	// Music and audio with no scene become project-global tracks; a video
	// or image job with no scene has nowhere to land.
	if job.SceneID == nil && kind != models.AssetKindMusic && kind != models.AssetKindAudio && kind != models.AssetKindSpeech {
		log.Printf("[hooks] job %s (%s) has no scene, asset %s left unattached", job.ID, kind, asset.ID)
		return asset, nil
	}
	if err := h.Projects.AttachAsset(*job.ProjectID, job.SceneID, asset); err != nil {
		return nil, fmt.Errorf("attach asset for job %s: %w", job.ID, err)
	}
	return asset, nil
}

func (h *Hooks) enrichWithSubtitles(ctx context.Context, job *models.Job, speech *models.Asset) error {
	audioData, err := os.ReadFile(speech.LocalPath)
	if err != nil {
		return err
	}

	language, _ := job.Metadata["language"].(string)
	words, err := h.Transcriber.Transcribe(ctx, audioData, language)
	if err != nil {
		return err
	}

	subID := uuid.New()
	subPath := filepath.Join(filepath.Dir(speech.LocalPath), subID.String()+".ass")
	if err := subtitle.Generate(words, subPath, subtitle.Options{}); err != nil {
		return err
	}

	sub := &models.Asset{
		ID:        subID,
		Kind:      models.AssetKindSubtitle,
		Source:    models.AssetSourceGenerated,
		LocalPath: subPath,
		Metadata:  models.Metadata{"speech_asset_id": speech.ID.String(), "word_count": len(words)},
		CreatedAt: speech.CreatedAt,
	}
	if err := h.Projects.AttachAsset(*job.ProjectID, job.SceneID, sub); err != nil {
		return err
	}
	log.Printf("[hooks] subtitle asset %s generated for speech job %s (%d words)", subID, job.ID, len(words))
	return nil
}

// jobCost reads the cost queued on the job's metadata, falling back to the
// model's registered cost formula when the submitter didn't price it.
func jobCost(job *models.Job) float64 {
	if c := job.Metadata.Float("cost", -1); c >= 0 {
		return c
	}
	if spec, err := catalog.Lookup(job.ModelID); err == nil && spec.CostFormula != nil {
		return spec.CostFormula(job.Arguments)
	}
	return 0
}

// assetMetadata carries the queued metadata fields through to the Asset,
// plus the model id and the extracted duration.
func assetMetadata(job *models.Job) models.Metadata {
	md := models.Metadata{"model": job.ModelID}
	for _, key := range []string{"cost", "source_image", "motion_prompt", "prompt", "duration_s", "aspect_ratio", "language"} {
		if v, ok := job.Metadata[key]; ok {
			md[key] = v
		}
	}
	if _, ok := md["duration_s"]; !ok {
		if d, ok := job.Arguments["duration_s"]; ok {
			md["duration_s"] = d
		}
	}
	if job.Result != nil {
		if ms, ok := provider.ExtractDurationMs(job.Result); ok {
			md["duration_s"] = ms / 1000
		}
	}
	return md
}
