// Package assembly concatenates a project's scene clips, mixes in any
// global audio tracks, and optionally overlays a logo and appends a fixed
// end clip, writing one output artifact per project.
package assembly

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/h2adev/reelforge/internal/apierr"
	"github.com/h2adev/reelforge/internal/ffmpeg"
	"github.com/h2adev/reelforge/internal/models"
)

const tailTrimS = 0.5

// Options controls one assemble invocation.
type Options struct {
	SceneIDs      []string // optional ordered subset; empty means all scenes
	Format        string   // defaults to "mp4"
	AddLogo       bool
	LogoPosition  ffmpeg.LogoPosition
	LogoPaddingPx int
	AddEndClip    bool
	SubtitlePath  string // optional ASS file to burn in
}

// Result summarizes a successful assembly.
type Result struct {
	Path             string  `json:"path"`
	AlreadyAssembled bool    `json:"already_assembled"`
	DurationS        float64 `json:"duration_s"`
	SizeBytes        int64   `json:"size_bytes"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	FPS              float64 `json:"fps"`
	SecondsTrimmed   float64 `json:"seconds_trimmed"`
}

// Assembler drives the three-pass pipeline against the external media tool.
type Assembler struct {
	storageDir string
	tool       *ffmpeg.Tool
}

// New constructs an Assembler rooted at storageDir.
func New(storageDir string, tool *ffmpeg.Tool) *Assembler {
	return &Assembler{storageDir: storageDir, tool: tool}
}

func (a *Assembler) projectDir(projectID string) string {
	return filepath.Join(a.storageDir, "projects", projectID)
}

func sanitizeTitle(title string) string {
	return strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
}

// Assemble runs the pipeline for project, returning its already-assembled
// short-circuit result or the freshly produced artifact.
func (a *Assembler) Assemble(ctx context.Context, project *models.Project, opts Options) (*Result, error) {
	if opts.Format == "" {
		opts.Format = "mp4"
	}

	projectDir := a.projectDir(project.ID.String())
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return nil, apierr.System("failed to create project directory", err.Error())
	}

	outputPath := filepath.Join(projectDir, fmt.Sprintf("%s_%s.%s", sanitizeTitle(project.Title), project.Platform, opts.Format))

	if info, ok := a.probeExisting(ctx, outputPath); ok && info.HasAudio {
		return &Result{
			Path:             outputPath,
			AlreadyAssembled: true,
			DurationS:        info.DurationS,
			SizeBytes:        info.SizeBytes,
			Width:            info.Width,
			Height:           info.Height,
			FPS:              info.FPS,
		}, nil
	}

	scenes, err := a.selectScenes(project, opts.SceneIDs)
	if err != nil {
		return nil, err
	}

	clipPaths, err := a.collectClipPaths(scenes)
	if err != nil {
		return nil, err
	}

	if opts.AddEndClip {
		if endPath, ok := a.endClipPath(ctx); ok {
			clipPaths = append(clipPaths, endPath)
		}
	}

	secondsTrimmed, err := a.runConcatPass(ctx, projectDir, clipPaths, outputPath)
	if err != nil {
		return nil, err
	}

	allTracks := a.collectAudioTracks(project)
	if len(allTracks) > 0 {
		if err := a.runAudioMixPass(ctx, projectDir, outputPath, allTracks); err != nil {
			return nil, err
		}
	}

	if opts.AddLogo {
		if logoPath, ok := a.findLogo(); ok {
			if err := a.runLogoPass(ctx, projectDir, outputPath, logoPath, opts.LogoPosition, opts.LogoPaddingPx); err != nil {
				log.Printf("[assembly] logo overlay failed for project %s: %v", project.ID, err)
			}
		} else {
			log.Printf("[assembly] logo requested but h2a.png not found in any candidate location")
		}
	}

	if opts.SubtitlePath != "" {
		if err := a.runSubtitlePass(ctx, projectDir, outputPath, opts.SubtitlePath); err != nil {
			log.Printf("[assembly] subtitle burn-in failed for project %s: %v", project.ID, err)
		}
	}

	a.cleanupLeftoverTemp(projectDir)

	info, err := a.tool.Probe(ctx, outputPath)
	if err != nil {
		return nil, err
	}

	return &Result{
		Path:           outputPath,
		DurationS:      info.DurationS,
		SizeBytes:      info.SizeBytes,
		Width:          info.Width,
		Height:         info.Height,
		FPS:            info.FPS,
		SecondsTrimmed: secondsTrimmed,
	}, nil
}

func (a *Assembler) probeExisting(ctx context.Context, path string) (ffmpeg.VideoInfo, bool) {
	if _, err := os.Stat(path); err != nil {
		return ffmpeg.VideoInfo{}, false
	}
	info, err := a.tool.Probe(ctx, path)
	if err != nil {
		return ffmpeg.VideoInfo{}, false
	}
	return info, true
}

func (a *Assembler) selectScenes(project *models.Project, sceneIDs []string) ([]*models.Scene, error) {
	scenes := project.Scenes
	if len(sceneIDs) > 0 {
		wanted := make(map[string]bool, len(sceneIDs))
		for _, id := range sceneIDs {
			wanted[id] = true
		}
		var filtered []*models.Scene
		for _, sc := range project.Scenes {
			if wanted[sc.ID.String()] {
				filtered = append(filtered, sc)
			}
		}
		scenes = filtered
	}

	sorted := make([]*models.Scene, len(scenes))
	copy(sorted, scenes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	if len(sorted) == 0 {
		return nil, apierr.Validation("no scenes to assemble", nil, "add at least one scene with a video asset before assembling", "")
	}

	var missing []string
	for _, sc := range sorted {
		if sc.VideoAsset() == nil || sc.VideoAsset().LocalPath == "" {
			missing = append(missing, fmt.Sprintf("scene %d: %s", sc.Order+1, sc.Description))
		}
	}
	if len(missing) > 0 {
		return nil, apierr.State("some scenes are missing a downloaded video asset: " + strings.Join(missing, "; "))
	}

	return sorted, nil
}

func (a *Assembler) collectClipPaths(scenes []*models.Scene) ([]string, error) {
	paths := make([]string, len(scenes))
	for i, sc := range scenes {
		paths[i] = sc.VideoAsset().LocalPath
	}
	return paths, nil
}

func (a *Assembler) endClipPath(ctx context.Context) (string, bool) {
	path := filepath.Join(a.storageDir, "assets", "logos", "h2a_end.mp4")
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	if _, err := a.tool.Probe(ctx, path); err != nil {
		log.Printf("[assembly] end clip present but unreadable, skipping: %v", err)
		return "", false
	}
	return path, true
}

// runConcatPass trims 0.5s off the start of every clip after the first
// (falling back to the original clip if a trim fails), builds a concat
// list, and stream-copies into outputPath via a temp file + atomic rename.
func (a *Assembler) runConcatPass(ctx context.Context, projectDir string, clipPaths []string, outputPath string) (float64, error) {
	if len(clipPaths) == 0 {
		return 0, apierr.Validation("no clips to concatenate", nil, "", "")
	}

	finalPaths := make([]string, len(clipPaths))
	finalPaths[0] = clipPaths[0]
	trimmed := 0

	for i := 1; i < len(clipPaths); i++ {
		trimmedPath := filepath.Join(projectDir, fmt.Sprintf(".temp_trim_%d_%d%s", os.Getpid(), i, filepath.Ext(clipPaths[i])))
		if err := a.tool.TrimTail(ctx, clipPaths[i], trimmedPath, tailTrimS); err != nil {
			log.Printf("[assembly] tail trim failed for %s, using original clip: %v", clipPaths[i], err)
			finalPaths[i] = clipPaths[i]
			continue
		}
		finalPaths[i] = trimmedPath
		trimmed++
		defer os.Remove(trimmedPath)
	}

	listPath, err := a.tool.BuildConcatListFile(projectDir, finalPaths)
	if err != nil {
		return 0, err
	}
	defer os.Remove(listPath)

	tempOutput := filepath.Join(projectDir, fmt.Sprintf(".temp_concat_%d%s", time.Now().UnixNano(), filepath.Ext(outputPath)))
	if err := a.tool.Concat(ctx, listPath, tempOutput); err != nil {
		return 0, err
	}

	if err := atomicReplace(tempOutput, outputPath); err != nil {
		return 0, err
	}

	return tailTrimS * float64(trimmed), nil
}

// trackVolume applies the per-kind default volumes, honoring an explicit
// override in [0.0, 2.0] recorded on the asset's metadata.
func trackVolume(asset *models.Asset) float64 {
	def := 0.3 // background default
	switch asset.Kind {
	case models.AssetKindSpeech:
		def = 1.0
	case models.AssetKindMusic:
		def = 0.3
	case models.AssetKindAudio:
		def = 0.7
	}
	if asset.Metadata != nil {
		if v, ok := asset.Metadata["volume"]; ok {
			if f, ok := toFloat(v); ok && f >= 0.0 && f <= 2.0 {
				return f
			}
		}
	}
	return def
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func (a *Assembler) collectAudioTracks(project *models.Project) []ffmpeg.AudioTrack {
	var tracks []ffmpeg.AudioTrack
	for _, asset := range project.GlobalAudioTracks {
		if asset.LocalPath == "" {
			continue
		}
		tracks = append(tracks, ffmpeg.AudioTrack{Path: asset.LocalPath, Volume: trackVolume(asset)})
	}
	return tracks
}

func (a *Assembler) runAudioMixPass(ctx context.Context, projectDir, outputPath string, tracks []ffmpeg.AudioTrack) error {
	info, err := a.tool.Probe(ctx, outputPath)
	if err != nil {
		return err
	}

	tempOutput := filepath.Join(projectDir, fmt.Sprintf(".temp_audio_%d%s", time.Now().UnixNano(), filepath.Ext(outputPath)))
	if err := a.tool.MixAudio(ctx, outputPath, tracks, info.HasAudio, tempOutput); err != nil {
		return err
	}
	return atomicReplace(tempOutput, outputPath)
}

func (a *Assembler) runLogoPass(ctx context.Context, projectDir, outputPath, logoPath string, position ffmpeg.LogoPosition, paddingPx int) error {
	if position == "" {
		position = ffmpeg.LogoBottomRight
	}
	tempOutput := filepath.Join(projectDir, fmt.Sprintf(".temp_logo_%d%s", time.Now().UnixNano(), filepath.Ext(outputPath)))
	if err := a.tool.OverlayLogo(ctx, outputPath, logoPath, position, paddingPx, tempOutput); err != nil {
		return err
	}
	return atomicReplace(tempOutput, outputPath)
}

func (a *Assembler) runSubtitlePass(ctx context.Context, projectDir, outputPath, assPath string) error {
	if _, err := os.Stat(assPath); err != nil {
		return apierr.System("input_missing", assPath)
	}
	tempOutput := filepath.Join(projectDir, fmt.Sprintf(".temp_subs_%d%s", time.Now().UnixNano(), filepath.Ext(outputPath)))
	if err := a.tool.BurnSubtitles(ctx, outputPath, assPath, tempOutput); err != nil {
		return err
	}
	return atomicReplace(tempOutput, outputPath)
}

// findLogo searches a fixed set of candidate locations for h2a.png: the
// storage tree's assets/logos directory, the storage root, and the working
// directory.
func (a *Assembler) findLogo() (string, bool) {
	candidates := []string{
		filepath.Join(a.storageDir, "assets", "logos", "h2a.png"),
		filepath.Join(a.storageDir, "h2a.png"),
		filepath.Join(".", "h2a.png"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, true
		}
	}
	return "", false
}

func (a *Assembler) cleanupLeftoverTemp(projectDir string) {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".temp_") {
			os.Remove(filepath.Join(projectDir, name))
		}
	}
}

// atomicReplace installs tempPath as finalPath: backs up any existing
// finalPath, renames tempPath into place, and deletes the backup. On
// rename failure the backup is restored.
func atomicReplace(tempPath, finalPath string) error {
	backupPath := finalPath + ".backup"
	hadExisting := false
	if _, err := os.Stat(finalPath); err == nil {
		if err := os.Rename(finalPath, backupPath); err != nil {
			return apierr.System("rename_failed", err.Error())
		}
		hadExisting = true
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		if hadExisting {
			os.Rename(backupPath, finalPath)
		}
		return apierr.System("rename_failed", err.Error())
	}

	if hadExisting {
		os.Remove(backupPath)
	}
	return nil
}
