// Package ffmpeg wraps the external media tool (ffmpeg/ffprobe or an
// equivalent discovered per settings) with the handful of subcommands the
// assembly pipeline needs: probing, tail-trimming, concatenation, audio
// mixing, and logo overlay. Every invocation shells out via os/exec.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/h2adev/reelforge/internal/apierr"
)

// Tool invokes the external media tool discovered at startup.
type Tool struct {
	mediaPath string
	probePath string
}

// New constructs a Tool bound to the settings-resolved binary paths.
func New(mediaPath, probePath string) *Tool {
	return &Tool{mediaPath: mediaPath, probePath: probePath}
}

// VideoInfo is the probe result the assembly pipeline branches on.
type VideoInfo struct {
	DurationS   float64
	SizeBytes   int64
	BitrateKbps int
	Width       int
	Height      int
	FPS         float64
	Codec       string
	HasAudio    bool
	AudioCodec  string
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// Probe reads container/stream metadata. Returns apierr.System with
// kind "probe_failed" semantics on any tool or parse failure.
func (t *Tool) Probe(ctx context.Context, path string) (VideoInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return VideoInfo{}, apierr.System("input_missing", path)
	}

	args := []string{
		"-v", "error",
		"-show_entries", "stream=codec_type,codec_name,width,height,r_frame_rate:format=duration,size,bit_rate",
		"-of", "json",
		path,
	}
	cmd := exec.CommandContext(ctx, t.probePath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return VideoInfo{}, apierr.System("probe_failed", err.Error())
	}

	var parsed probeOutput
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		return VideoInfo{}, apierr.System("probe_failed", "could not parse probe output: "+err.Error())
	}

	info := VideoInfo{}
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		info.DurationS = d
	}
	if sz, err := strconv.ParseInt(parsed.Format.Size, 10, 64); err == nil {
		info.SizeBytes = sz
	}
	if br, err := strconv.Atoi(parsed.Format.BitRate); err == nil {
		info.BitrateKbps = br / 1000
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			info.Width = s.Width
			info.Height = s.Height
			info.Codec = s.CodecName
			info.FPS = parseFrameRate(s.RFrameRate)
		case "audio":
			info.HasAudio = true
			info.AudioCodec = s.CodecName
		}
	}

	return info, nil
}

func parseFrameRate(raw string) float64 {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// TrimTail produces a stream-copied clip skipping the initial skipS seconds.
// If the trim itself fails the caller should fall back to using the
// original clip (the concat pass, not this function, decides that).
func (t *Tool) TrimTail(ctx context.Context, inputPath, outputPath string, skipS float64) error {
	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", skipS),
		"-i", inputPath,
		"-c", "copy",
		outputPath,
	}
	return t.run(ctx, "pass_failed{concat.trim}", args)
}

// BuildConcatListFile writes an ffmpeg concat-demuxer list file referencing
// paths in order, returning the list file's path.
func (t *Tool) BuildConcatListFile(tempDir string, paths []string) (string, error) {
	listPath := filepath.Join(tempDir, fmt.Sprintf("concat_list_%d.txt", os.Getpid()))
	f, err := os.Create(listPath)
	if err != nil {
		return "", apierr.System("failed to create concat list", err.Error())
	}
	defer f.Close()
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		fmt.Fprintf(f, "file '%s'\n", strings.ReplaceAll(abs, "'", "'\\''"))
	}
	return listPath, nil
}

// Concat stream-copies a concat-list file into a single output.
func (t *Tool) Concat(ctx context.Context, listPath, outputPath string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
	return t.run(ctx, "pass_failed{concat}", args)
}

// AudioTrack is one input to the mix pass: a local file and its volume in
// [0.0, 2.0].
type AudioTrack struct {
	Path   string
	Volume float64
}

// MixAudio builds the amix filter graph for the mix pass: per-track
// volume, equal-weight mixing with dropout_transition=0, optionally
// preserving the input video's own embedded audio as an extra mix input.
// Video is stream-copied; the mixed audio is re-encoded to AAC 192kbps.
func (t *Tool) MixAudio(ctx context.Context, videoPath string, tracks []AudioTrack, keepVideoAudio bool, outputPath string) error {
	args := []string{"-y", "-i", videoPath}
	for _, tr := range tracks {
		args = append(args, "-i", tr.Path)
	}

	var labels []string
	var filters []string

	inputIdx := 1
	if keepVideoAudio {
		filters = append(filters, "[0:a]volume=1.0[a0]")
		labels = append(labels, "[a0]")
	}
	for i, tr := range tracks {
		label := fmt.Sprintf("[t%d]", i)
		filters = append(filters, fmt.Sprintf("[%d:a]volume=%.3f%s", inputIdx+i, tr.Volume, label))
		labels = append(labels, label)
	}

	filterComplex := strings.Join(filters, ";") +
		fmt.Sprintf(";%samix=inputs=%d:duration=longest:dropout_transition=0[aout]", strings.Join(labels, ""), len(labels))

	args = append(args,
		"-filter_complex", filterComplex,
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		outputPath,
	)

	return t.run(ctx, "pass_failed{audio_mix}", args)
}

// LogoPosition is one of the four supported corners.
type LogoPosition string

const (
	LogoBottomRight LogoPosition = "br"
	LogoBottomLeft  LogoPosition = "bl"
	LogoTopRight    LogoPosition = "tr"
	LogoTopLeft     LogoPosition = "tl"
)

// OverlayLogo composes logoPath over videoPath at the given corner with
// paddingPx of margin, re-encoding video (overlay cannot be a stream copy).
func (t *Tool) OverlayLogo(ctx context.Context, videoPath, logoPath string, position LogoPosition, paddingPx int, outputPath string) error {
	var x, y string
	switch position {
	case LogoBottomLeft:
		x, y = fmt.Sprintf("%d", paddingPx), fmt.Sprintf("main_h-overlay_h-%d", paddingPx)
	case LogoTopRight:
		x, y = fmt.Sprintf("main_w-overlay_w-%d", paddingPx), fmt.Sprintf("%d", paddingPx)
	case LogoTopLeft:
		x, y = fmt.Sprintf("%d", paddingPx), fmt.Sprintf("%d", paddingPx)
	default: // LogoBottomRight
		x, y = fmt.Sprintf("main_w-overlay_w-%d", paddingPx), fmt.Sprintf("main_h-overlay_h-%d", paddingPx)
	}

	args := []string{
		"-y",
		"-i", videoPath,
		"-i", logoPath,
		"-filter_complex", fmt.Sprintf("overlay=%s:%s", x, y),
		"-c:a", "copy",
		outputPath,
	}
	return t.run(ctx, "pass_failed{logo_overlay}", args)
}

// BurnSubtitles renders an ASS subtitle file into the video stream,
// copying audio. Re-encodes video (subtitle burn-in cannot stream-copy).
func (t *Tool) BurnSubtitles(ctx context.Context, videoPath, assPath, outputPath string) error {
	escaped := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`).Replace(assPath)
	args := []string{
		"-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf("ass='%s'", escaped),
		"-c:a", "copy",
		outputPath,
	}
	return t.run(ctx, "pass_failed{subtitle_burn}", args)
}

func (t *Tool) run(ctx context.Context, passLabel string, args []string) error {
	cmd := exec.CommandContext(ctx, t.mediaPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return apierr.System(passLabel, fmt.Sprintf("exit %d: %s", code, truncate(stderr.String(), 400)))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
