// Package subtitle generates word-by-word highlighted ASS subtitle files
// from transcribed word timestamps, for optional burn-in during assembly.
package subtitle

import (
	"fmt"
	"os"
	"strings"

	"github.com/h2adev/reelforge/internal/apierr"
	"github.com/h2adev/reelforge/internal/transcribe"
)

const (
	wordsPerChunk = 4

	fontName = "Noto Sans"

	colorWhite     = "&H00FFFFFF"
	colorBlack     = "&H00000000"
	colorHighlight = "&H00CC3299"
	colorShadow    = "&H80000000"

	outlineNormal    = 6
	outlineHighlight = 16
)

// Options lets callers scale the text to the project's actual output
// canvas.
type Options struct {
	CanvasWidth      int
	CanvasHeight     int
	FontSize         int
	MarginV          int
	SilenceOffsetSec float64
}

func (o Options) withDefaults() Options {
	if o.CanvasWidth == 0 {
		o.CanvasWidth = 1080
	}
	if o.CanvasHeight == 0 {
		o.CanvasHeight = 1920
	}
	if o.FontSize == 0 {
		o.FontSize = 64
	}
	if o.MarginV == 0 {
		o.MarginV = 220
	}
	return o
}

// Generate writes a TikTok-style ASS subtitle file from word timestamps,
// chunking words into groups of four with the active word pill-highlighted.
func Generate(words []transcribe.Word, outputPath string, opts Options) error {
	if len(words) == 0 {
		return apierr.Validation("no words to generate subtitles from", nil, "transcribe the audio track before generating subtitles", "")
	}
	opts = opts.withDefaults()

	chunks := chunkWords(words, wordsPerChunk)

	var sb strings.Builder
	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", opts.CanvasWidth)
	fmt.Fprintf(&sb, "PlayResY: %d\n", opts.CanvasHeight)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb, "Style: Default,%s,%d,%s,%s,%s,%s,-1,0,0,0,100,100,2,0,1,%d,0,2,40,40,%d,1\n\n",
		fontName, opts.FontSize, colorWhite, colorWhite, colorBlack, colorShadow, outlineNormal, opts.MarginV)

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, chunk := range chunks {
		for wordIdx, word := range chunk {
			start := word.Start + opts.SilenceOffsetSec
			var end float64
			if wordIdx < len(chunk)-1 {
				end = chunk[wordIdx+1].Start + opts.SilenceOffsetSec
			} else {
				end = word.End + opts.SilenceOffsetSec
			}
			text := highlightedText(chunk, wordIdx)
			fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", formatTime(start), formatTime(end), text)
		}
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0o644); err != nil {
		return apierr.System("failed to write subtitle file", err.Error())
	}
	return nil
}

// chunkWords groups words into chunks of size chunkSize, also breaking at
// sentence-ending punctuation once a chunk has at least two words.
func chunkWords(words []transcribe.Word, chunkSize int) [][]transcribe.Word {
	var chunks [][]transcribe.Word
	var current []transcribe.Word

	for _, w := range words {
		current = append(current, w)
		isSentenceEnd := strings.ContainsAny(w.Word, ".!?")
		if len(current) >= chunkSize || (isSentenceEnd && len(current) >= 2) {
			chunks = append(chunks, current)
			current = nil
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func highlightedText(chunk []transcribe.Word, activeIdx int) string {
	var parts []string
	for i, w := range chunk {
		clean := strings.ToUpper(strings.TrimSpace(w.Word))
		if clean == "" {
			continue
		}
		if i == activeIdx {
			parts = append(parts, fmt.Sprintf("{\\3c%s\\bord%d}%s{\\r}", colorHighlight, outlineHighlight, clean))
		} else {
			parts = append(parts, clean)
		}
	}
	return strings.Join(parts, " ")
}

func formatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	centiseconds := int((seconds - float64(int(seconds))) * 100)
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centiseconds)
}
