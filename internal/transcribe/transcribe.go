// Package transcribe wraps Whisper word-level transcription, the input the
// subtitle generator needs to time its chunks. Kept narrowly scoped to this
// one call.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/h2adev/reelforge/internal/apierr"
)

// Word is a single transcribed word with its Whisper-reported timing.
type Word struct {
	Word  string
	Start float64
	End   float64
}

// Client transcribes audio via the OpenAI Whisper API.
type Client struct {
	openai *openai.Client
}

// New constructs a transcription client from an OpenAI API key.
func New(apiKey string) *Client {
	return &Client{openai: openai.NewClient(apiKey)}
}

// Transcribe sends raw audio bytes to Whisper and returns word-level
// timestamps. language defaults to "en" when empty.
func (c *Client) Transcribe(ctx context.Context, audioData []byte, language string) ([]Word, error) {
	if language == "" {
		language = "en"
	}

	resp, err := c.openai.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audioData),
		FilePath: "audio.mp3",
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: language,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, apierr.API("whisper transcription failed: "+err.Error(), apierr.SubClassDownstreamTransient, true)
	}

	if len(resp.Words) == 0 {
		return nil, apierr.System("whisper returned no word timestamps", fmt.Sprintf("text=%q", resp.Text))
	}

	words := make([]Word, len(resp.Words))
	for i, w := range resp.Words {
		words[i] = Word{Word: strings.TrimSpace(w.Word), Start: w.Start, End: w.End}
	}
	return words, nil
}
