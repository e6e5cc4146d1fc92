// Package speech captures consultation audio and turns it into text.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber turns one audio clip into text. name is the clip's file name;
// its extension tells the service the audio format.
type Transcriber interface {
	Transcribe(ctx context.Context, name string, audio io.Reader) (string, error)
}

// WhisperTranscriber uses the OpenAI-compatible audio transcription API.
type WhisperTranscriber struct {
	client   *openai.Client
	model    string
	language string
}

// NewWhisperTranscriber returns a transcriber. An empty model selects whisper-1.
func NewWhisperTranscriber(client *openai.Client, model, language string) *WhisperTranscriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{client: client, model: model, language: language}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, name string, audio io.Reader) (string, error) {
	if audio == nil {
		return "", errors.New("speech: audio is nil")
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: name,
		Reader:   audio,
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", name, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
