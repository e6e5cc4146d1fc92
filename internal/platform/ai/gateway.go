// Package ai wraps the hosted generative-AI service behind a single
// structured-output call. Every generator in the system goes through
// Gateway.RequestStructured; nothing else talks to the provider.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// jsonDirective is appended to every instruction. JSON mode on
// OpenAI-compatible endpoints requires the word "JSON" in the prompt.
const jsonDirective = "Make sure the response is a single valid JSON object."

// Request is one prompt submission to the provider.
type Request struct {
	System      string
	User        string
	Temperature float32
	JSON        bool
}

// Completer is the provider capability: submit a prompt, get the raw reply text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Requester is what the generators depend on. On failure the returned error
// is always an *Error.
type Requester interface {
	RequestStructured(ctx context.Context, role, instruction string, temperature float32, out any) error
}

// Observer receives the outcome of every request: "ok" or the failure Kind.
type Observer interface {
	ObserveAIRequest(outcome string, latency time.Duration)
}

// Gateway builds role+instruction prompts, requests JSON output and decodes it.
// It does not retry.
type Gateway struct {
	provider Completer
	logger   zerolog.Logger
	observer Observer
}

// NewGateway returns a Gateway over provider.
func NewGateway(provider Completer, logger zerolog.Logger) *Gateway {
	return &Gateway{
		provider: provider,
		logger:   logger.With().Str("component", "ai_gateway").Logger(),
	}
}

// WithObserver attaches o to every later request.
func (g *Gateway) WithObserver(o Observer) *Gateway {
	g.observer = o
	return g
}

func (g *Gateway) observe(outcome string, start time.Time) {
	if g.observer != nil {
		g.observer.ObserveAIRequest(outcome, time.Since(start))
	}
}

// RequestStructured sends role as the system preamble and instruction as the
// user turn, then decodes the JSON object reply into out. Prompt and reply
// contents are never logged.
func (g *Gateway) RequestStructured(ctx context.Context, role, instruction string, temperature float32, out any) error {
	if out == nil {
		return NewValidationError("ai: output target is nil")
	}
	if strings.TrimSpace(instruction) == "" {
		return NewValidationError("ai: instruction is empty")
	}

	start := time.Now()
	raw, err := g.provider.Complete(ctx, Request{
		System:      role,
		User:        instruction + "\n\n" + jsonDirective,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		aiErr := Classify(err)
		evt := g.logger.Error()
		if aiErr.Kind == KindAuth {
			evt = g.logger.Warn().Str("hint", aiErr.Guidance())
		}
		evt.Str("kind", string(aiErr.Kind)).
			Dur("latency", time.Since(start)).
			Msg("ai request failed")
		g.observe(string(aiErr.Kind), start)
		return aiErr
	}

	if err := decodeObject(raw, out); err != nil {
		g.logger.Error().
			Str("kind", string(KindParse)).
			Int("reply_bytes", len(raw)).
			Dur("latency", time.Since(start)).
			Msg("ai reply is not valid JSON")
		g.observe(string(KindParse), start)
		return &Error{Kind: KindParse, Message: fmt.Sprintf("invalid JSON from AI provider: %v", err), Err: err}
	}

	g.logger.Debug().
		Float32("temperature", temperature).
		Dur("latency", time.Since(start)).
		Msg("ai request completed")
	g.observe("ok", start)
	return nil
}

// decodeObject accepts a bare JSON object, optionally wrapped in a markdown
// code fence, and decodes it into out.
func decodeObject(raw string, out any) error {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}
	if body == "" {
		return errors.New("empty reply")
	}
	if body[0] != '{' {
		return errors.New("reply is not a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(out); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
