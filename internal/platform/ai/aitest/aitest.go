// Package aitest provides a scripted ai.Completer for tests.
package aitest

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ehr/ehr-agent/internal/platform/ai"
)

// Reply is one scripted provider answer: either Body or Err.
type Reply struct {
	Body string
	Err  error
}

// Completer answers calls from a queue of replies and records every request.
// Running past the end of the script returns an error.
type Completer struct {
	mu       sync.Mutex
	replies  []Reply
	requests []ai.Request
}

// NewCompleter returns a Completer that answers with replies in order.
func NewCompleter(replies ...Reply) *Completer {
	return &Completer{replies: replies}
}

// JSON is shorthand for a successful reply.
func JSON(body string) Reply {
	return Reply{Body: body}
}

// Fail is shorthand for a provider error reply.
func Fail(msg string) Reply {
	return Reply{Err: errors.New(msg)}
}

func (c *Completer) Complete(_ context.Context, req ai.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.replies) == 0 {
		return "", errors.New("aitest: no scripted reply left")
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.Body, r.Err
}

// Calls returns how many requests were made.
func (c *Completer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Requests returns a copy of every recorded request.
func (c *Completer) Requests() []ai.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ai.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Gateway wires c into a real ai.Gateway with logging disabled.
func Gateway(c *Completer) *ai.Gateway {
	return ai.NewGateway(c, zerolog.Nop())
}
