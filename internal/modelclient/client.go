// Package modelclient talks to language-model backends. Each purpose (chat, translation,
// routing) has an ordered list of candidates; calls are retried with a per-attempt timeout and
// fail over to the next candidate, ending with a deterministic offline responder.
package modelclient

import (
	"context"
	"time"
)

type Purpose string

const (
	PurposeChat     Purpose = "chat"
	PurposeText2SQL Purpose = "text2sql"
	PurposeRouter   Purpose = "router"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Client completes a conversation and returns the assistant reply text.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type ClientFunc func(ctx context.Context, messages []Message) (string, error)

func (f ClientFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// Candidate is one backend and model pairing. Factory is called at most once per candidate slot.
type Candidate struct {
	Provider string
	Model    string
	Factory  func() (Client, error)
}

// Metrics receives latency, error and fallback events from the model client.
type Metrics interface {
	ObserveModelLatency(purpose Purpose, provider, model string, elapsed time.Duration)
	IncrementModelError(purpose Purpose, provider string)
	IncrementFallback(from, to, reason string)
}

type NopMetrics struct{}

func (NopMetrics) ObserveModelLatency(Purpose, string, string, time.Duration) {}
func (NopMetrics) IncrementModelError(Purpose, string)                        {}
func (NopMetrics) IncrementFallback(string, string, string)                   {}
