// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package llm implements the tool-calling language model collaborator
// consumed by the Conversation Pipeline (C4). Generalized from the
// teacher's websocket_executor.go (conversation history accumulation,
// Initialize/Execute/Close lifecycle) from a streaming chat executor to a
// request/response tool-calling adapter, with provider dispatch grounded on
// pkg/clients/integration/integration_client.go's "switch providerName"
// pattern.
package llm

import (
	"context"

	"github.com/rapidaai/clipcast/internal/domain"
)

// Turn is one entry in the bounded conversation context (spec §4.4 step 3).
type Turn struct {
	Role    string // "user", "assistant", "tool"
	Content string

	// ToolCallID/ToolName are set on tool-result turns fed back to the LLM.
	ToolCallID string
	ToolName   string
}

// Response is one LLM turn's output: optional free-text content (never
// forwarded to the edge, per spec §4.4 step 6) plus zero or more tool
// calls in emission order.
type Response struct {
	Content   string
	ToolCalls []domain.ToolCall
}

// Model abstracts the tool-calling language model (spec §4.4). Provider
// adapters (OpenAI, Anthropic) implement this against a bounded,
// already-truncated Turn slice; truncation itself lives in Context below so
// every adapter shares the same accounting.
type Model interface {
	// Complete sends turns plus the two fixed tool declarations
	// (SearchClips, PlayClip) and returns the model's next turn.
	Complete(ctx context.Context, turns []Turn) (Response, error)
}

// New dispatches to a concrete Model by provider name, mirroring the
// teacher's provider-keyed switch in integration_client.go.
func New(log Logger, provider, apiKey, modelID string) (Model, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicModel(log, apiKey, modelID), nil
	case "openai", "":
		return NewOpenAIModel(log, apiKey, modelID), nil
	default:
		return NewOpenAIModel(log, apiKey, modelID), nil
	}
}

// Logger is the narrow logging surface this package needs, satisfied by
// commons.Logger without importing pkg/commons directly into the provider
// files (keeps them focused on the SDK call).
type Logger interface {
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
}
