// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package clipsearch implements the Clip Search Client (C3): semantic
// search over the clip library, consumed by the Conversation Pipeline's
// SearchClips tool call. Grounded on the teacher's OpenSearch wiring in
// router/assistant.go and the MCPCaller placeholder interface in
// internal/agent/tool/mcp/caller.go, generalized from a generic tool-caller
// registry into a single-purpose Search client.
package clipsearch

import (
	"context"

	"github.com/rapidaai/clipcast/internal/domain"
)

// Client abstracts the external semantic clip search backend (spec §4.3).
type Client interface {
	// Search returns candidates ranked by descending score. An empty query
	// deterministically returns an empty slice, never an error.
	Search(ctx context.Context, query string, topK int) ([]domain.ClipCandidate, error)
}
