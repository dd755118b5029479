// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package domain

// ToolCallKind discriminates the closed set of tool calls the LLM may emit.
type ToolCallKind string

const (
	ToolSearchClips ToolCallKind = "search_clips"
	ToolPlayClip    ToolCallKind = "play_clip"
)

// ToolCall is an LLM-emitted request, scoped to one LLM turn by CallID. The
// pipeline guarantees exactly one result record per CallID.
type ToolCall struct {
	CallID string
	Kind   ToolCallKind

	// SearchClips arguments.
	Query string
	TopK  int

	// PlayClip arguments.
	ClipID       string
	StartSeconds float64
	EndSeconds   float64
}

// Validate checks the closed-variant argument constraints from the data
// model: top_k in [0,20] for SearchClips (0 is accepted and is not an
// error), end > start and start >= 0 for PlayClip. It returns a non-nil
// error describing the first violation.
func (t ToolCall) Validate() error {
	switch t.Kind {
	case ToolSearchClips:
		if t.TopK < 0 || t.TopK > 20 {
			return errInvalidTopK
		}
	case ToolPlayClip:
		if t.StartSeconds < 0 {
			return errNegativeStart
		}
		if t.EndSeconds <= t.StartSeconds {
			return errEndBeforeStart
		}
	}
	return nil
}

// SearchResult is the tool result fed back to the LLM for a SearchClips
// call. Results are never appended to the journal as bot dialogue.
type SearchResult struct {
	CallID     string
	Query      string
	Candidates []ClipCandidate
	Reason     string // set when Candidates is empty
}

// Empty reports whether the search produced zero candidates.
func (r SearchResult) Empty() bool {
	return len(r.Candidates) == 0
}
