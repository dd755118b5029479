// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package llm

// toolSearchClipsSchema and toolPlayClipSchema are the two closed tool
// declarations from spec §3, expressed as JSON Schema the way both the
// OpenAI and Anthropic SDKs expect tool parameters.
var toolSearchClipsSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"query":  map[string]interface{}{"type": "string"},
		"top_k":  map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 20},
	},
	"required": []string{"query", "top_k"},
}

var toolPlayClipSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"clip_id":       map[string]interface{}{"type": "string"},
		"start_seconds": map[string]interface{}{"type": "number", "minimum": 0},
		"end_seconds":   map[string]interface{}{"type": "number"},
	},
	"required": []string{"clip_id", "start_seconds", "end_seconds"},
}

const (
	toolNameSearchClips = "search_clips"
	toolNamePlayClip    = "play_clip"
)
