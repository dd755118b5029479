// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolCallValidate_PlayClipEndEqualsStart(t *testing.T) {
	tc := ToolCall{Kind: ToolPlayClip, StartSeconds: 5, EndSeconds: 5}
	err := tc.Validate()
	assert.Error(t, err)
}

func TestToolCallValidate_PlayClipEndBeforeStart(t *testing.T) {
	tc := ToolCall{Kind: ToolPlayClip, StartSeconds: 5, EndSeconds: 1}
	err := tc.Validate()
	assert.Error(t, err)
}

func TestToolCallValidate_PlayClipNegativeStart(t *testing.T) {
	tc := ToolCall{Kind: ToolPlayClip, StartSeconds: -1, EndSeconds: 5}
	err := tc.Validate()
	assert.Error(t, err)
}

func TestToolCallValidate_PlayClipValid(t *testing.T) {
	tc := ToolCall{Kind: ToolPlayClip, StartSeconds: 0, EndSeconds: 5}
	assert.NoError(t, tc.Validate())
}

func TestToolCallValidate_SearchClipsTopKZero(t *testing.T) {
	tc := ToolCall{Kind: ToolSearchClips, TopK: 0}
	assert.NoError(t, tc.Validate())
}

func TestSearchResult_Empty(t *testing.T) {
	r := SearchResult{Candidates: nil}
	assert.True(t, r.Empty())

	r.Candidates = []ClipCandidate{{ClipID: "c1"}}
	assert.False(t, r.Empty())
}
