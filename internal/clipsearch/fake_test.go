// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package clipsearch

import (
	"context"
	"testing"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestFake_EmptyQueryReturnsEmptyNotError(t *testing.T) {
	f := NewFake()
	results, err := f.Search(context.Background(), "", 5)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestFake_TopKTruncates(t *testing.T) {
	f := NewFake()
	f.Results["greeting"] = []domain.ClipCandidate{{ClipID: "a"}, {ClipID: "b"}, {ClipID: "c"}}

	results, err := f.Search(context.Background(), "greeting", 2)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFake_UnknownQueryReturnsEmpty(t *testing.T) {
	f := NewFake()
	results, err := f.Search(context.Background(), "xyz zzq", 5)
	assert.NoError(t, err)
	assert.Empty(t, results)
}
