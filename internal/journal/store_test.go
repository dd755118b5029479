// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rapidaai/clipcast/internal/domain"
)

func TestStore_GetOrCreateReturnsSameJournal(t *testing.T) {
	s := NewStore(10)
	a := s.GetOrCreate("sess-1")
	a.Append(domain.StatusObservation{SessionID: "sess-1", Kind: domain.ObsUserUtterance})

	b := s.GetOrCreate("sess-1")
	assert.Len(t, b.Since(0), 1)
}

func TestStore_GetMissingReportsNotFound(t *testing.T) {
	s := NewStore(10)
	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestStore_DeleteRemovesJournal(t *testing.T) {
	s := NewStore(10)
	s.GetOrCreate("sess-1")
	s.Delete("sess-1")

	_, ok := s.Get("sess-1")
	assert.False(t, ok)
}
