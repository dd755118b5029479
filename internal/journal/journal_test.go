// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package journal

import (
	"testing"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestJournal_AppendAssignsMonotonicSeq(t *testing.T) {
	j := New(10)
	a := j.Append(domain.StatusObservation{Kind: domain.ObsUserUtterance, Text: "hello"})
	b := j.Append(domain.StatusObservation{Kind: domain.ObsLLMReasoning, Text: "thinking"})

	assert.EqualValues(t, 1, a.Seq)
	assert.EqualValues(t, 2, b.Seq)
}

func TestJournal_Since_ReturnsOnlyNewerEntries(t *testing.T) {
	j := New(10)
	j.Append(domain.StatusObservation{Kind: domain.ObsUserUtterance})
	j.Append(domain.StatusObservation{Kind: domain.ObsLLMReasoning})
	j.Append(domain.StatusObservation{Kind: domain.ObsSearchAttempt})

	entries := j.Since(1)
	assert.Len(t, entries, 2)
	assert.EqualValues(t, 2, entries[0].Seq)
	assert.EqualValues(t, 3, entries[1].Seq)
}

func TestJournal_RetentionEvictsAndInsertsGap(t *testing.T) {
	j := New(3)
	for i := 0; i < 5; i++ {
		j.Append(domain.StatusObservation{Kind: domain.ObsProcessEvent})
	}

	entries := j.Since(0)
	assert.True(t, entries[0].Gap)
	assert.Equal(t, 2, entries[0].GapCount)

	// remaining entries are seq 3,4,5 and are contiguous after the marker.
	assert.EqualValues(t, 3, entries[1].Seq)
	assert.EqualValues(t, 4, entries[2].Seq)
	assert.EqualValues(t, 5, entries[3].Seq)
}

func TestJournal_Cursor_EmptyJournalIsZero(t *testing.T) {
	j := New(10)
	assert.EqualValues(t, 0, j.Cursor())
}

func TestJournal_Cursor_TracksLastAppended(t *testing.T) {
	j := New(10)
	j.Append(domain.StatusObservation{Kind: domain.ObsUserUtterance})
	j.Append(domain.StatusObservation{Kind: domain.ObsUserUtterance})
	assert.EqualValues(t, 2, j.Cursor())
}
