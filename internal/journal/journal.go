// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package journal implements the Status Journal (C8): a per-session,
// append-only, bounded sequence of observations with a monotonic cursor.
// No pack dependency models a bounded ring buffer; this is intentionally a
// small, inspectable stdlib-only data structure.
package journal

import (
	"sync"

	"github.com/rapidaai/clipcast/internal/domain"
)

// Journal holds the bounded history of observations for one session.
type Journal struct {
	mu        sync.Mutex
	entries   []domain.StatusObservation
	retention int
	nextSeq   uint64
	dropped   int
}

// New builds a Journal retaining at most retention entries; older entries
// are evicted and replaced by a single synthetic Gap marker.
func New(retention int) *Journal {
	if retention <= 0 {
		retention = 1000
	}
	return &Journal{
		entries:   make([]domain.StatusObservation, 0, retention),
		retention: retention,
		nextSeq:   1,
	}
}

// Append assigns the next sequence number and timestamp-order position to
// obs and stores it, evicting the oldest entry (collapsed into a Gap
// marker) if retention is exceeded. Appends must be serialized with the
// owning pipeline's turn processing (spec §5); callers are expected to call
// this only from the single pipeline goroutine that owns the session, but
// the mutex makes it safe regardless.
func (j *Journal) Append(obs domain.StatusObservation) domain.StatusObservation {
	j.mu.Lock()
	defer j.mu.Unlock()

	obs.Seq = j.nextSeq
	j.nextSeq++
	j.entries = append(j.entries, obs)

	if len(j.entries) > j.retention {
		evicted := len(j.entries) - j.retention
		j.dropped += evicted
		j.entries = j.entries[evicted:]
	}

	return obs
}

// Since returns entries with Seq > cursor, prefixed with a Gap marker when
// entries have been evicted since the oldest entry still held. The returned
// slice is a defensive copy.
func (j *Journal) Since(cursor uint64) []domain.StatusObservation {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]domain.StatusObservation, 0, len(j.entries))

	if j.dropped > 0 && len(j.entries) > 0 && cursor < j.entries[0].Seq-1 {
		out = append(out, domain.StatusObservation{
			Seq:       j.entries[0].Seq - 1,
			Gap:       true,
			GapCount:  j.dropped,
			EmittedAt: j.entries[0].EmittedAt,
		})
	}

	for _, e := range j.entries {
		if e.Seq > cursor {
			out = append(out, e)
		}
	}
	return out
}

// Cursor returns the sequence number of the most recently appended entry,
// or 0 if the journal is empty.
func (j *Journal) Cursor() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == 0 {
		return j.nextSeq - 1
	}
	return j.entries[len(j.entries)-1].Seq
}

// TotalCount returns the number of observations ever appended, including
// ones since evicted by retention.
func (j *Journal) TotalCount() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextSeq - 1
}

// LastKind returns the Kind of the most recently appended entry and false
// if the journal is empty.
func (j *Journal) LastKind() (domain.ObservationKind, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == 0 {
		return "", false
	}
	return j.entries[len(j.entries)-1].Kind, true
}
