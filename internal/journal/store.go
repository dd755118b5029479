// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package journal

import "sync"

// Store keys one Journal per session. The orchestrator wiring owns a single
// Store and hands each pipeline actor its session's Journal at creation
// time; the orchestrator reads through the same Store when answering the
// facade's conversation-status polls.
type Store struct {
	mu       sync.Mutex
	journals map[string]*Journal
	retention int
}

// NewStore builds a Store whose Journals retain at most retention entries.
func NewStore(retention int) *Store {
	return &Store{journals: make(map[string]*Journal), retention: retention}
}

// GetOrCreate returns sessionID's Journal, creating an empty one on first
// use.
func (s *Store) GetOrCreate(sessionID string) *Journal {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.journals[sessionID]
	if !ok {
		j = New(s.retention)
		s.journals[sessionID] = j
	}
	return j
}

// Get returns sessionID's Journal and whether it exists.
func (s *Store) Get(sessionID string) (*Journal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journals[sessionID]
	return j, ok
}

// Delete removes sessionID's Journal once its session is fully terminated.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.journals, sessionID)
}
