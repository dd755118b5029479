// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package registry implements the Session Registry (C6): the canonical,
// in-memory table of active sessions and the state machine that governs
// their transitions. Adapted from the teacher's Postgres-backed call
// context store to an in-memory, single-writer-discipline table, since
// spec-mandated persisted state is none in v1.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/pkg/commons"
)

// Registry is the single-writer, snapshot-readable table of active
// sessions. Mutation is serialized by mu; reads take a copy under the same
// lock to avoid handing out references to mutable state.
type Registry struct {
	log commons.Logger

	mu         sync.Mutex
	byID       map[string]*domain.Session
	byRoom     map[string]*domain.Session
}

// New builds an empty Registry.
func New(log commons.Logger) *Registry {
	return &Registry{
		log:    log,
		byID:   make(map[string]*domain.Session),
		byRoom: make(map[string]*domain.Session),
	}
}

// Create inserts a new session with the given room_url. Fails with
// commons.ErrDuplicate if the room_url is already registered.
func (r *Registry) Create(roomURL string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byRoom[roomURL]; exists {
		return nil, fmt.Errorf("%w: room_url %s", commons.ErrDuplicate, roomURL)
	}

	s := domain.NewSession(roomURL)
	if _, exists := r.byID[s.Identifier]; exists {
		return nil, fmt.Errorf("%w: identifier %s", commons.ErrDuplicate, s.Identifier)
	}

	r.byID[s.Identifier] = s
	r.byRoom[s.RoomURL] = s
	r.log.Infow("session created", "identifier", s.Identifier, "room_url", s.RoomURL)
	return s, nil
}

// GetByIdentifier returns the live session for identifier, or
// commons.ErrUnknownSession.
func (r *Registry) GetByIdentifier(identifier string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", commons.ErrUnknownSession, identifier)
	}
	return s, nil
}

// GetByRoom returns the live session for room_url, or commons.ErrUnknownRoom.
func (r *Registry) GetByRoom(roomURL string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byRoom[roomURL]
	if !ok {
		return nil, fmt.Errorf("%w: %s", commons.ErrUnknownRoom, roomURL)
	}
	return s, nil
}

// ListActive returns a snapshot of every tracked session, regardless of
// state — "active" in the C7 sense means "tracked", matching the teacher's
// /rooms endpoint semantics.
func (r *Registry) ListActive() []domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Snapshot, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s.Snapshot())
	}
	return out
}

// Remove deletes sessionID's record. It only removes sessions in the
// Terminated state, matching spec §4.6's "removable from registry" rule.
func (r *Registry) Remove(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", commons.ErrUnknownSession, sessionID)
	}
	if s.State != domain.StateTerminated {
		return fmt.Errorf("cannot remove session %s in state %s", sessionID, s.State)
	}

	delete(r.byID, s.Identifier)
	delete(r.byRoom, s.RoomURL)
	r.log.Infow("session removed", "identifier", s.Identifier)
	return nil
}

// Transition applies event to sessionID's state under the registry lock,
// returning the resulting state. It enforces the transition table in
// transitions.go; no transition may run concurrently for the same session
// because Registry serializes all mutation through mu.
func (r *Registry) Transition(sessionID string, event Event) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[sessionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", commons.ErrUnknownSession, sessionID)
	}

	next, ok := allowedTransitions[s.State][event]
	if !ok {
		return s.State, fmt.Errorf("no transition for event %s in state %s", event, s.State)
	}

	prev := s.State
	s.State = next
	switch event {
	case EventParticipantJoined, EventTransportRestored:
		s.LastActivityAt = time.Now()
	case EventTransportLost:
		s.TransportLostAt = time.Now()
	}
	r.log.Infow("session transitioned", "identifier", sessionID, "from", prev, "to", next, "event", event)
	return next, nil
}

// NextCommandSeq returns the next command_seq for sessionID, serialized
// under the registry lock so two tool calls racing across goroutines can
// never observe the same sequence number.
func (r *Registry) NextCommandSeq(sessionID string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[sessionID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", commons.ErrUnknownSession, sessionID)
	}
	return s.NextCommandSeq(), nil
}

// RegisterEdgePID attaches pid to role on sessionID. Fails with
// commons.ErrUnknownRoom if roomURL is not registered.
func (r *Registry) RegisterEdgePID(roomURL string, role domain.EdgeRole, pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byRoom[roomURL]
	if !ok {
		return fmt.Errorf("%w: %s", commons.ErrUnknownRoom, roomURL)
	}
	if s.EdgePIDs == nil {
		s.EdgePIDs = make(map[domain.EdgeRole]int)
	}
	s.EdgePIDs[role] = pid
	return nil
}

// Snapshot of a session's timing fields, used by the reaper without holding
// the lock across its own decision-making.
type timingSnapshot struct {
	identifier      string
	state           string
	createdAt       time.Time
	lastActivityAt  time.Time
	transportLostAt time.Time
}

func (r *Registry) timingSnapshots() []timingSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]timingSnapshot, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, timingSnapshot{
			identifier:      s.Identifier,
			state:           s.State,
			createdAt:       s.CreatedAt,
			lastActivityAt:  s.LastActivityAt,
			transportLostAt: s.TransportLostAt,
		})
	}
	return out
}
