// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package facade

import (
	"context"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/pkg/commons"
)

// fakeOrchestrator is a scriptable Orchestrator double, mirroring the
// hand-rolled fakes in internal/transport, internal/transcriber and
// internal/clipsearch rather than a mocking library.
type fakeOrchestrator struct {
	createSnap  domain.Snapshot
	createToken string
	createErr   error

	sessions []domain.Snapshot

	registerErr error
	lastRole    domain.EdgeRole
	lastPID     int
	lastRoom    string

	cleanupReport domain.CleanupReport
	cleanupErr    error
	cleanedRoom   string

	convStatus domain.ConversationStatus
	convErr    error
}

func (f *fakeOrchestrator) CreateSession(ctx context.Context) (domain.Snapshot, string, error) {
	return f.createSnap, f.createToken, f.createErr
}

func (f *fakeOrchestrator) ListSessions() []domain.Snapshot {
	return f.sessions
}

func (f *fakeOrchestrator) RegisterEdgePID(roomURL string, role domain.EdgeRole, pid int) error {
	f.lastRoom = roomURL
	f.lastRole = role
	f.lastPID = pid
	return f.registerErr
}

func (f *fakeOrchestrator) CleanupRoom(ctx context.Context, roomURL string) (domain.CleanupReport, error) {
	f.cleanedRoom = roomURL
	if f.cleanupErr != nil {
		return domain.CleanupReport{}, f.cleanupErr
	}
	return f.cleanupReport, nil
}

func (f *fakeOrchestrator) ConversationStatus(identifier string, lastSeen uint64) (domain.ConversationStatus, error) {
	if f.convErr != nil {
		return domain.ConversationStatus{}, f.convErr
	}
	return f.convStatus, nil
}

var _ Orchestrator = (*fakeOrchestrator)(nil)

func newTestHandlers(orc *fakeOrchestrator) *Handlers {
	return New(orc, commons.NewNop(), "test-secret")
}
