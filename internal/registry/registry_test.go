// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/pkg/commons"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_CreateRejectsDuplicateRoom(t *testing.T) {
	r := New(commons.NewNop())
	_, err := r.Create("room-1")
	assert.NoError(t, err)

	_, err = r.Create("room-1")
	assert.ErrorIs(t, err, commons.ErrDuplicate)
}

func TestRegistry_CreateProducesDistinctIdentifiers(t *testing.T) {
	r := New(commons.NewNop())
	s1, _ := r.Create("room-a")
	s2, _ := r.Create("room-b")
	assert.NotEqual(t, s1.Identifier, s2.Identifier)
	assert.Len(t, r.ListActive(), 2)
}

func TestRegistry_GetByRoom_UnknownRoom(t *testing.T) {
	r := New(commons.NewNop())
	_, err := r.GetByRoom("nope")
	assert.ErrorIs(t, err, commons.ErrUnknownRoom)
}

func TestRegistry_RemoveOnlyWhenTerminated(t *testing.T) {
	r := New(commons.NewNop())
	s, _ := r.Create("room-1")

	err := r.Remove(s.Identifier)
	assert.Error(t, err)

	_, err = r.Transition(s.Identifier, EventRoomCreated)
	assert.NoError(t, err)
	_, err = r.Transition(s.Identifier, EventCleanupRequested) // Connecting -> Terminating
	assert.NoError(t, err)
	_, err = r.Transition(s.Identifier, EventResourcesReleased) // -> Terminated
	assert.NoError(t, err)

	assert.NoError(t, r.Remove(s.Identifier))
	assert.Empty(t, r.ListActive())
}

func TestRegistry_TransitionRejectsIllegalEvent(t *testing.T) {
	r := New(commons.NewNop())
	s, _ := r.Create("room-1")
	_, err := r.Transition(s.Identifier, EventIdleTimeout) // Provisioning has no such event
	assert.Error(t, err)
}

func TestRegistry_RegisterEdgePID_UnknownRoom(t *testing.T) {
	r := New(commons.NewNop())
	err := r.RegisterEdgePID("missing-room", domain.RoleCapture, 123)
	assert.ErrorIs(t, err, commons.ErrUnknownRoom)
}

type fakeCleanup struct {
	calls []string
}

func (f *fakeCleanup) RequestCleanup(ctx context.Context, identifier string) {
	f.calls = append(f.calls, identifier)
}

func TestRegistry_ReaperTransitionsStaleConnectingSession(t *testing.T) {
	r := New(commons.NewNop())
	s, _ := r.Create("room-1")
	_, _ = r.Transition(s.Identifier, EventRoomCreated) // -> Connecting
	s.CreatedAt = time.Now().Add(-1 * time.Hour)

	cleanup := &fakeCleanup{}
	r.sweep(context.Background(), TimeoutPolicy{ConnectTimeout: time.Millisecond}, cleanup)

	assert.Equal(t, []string{s.Identifier}, cleanup.calls)

	got, _ := r.GetByIdentifier(s.Identifier)
	assert.Equal(t, domain.StateTerminating, got.State)
}
