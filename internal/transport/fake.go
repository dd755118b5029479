// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/rapidaai/clipcast/pkg/commons"
)

// Fake is an in-memory Gateway double for pipeline and orchestrator tests, in the
// same spirit as the teacher's mockLogger test doubles: same interface
// surface, no real network.
type Fake struct {
	mu   sync.Mutex
	rooms map[string]chan Event
	Sent  []FakeSend
}

// FakeSend records one SendAppMessage call for assertions.
type FakeSend struct {
	RoomURL   string
	Payload   []byte
	Recipient Recipient
}

// NewFake builds an empty Fake gateway.
func NewFake() *Fake {
	return &Fake{rooms: make(map[string]chan Event)}
}

func (f *Fake) CreateRoom(ctx context.Context) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roomURL := fmt.Sprintf("room:fake-%d", len(f.rooms)+1)
	f.rooms[roomURL] = make(chan Event, eventChannelSize)
	return roomURL, "fake-token", nil
}

func (f *Fake) DestroyRoom(ctx context.Context, roomURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.rooms[roomURL]; ok {
		close(ch)
		delete(f.rooms, roomURL)
	}
	return nil
}

func (f *Fake) SendAppMessage(ctx context.Context, roomURL string, payload []byte, recipient Recipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[roomURL]; !ok {
		return fmt.Errorf("%w: %s", commons.ErrUnknownRoom, roomURL)
	}
	f.Sent = append(f.Sent, FakeSend{RoomURL: roomURL, Payload: payload, Recipient: recipient})
	return nil
}

func (f *Fake) Subscribe(ctx context.Context, roomURL string) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.rooms[roomURL]
	if !ok {
		return nil, fmt.Errorf("%w: %s", commons.ErrUnknownRoom, roomURL)
	}
	return ch, nil
}

// Push injects ev into roomURL's event stream, simulating an inbound
// transport event for tests.
func (f *Fake) Push(roomURL string, ev Event) {
	f.mu.Lock()
	ch, ok := f.rooms[roomURL]
	f.mu.Unlock()
	if ok {
		ch <- ev
	}
}
