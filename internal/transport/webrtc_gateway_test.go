// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package transport

import (
	"context"
	"testing"

	"github.com/rapidaai/clipcast/pkg/commons"
	"github.com/stretchr/testify/assert"
)

func TestWebRTCGateway_DestroyRoomIsIdempotent(t *testing.T) {
	g := NewWebRTCGateway(commons.NewNop(), nil)
	err := g.DestroyRoom(context.Background(), "room:never-existed")
	assert.NoError(t, err)
}

func TestWebRTCGateway_SendAppMessageUnknownRoom(t *testing.T) {
	g := NewWebRTCGateway(commons.NewNop(), nil)
	err := g.SendAppMessage(context.Background(), "room:missing", []byte("{}"), Any)
	assert.ErrorIs(t, err, commons.ErrUnknownRoom)
}

func TestWebRTCGateway_SubscribeUnknownRoom(t *testing.T) {
	g := NewWebRTCGateway(commons.NewNop(), nil)
	_, err := g.Subscribe(context.Background(), "room:missing")
	assert.ErrorIs(t, err, commons.ErrUnknownRoom)
}

func TestWebRTCGateway_CreateRoomAndDestroy(t *testing.T) {
	g := NewWebRTCGateway(commons.NewNop(), nil)
	roomURL, token, err := g.CreateRoom(context.Background())
	assert.NoError(t, err)
	assert.NotEmpty(t, roomURL)
	assert.NotEmpty(t, token)

	ch, err := g.Subscribe(context.Background(), roomURL)
	assert.NoError(t, err)
	assert.NotNil(t, ch)

	assert.NoError(t, g.DestroyRoom(context.Background(), roomURL))
	assert.NoError(t, g.DestroyRoom(context.Background(), roomURL)) // idempotent
}
