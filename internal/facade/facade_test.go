// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package facade

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/pkg/commons"
)

func newTestEngine(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h.RegisterRoutes(engine)
	return engine
}

func TestHandlers_ConnectIssuesSignedBotToken(t *testing.T) {
	orc := &fakeOrchestrator{
		createSnap:  domain.Snapshot{Identifier: "sess-1", RoomURL: "room://1", State: domain.StateConnecting},
		createToken: "raw-room-token",
	}
	h := newTestHandlers(orc)
	engine := newTestEngine(h)

	req := httptest.NewRequest(http.MethodPost, "/v1/session/connect", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp connectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.Identifier)
	assert.Equal(t, "room://1", resp.RoomURL)
	assert.NotEmpty(t, resp.BotToken)

	parsed, err := jwt.ParseWithClaims(resp.BotToken, &botTokenClaims{}, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(*botTokenClaims)
	require.True(t, ok)
	assert.Equal(t, "room://1", claims.RoomURL)
	assert.Equal(t, "raw-room-token", claims.RoomToken)
	assert.Equal(t, "sess-1", claims.Subject)
}

func TestHandlers_ConnectMapsUnavailableToServiceUnavailable(t *testing.T) {
	orc := &fakeOrchestrator{createErr: commons.ErrTransportUnavailable}
	h := newTestHandlers(orc)
	engine := newTestEngine(h)

	req := httptest.NewRequest(http.MethodPost, "/v1/session/connect", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlers_ListRoomsReturnsSnapshots(t *testing.T) {
	orc := &fakeOrchestrator{sessions: []domain.Snapshot{
		{Identifier: "sess-1", RoomURL: "room://1"},
		{Identifier: "sess-2", RoomURL: "room://2"},
	}}
	h := newTestHandlers(orc)
	engine := newTestEngine(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/session/rooms", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sess-1")
	assert.Contains(t, rec.Body.String(), "sess-2")
}

func TestHandlers_RegisterPiClientParsesJSONBody(t *testing.T) {
	orc := &fakeOrchestrator{}
	h := newTestHandlers(orc)
	engine := newTestEngine(h)

	body := strings.NewReader(`{"room_url":"room://1","pid":4242}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/session/register-pi-client", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "room://1", orc.lastRoom)
	assert.Equal(t, domain.RoleCapture, orc.lastRole)
	assert.Equal(t, 4242, orc.lastPID)
}

func TestHandlers_RegisterVideoServiceMissingRoomURLFails(t *testing.T) {
	orc := &fakeOrchestrator{}
	h := newTestHandlers(orc)
	engine := newTestEngine(h)

	req := httptest.NewRequest(http.MethodPost, "/v1/session/register-video-service", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_CleanupRoomDelegatesToOrchestrator(t *testing.T) {
	orc := &fakeOrchestrator{cleanupReport: domain.CleanupReport{
		BotTerminated:          true,
		PiClientTerminated:     true,
		VideoServiceTerminated: true,
	}}
	h := newTestHandlers(orc)
	engine := newTestEngine(h)

	body := strings.NewReader(`{"room_url":"room://1"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/session/cleanup-room", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "room://1", orc.cleanedRoom)

	var report domain.CleanupReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.BotTerminated)
	assert.True(t, report.PiClientTerminated)
	assert.True(t, report.VideoServiceTerminated)
	assert.Empty(t, report.Errors)
}

func TestHandlers_CleanupRoomReportsPartialFailureWithErrors(t *testing.T) {
	orc := &fakeOrchestrator{cleanupReport: domain.CleanupReport{
		BotTerminated:      true,
		PiClientTerminated: false,
		Errors:             []string{"edge process termination failed: session sess-1 role capture pid 123"},
	}}
	h := newTestHandlers(orc)
	engine := newTestEngine(h)

	body := strings.NewReader(`{"room_url":"room://1"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/session/cleanup-room", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var report domain.CleanupReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.BotTerminated)
	assert.False(t, report.PiClientTerminated)
	assert.Len(t, report.Errors, 1)
}

func TestHandlers_CleanupRoomUnknownRoomReturnsNotFound(t *testing.T) {
	orc := &fakeOrchestrator{cleanupErr: commons.ErrUnknownRoom}
	h := newTestHandlers(orc)
	engine := newTestEngine(h)

	body := strings.NewReader(`{"room_url":"room://missing"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/session/cleanup-room", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_ConversationStatusReturnsStateAndContextSinceLastSeen(t *testing.T) {
	orc := &fakeOrchestrator{convStatus: domain.ConversationStatus{
		State:        domain.StateActive,
		UserSpeaking: false,
		Context: domain.ConversationContext{
			StatusMessages:    []domain.StatusObservation{{Seq: 3, SessionID: "sess-1", Kind: domain.ObsClipPlayed, ClipID: "clip-9"}},
			TotalMessageCount: 3,
		},
	}}
	h := newTestHandlers(orc)
	engine := newTestEngine(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/session/conversation-status/sess-1?last_seen=2", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var status domain.ConversationStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, domain.StateActive, status.State)
	assert.False(t, status.UserSpeaking)
	assert.Equal(t, uint64(3), status.Context.TotalMessageCount)
	require.Len(t, status.Context.StatusMessages, 1)
	assert.Equal(t, "clip-9", status.Context.StatusMessages[0].ClipID)
}

func TestHandlers_ConversationStatusInvalidLastSeenFails(t *testing.T) {
	orc := &fakeOrchestrator{}
	h := newTestHandlers(orc)
	engine := newTestEngine(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/session/conversation-status/sess-1?last_seen=not-a-number", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
