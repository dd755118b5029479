// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package facade exposes the orchestrator's session lifecycle over HTTP, the
// shape spec §8 calls the "operator-facing surface": /connect provisions a
// room for a new conversation, /rooms lists active ones, the two
// register-*-client endpoints attach an edge device's PID once it comes up,
// /cleanup-room tears a session down on demand, and
// /conversation-status/:identifier serves the Status Journal to a poller.
// Handler bodies are grounded on the teacher's
// internal/channel/telephony/internal/asterisk/telephony.go webhook handlers
// (GetRawData + json.Unmarshal, gin.H error responses); route grouping on
// router/assistant.go's engine.Group + constructor-injected handler struct.
package facade

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/pkg/commons"
)

// Orchestrator is the subset of *orchestrator.Manager the facade depends on.
// Kept as an interface so handler tests can substitute a fake instead of
// wiring the full C1-C8 stack.
type Orchestrator interface {
	CreateSession(ctx context.Context) (domain.Snapshot, string, error)
	ListSessions() []domain.Snapshot
	RegisterEdgePID(roomURL string, role domain.EdgeRole, pid int) error
	CleanupRoom(ctx context.Context, roomURL string) (domain.CleanupReport, error)
	ConversationStatus(identifier string, lastSeen uint64) (domain.ConversationStatus, error)
}

// Handlers holds the dependencies every route needs, built once by New and
// never mutated afterward.
type Handlers struct {
	orc        Orchestrator
	log        commons.Logger
	botSecret  []byte
	tokenTTL   time.Duration
}

// New builds a Handlers. botSecret signs the JWT handed back from /connect;
// it is config.AppConfig.BotTokenSecret.
func New(orc Orchestrator, log commons.Logger, botSecret string) *Handlers {
	return &Handlers{
		orc:       orc,
		log:       log,
		botSecret: []byte(botSecret),
		tokenTTL:  2 * time.Hour,
	}
}

// RegisterRoutes mounts every facade endpoint under engine, following the
// teacher's engine.Group(...) convention.
func (h *Handlers) RegisterRoutes(engine *gin.Engine) {
	v1 := engine.Group("v1/session")
	v1.POST("/connect", h.Connect)
	v1.GET("/rooms", h.ListRooms)
	v1.POST("/register-pi-client", h.RegisterPiClient)
	v1.POST("/register-video-service", h.RegisterVideoService)
	v1.POST("/cleanup-room", h.CleanupRoom)
	v1.GET("/conversation-status/:identifier", h.ConversationStatus)
}

// connectResponse is returned to the caller that stands up a new session.
type connectResponse struct {
	Identifier string `json:"identifier"`
	RoomURL    string `json:"room_url"`
	BotToken   string `json:"bot_token"`
}

// Connect provisions a new room and session, and returns a signed bot token
// the edge device presents when it joins the room.
func (h *Handlers) Connect(c *gin.Context) {
	snap, rawToken, err := h.orc.CreateSession(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	signed, err := h.signBotToken(snap.Identifier, snap.RoomURL, rawToken)
	if err != nil {
		h.log.Errorw("signing bot token failed", "identifier", snap.Identifier, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue bot token"})
		return
	}

	c.JSON(http.StatusOK, connectResponse{
		Identifier: snap.Identifier,
		RoomURL:    snap.RoomURL,
		BotToken:   signed,
	})
}

// botTokenClaims rides inside the JWT issued by Connect; room_token carries
// the transport-level join credential the gateway itself issued.
type botTokenClaims struct {
	RoomURL   string `json:"room_url"`
	RoomToken string `json:"room_token"`
	jwt.RegisteredClaims
}

func (h *Handlers) signBotToken(identifier, roomURL, roomToken string) (string, error) {
	now := time.Now()
	claims := botTokenClaims{
		RoomURL:   roomURL,
		RoomToken: roomToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identifier,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.botSecret)
}

// ListRooms returns every session currently tracked by the registry.
func (h *Handlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orc.ListSessions()})
}

type registerEdgeRequest struct {
	RoomURL string `json:"room_url"`
	PID     int    `json:"pid"`
}

// RegisterPiClient attaches the capture device's PID once it has launched.
func (h *Handlers) RegisterPiClient(c *gin.Context) {
	h.registerEdge(c, domain.RoleCapture)
}

// RegisterVideoService attaches the playback device's PID once it has
// launched.
func (h *Handlers) RegisterVideoService(c *gin.Context) {
	h.registerEdge(c, domain.RolePlayer)
}

func (h *Handlers) registerEdge(c *gin.Context, role domain.EdgeRole) {
	req, err := decodeEdgeRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.orc.RegisterEdgePID(req.RoomURL, role, req.PID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

// decodeEdgeRequest reads the raw body and falls back to query parameters,
// the same shape the teacher's telephony webhooks use to tolerate callers
// that don't set a JSON content-type.
func decodeEdgeRequest(c *gin.Context) (registerEdgeRequest, error) {
	var req registerEdgeRequest

	body, err := c.GetRawData()
	if err == nil && len(body) > 0 {
		if jsonErr := json.Unmarshal(body, &req); jsonErr == nil && req.RoomURL != "" {
			return req, nil
		}
	}

	req.RoomURL = c.Query("room_url")
	if pid := c.Query("pid"); pid != "" {
		if n, convErr := strconv.Atoi(pid); convErr == nil {
			req.PID = n
		}
	}
	if req.RoomURL == "" {
		return req, errors.New("missing room_url")
	}
	return req, nil
}

type cleanupRequest struct {
	RoomURL string `json:"room_url"`
}

// CleanupRoom is the operator-initiated teardown path.
func (h *Handlers) CleanupRoom(c *gin.Context) {
	var req cleanupRequest
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	}
	if err := json.Unmarshal(body, &req); err != nil || req.RoomURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing room_url"})
		return
	}

	report, err := h.orc.CleanupRoom(c.Request.Context(), req.RoomURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ConversationStatus serves spec §6's polling contract: session state,
// whether the user is still awaiting a reply, and the Status Journal
// context since the caller's last_seen cursor.
func (h *Handlers) ConversationStatus(c *gin.Context) {
	identifier := c.Param("identifier")

	var lastSeen uint64
	if raw := c.Query("last_seen"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid last_seen"})
			return
		}
		lastSeen = n
	}

	status, err := h.orc.ConversationStatus(identifier, lastSeen)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// fail maps the pkg/commons sentinel error taxonomy onto HTTP status codes.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, commons.ErrUnknownSession), errors.Is(err, commons.ErrUnknownRoom):
		status = http.StatusNotFound
	case errors.Is(err, commons.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, commons.ErrTransportUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.log.Errorw("facade request failed", "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
