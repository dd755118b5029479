// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package domain holds the core data model shared by every orchestrator
// component: sessions, utterances, tool calls, clip candidates, play
// commands and status observations.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session state constants. See the transition table in internal/registry.
const (
	StateProvisioning = "provisioning"
	StateConnecting   = "connecting"
	StateActive       = "active"
	StateDegraded     = "degraded"
	StateTerminating  = "terminating"
	StateTerminated   = "terminated"
)

// EdgeRole identifies one of the two optional remote device roles.
type EdgeRole string

const (
	RoleCapture EdgeRole = "capture"
	RolePlayer  EdgeRole = "player"
)

// Session is the central entity: one conversational engagement between one
// edge device and one instance of the backend pipeline.
type Session struct {
	Identifier string
	RoomURL    string
	State      string

	// OwnerPID is a reference to the pipeline actor bound to this session,
	// not an OS process id despite the name carried over from the source.
	OwnerPID string

	// EdgePIDs maps each registered edge role to its PID. Entries are set by
	// registry.RegisterEdgePID whatever the session's State is, and are not
	// cleared on any state transition; they go away only when the session is
	// removed from the registry.
	EdgePIDs map[EdgeRole]int

	CreatedAt       time.Time
	LastActivityAt  time.Time
	TransportLostAt time.Time

	// CommandSeq is the last command_seq issued to the edge for this
	// session; it only ever increases.
	CommandSeq uint64
}

// NewSession constructs a Session in the Provisioning state. Callers supply
// roomURL once C1 has created the room.
func NewSession(roomURL string) *Session {
	now := time.Now()
	return &Session{
		Identifier:     uuid.NewString(),
		RoomURL:        roomURL,
		State:          StateProvisioning,
		EdgePIDs:       make(map[EdgeRole]int),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Snapshot is the read-only view returned to C7 callers; it never exposes
// the live *Session pointer so callers cannot mutate registry state.
type Snapshot struct {
	RoomURL        string
	Identifier     string
	State          string
	CreatedAt      time.Time
	BotRunning     bool
	BotPID         string
	PiClientPID    int
	VideoServicePID int
}

// CleanupReport is the terminal report spec §6's /cleanup-room returns: one
// flag per owned resource plus any errors encountered releasing them. A
// flag is true only once that resource is confirmed gone; a resource that
// fails to release leaves its flag false and appends an error, so the flag
// and an error are never both absent for that resource.
type CleanupReport struct {
	BotTerminated          bool     `json:"bot_terminated"`
	PiClientTerminated     bool     `json:"pi_client_terminated"`
	VideoServiceTerminated bool     `json:"video_service_terminated"`
	Errors                 []string `json:"errors"`
}

// ConversationContext is the §6 /conversation-status context block: the
// observations the caller hasn't seen yet, plus the journal's total size so
// a poller can detect it has fallen far behind.
type ConversationContext struct {
	StatusMessages    []StatusObservation `json:"status_messages"`
	TotalMessageCount uint64              `json:"total_message_count"`
}

// ConversationStatus is the §6 /conversation-status/{identifier} response:
// session state, whether the user's last turn is still awaiting a reply,
// and the status journal context since the caller's last_seen cursor.
type ConversationStatus struct {
	State        string              `json:"state"`
	UserSpeaking bool                `json:"user_speaking"`
	Context      ConversationContext `json:"context"`
}

// Snapshot copies the fields exposed to facade callers out of a Session.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		RoomURL:    s.RoomURL,
		Identifier: s.Identifier,
		State:      s.State,
		CreatedAt:  s.CreatedAt,
		BotRunning: s.State == StateActive || s.State == StateDegraded,
		BotPID:     s.OwnerPID,
	}
	if pid, ok := s.EdgePIDs[RoleCapture]; ok {
		snap.PiClientPID = pid
	}
	if pid, ok := s.EdgePIDs[RolePlayer]; ok {
		snap.VideoServicePID = pid
	}
	return snap
}

// NextCommandSeq increments and returns the session's command_seq. Callers
// must hold the registry's lock while calling this.
func (s *Session) NextCommandSeq() uint64 {
	s.CommandSeq++
	return s.CommandSeq
}

// Utterance is a finalized transcription produced by the Transcriber (C2).
type Utterance struct {
	SessionID   string
	Text        string
	LanguageTag string
	ReceivedAt  time.Time
}

// ClipCandidate is one ranked result returned by the Clip Search Client (C3).
type ClipCandidate struct {
	ClipID       string
	SourceURI    string
	StartSeconds float64
	EndSeconds   float64
	Caption      string
	Score        float64
}

// PlayCommand is the orchestrator-to-edge playback instruction.
type PlayCommand struct {
	SessionID    string
	SourceURI    string
	StartSeconds float64
	EndSeconds   float64
	Fullscreen   bool
	IssuedAt     time.Time
	CommandSeq   uint64
}
