// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package registry

import "github.com/rapidaai/clipcast/internal/domain"

// Event identifies the triggers in the spec §4.6 state transition table.
type Event string

const (
	EventRoomCreated        Event = "room_created"
	EventParticipantJoined  Event = "participant_joined"
	EventConnectTimeout     Event = "connect_timeout"
	EventTransportLost      Event = "transport_lost"
	EventTransportRestored  Event = "transport_restored"
	EventGraceExceeded      Event = "grace_exceeded"
	EventCleanupRequested   Event = "cleanup_requested"
	EventIdleTimeout        Event = "idle_timeout"
	EventResourcesReleased  Event = "resources_released"
)

// allowedTransitions is the session state machine. Besides the Active row,
// an operator cleanup request is accepted from Connecting and Degraded, and
// is accepted again in Terminating so a cleanup whose edge processes did not
// die can be retried. A (state, event) pair absent from this map has no
// legal transition.
var allowedTransitions = map[string]map[Event]string{
	domain.StateProvisioning: {
		EventRoomCreated: domain.StateConnecting,
	},
	domain.StateConnecting: {
		EventParticipantJoined: domain.StateActive,
		EventConnectTimeout:    domain.StateTerminating,
		EventCleanupRequested:  domain.StateTerminating,
	},
	domain.StateActive: {
		EventTransportLost:     domain.StateDegraded,
		EventCleanupRequested:  domain.StateTerminating,
		EventIdleTimeout:       domain.StateTerminating,
	},
	domain.StateDegraded: {
		EventTransportRestored: domain.StateActive,
		EventGraceExceeded:     domain.StateTerminating,
		EventCleanupRequested:  domain.StateTerminating,
	},
	domain.StateTerminating: {
		EventResourcesReleased: domain.StateTerminated,
		EventCleanupRequested:  domain.StateTerminating,
	},
}
