// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package domain

import "time"

// ObservationKind discriminates the closed set of Status Journal entries.
type ObservationKind string

const (
	ObsUserUtterance ObservationKind = "user_utterance"
	ObsLLMReasoning  ObservationKind = "llm_reasoning"
	ObsSearchAttempt ObservationKind = "search_attempt"
	ObsClipSelected  ObservationKind = "clip_selected"
	ObsClipPlayed    ObservationKind = "clip_played"
	ObsProcessEvent  ObservationKind = "process_event"
	ObsError         ObservationKind = "error"
)

// StatusObservation is one entry in a session's Status Journal. Seq is
// strictly monotonic starting at 1 within a session; Gap is set only on the
// synthetic marker the journal inserts when old entries are evicted.
type StatusObservation struct {
	Seq        uint64          `json:"seq"`
	SessionID  string          `json:"session_id"`
	Kind       ObservationKind `json:"kind"`
	EmittedAt  time.Time       `json:"emitted_at"`

	Text       string          `json:"text"`        // UserUtterance text / LLMReasoning content / Error message
	Query      string          `json:"query"`       // SearchAttempt query
	Results    []ClipCandidate `json:"results"`
	ClipID     string          `json:"clip_id"`     // ClipSelected / ClipPlayed
	CommandSeq uint64          `json:"command_seq"` // ClipSelected / ClipPlayed
	ErrorKind  string          `json:"error_kind"`  // Error.kind, e.g. "llm", "stalled", "transport"

	// Gap is true for the synthetic marker inserted when the journal's
	// bounded retention evicts older entries; GapCount records how many were
	// dropped. Only Seq, EmittedAt and these two fields are meaningful on a
	// gap marker.
	Gap      bool `json:"gap"`
	GapCount int  `json:"gap_count"`
}
