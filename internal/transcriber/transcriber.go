// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package transcriber implements the Transcriber (C2): converts a stream of
// PCM audio frames for one participant into finalized Utterances.
// DeepgramTranscriber takes utterance boundaries from Deepgram's is_final
// results; VoiceActivityGate wraps a Silero VAD detector but no Transcriber
// in this package uses it. Adapted from the teacher's transformer
// adapters (internal/transformer/assembly-ai, internal/transformer/deepgram)
// which construct a provider connection from vaulted credentials and
// normalize provider events into the domain shape this package owns.
package transcriber

import (
	"context"

	"github.com/rapidaai/clipcast/internal/domain"
)

// Frame is one chunk of canonical 16-bit signed, mono, 16kHz PCM. Callers
// resample before handing frames to a Transcriber whose SampleRate differs.
type Frame struct {
	PCM        []int16
	SampleRate int
}

// Transcriber consumes PCM frames for one participant and produces
// finalized utterances. One instance exists per session; it must be safe
// to run concurrently with other sessions' instances (spec §4.2).
type Transcriber interface {
	// Start begins consuming from frames and returns a channel of finalized
	// Utterances. The returned channel is closed when ctx is cancelled; any
	// in-flight partial utterance is discarded, never emitted.
	Start(ctx context.Context, sessionID string, frames <-chan Frame) (<-chan domain.Utterance, error)

	Close() error
}
