// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package transcriber

import (
	"context"

	"github.com/rapidaai/clipcast/internal/domain"
)

// Fake is a deterministic Transcriber double for pipeline tests: every
// frame it receives is passed to Decode, and each frame for which Decode
// reports ok becomes one Utterance carrying the returned text, so callers
// script test behavior through Decode.
type Fake struct {
	Decode func(frame Frame) (text string, ok bool)
}

// NewFake builds a Fake whose Decode defaults to one utterance with empty
// text for each frame with nonempty PCM, and none for an empty frame; tests
// override Decode for specific wording.
func NewFake() *Fake {
	return &Fake{
		Decode: func(frame Frame) (string, bool) {
			if len(frame.PCM) == 0 {
				return "", false
			}
			return "", true
		},
	}
}

func (f *Fake) Start(ctx context.Context, sessionID string, frames <-chan Frame) (<-chan domain.Utterance, error) {
	out := make(chan domain.Utterance, 8)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				text, emit := f.Decode(frame)
				if !emit {
					continue
				}
				out <- domain.Utterance{SessionID: sessionID, Text: text}
			}
		}
	}()
	return out, nil
}

func (f *Fake) Close() error { return nil }
