// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package transcriber

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/pkg/commons"
)

// DeepgramTranscriber streams PCM frames to Deepgram's live transcription
// websocket and emits finalized Utterances as "is_final" results arrive.
// Grounded on internal/transformer/deepgram's construction-from-vaulted-key
// pattern (NewDeepgramOption), generalized here to the live-streaming API.
type DeepgramTranscriber struct {
	log    commons.Logger
	apiKey string
}

// NewDeepgramTranscriber builds a transcriber bound to apiKey.
func NewDeepgramTranscriber(log commons.Logger, apiKey string) *DeepgramTranscriber {
	return &DeepgramTranscriber{log: log, apiKey: apiKey}
}

// transcriptCallback adapts Deepgram's live-message callbacks into
// Utterances pushed onto out.
type transcriptCallback struct {
	sessionID string
	out       chan<- domain.Utterance
	log       commons.Logger
}

func (c *transcriptCallback) Message(mr *interfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	if !mr.IsFinal || alt.Transcript == "" {
		return nil
	}
	c.out <- domain.Utterance{
		SessionID:   c.sessionID,
		Text:        alt.Transcript,
		LanguageTag: "en-US",
		ReceivedAt:  time.Now(),
	}
	return nil
}

func (c *transcriptCallback) Error(er *interfaces.ErrorResponse) error {
	c.log.Warnw("deepgram stream error", "session", c.sessionID, "err", er.ErrMsg)
	return nil
}

func (c *transcriptCallback) Open(ocr *interfaces.OpenResponse) error  { return nil }
func (c *transcriptCallback) Close(ccr *interfaces.CloseResponse) error { return nil }
func (c *transcriptCallback) Metadata(md *interfaces.MetadataResponse) error { return nil }
func (c *transcriptCallback) UtteranceEnd(ur *interfaces.UtteranceEndResponse) error { return nil }
func (c *transcriptCallback) SpeechStarted(ssr *interfaces.SpeechStartedResponse) error {
	return nil
}

// Start opens a live Deepgram connection for sessionID and pumps frames
// into it until ctx is cancelled.
func (t *DeepgramTranscriber) Start(ctx context.Context, sessionID string, frames <-chan Frame) (<-chan domain.Utterance, error) {
	out := make(chan domain.Utterance, 32)

	cOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:       "nova-2",
		Language:    "en-US",
		Encoding:    "linear16",
		SampleRate:  16000,
		Channels:    1,
		SmartFormat: true,
	}

	callback := &transcriptCallback{sessionID: sessionID, out: out, log: t.log}
	dgClient, err := listen.NewWSUsingCallback(ctx, t.apiKey, cOptions, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", commons.ErrTranscriptionFailed, err)
	}
	if ok := dgClient.Connect(); !ok {
		return nil, fmt.Errorf("%w: deepgram connect failed", commons.ErrTranscriptionFailed)
	}

	go func() {
		defer close(out)
		defer dgClient.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				buf := make([]byte, len(frame.PCM)*2)
				for i, s := range frame.PCM {
					binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
				}
				if err := dgClient.WriteBinary(buf); err != nil {
					t.log.Warnw("deepgram write failed", "session", sessionID, "err", err)
					return
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; individual Start calls own their own connection
// lifetime, closed when their context is cancelled.
func (t *DeepgramTranscriber) Close() error {
	return nil
}
