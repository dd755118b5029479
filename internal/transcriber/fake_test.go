// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package transcriber

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_EmitsOneUtterancePerScriptedFrame(t *testing.T) {
	f := NewFake()
	f.Decode = func(frame Frame) (string, bool) {
		return string(rune(frame.PCM[0])), true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan Frame, 1)
	out, err := f.Start(ctx, "sess-1", frames)
	assert.NoError(t, err)

	frames <- Frame{PCM: []int16{'h', 'i'}}

	select {
	case u := <-out:
		assert.Equal(t, "sess-1", u.SessionID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for utterance")
	}
}

func TestFake_EmptyFrameDropped(t *testing.T) {
	f := NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan Frame, 1)
	out, err := f.Start(ctx, "sess-1", frames)
	assert.NoError(t, err)

	frames <- Frame{PCM: nil}
	close(frames)

	_, ok := <-out
	assert.False(t, ok)
}
