// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rapidaai/clipcast/internal/clipsearch"
	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/internal/journal"
	"github.com/rapidaai/clipcast/internal/llm"
	"github.com/rapidaai/clipcast/internal/registry"
	"github.com/rapidaai/clipcast/internal/transcriber"
	"github.com/rapidaai/clipcast/internal/transport"
	"github.com/rapidaai/clipcast/pkg/commons"
)

type recordingCleanup struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingCleanup) RequestCleanup(ctx context.Context, identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, identifier)
}

func (r *recordingCleanup) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// scriptedTranscriber turns each incoming frame into the next text in texts,
// in order, ignoring the frame's actual PCM content.
func scriptedTranscriber(texts ...string) *transcriber.Fake {
	i := 0
	f := transcriber.NewFake()
	f.Decode = func(frame transcriber.Frame) (string, bool) {
		if i >= len(texts) {
			return "", false
		}
		text := texts[i]
		i++
		return text, true
	}
	return f
}

func framesChan(n int) chan transcriber.Frame {
	ch := make(chan transcriber.Frame, n)
	for i := 0; i < n; i++ {
		ch <- transcriber.Frame{PCM: []int16{1, 2, 3}}
	}
	close(ch)
	return ch
}

func TestPipeline_SearchThenPlayClip(t *testing.T) {
	reg := registry.New(commons.NewNop())
	sess, err := reg.Create("room:1")
	assert.NoError(t, err)

	gw := transport.NewFake()
	roomURL, _, err := gw.CreateRoom(context.Background())
	assert.NoError(t, err)

	search := clipsearch.NewFake()
	search.Results["dog show"] = []domain.ClipCandidate{
		{ClipID: "clip-1", SourceURI: "s3://clips/clip-1.mp4", Caption: "dog show", Score: 0.9},
	}

	model := llm.NewFake(
		llm.Response{ToolCalls: []domain.ToolCall{
			{CallID: "call-1", Kind: domain.ToolSearchClips, Query: "dog show", TopK: 3},
		}},
		llm.Response{ToolCalls: []domain.ToolCall{
			{CallID: "call-2", Kind: domain.ToolPlayClip, ClipID: "clip-1", StartSeconds: 0, EndSeconds: 5},
		}},
		llm.Response{Content: "Here's the dog show clip."},
	)

	j := journal.New(100)
	cleanup := &recordingCleanup{}

	p := New(Deps{
		Log:         commons.NewNop(),
		Gateway:     gw,
		Transcriber: scriptedTranscriber("show me a dog show clip"),
		Search:      search,
		Model:       model,
		Journal:     j,
		Registry:    reg,
		SessionID:   sess.Identifier,
		RoomURL:     roomURL,
		Cleanup:     cleanup,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = p.Run(ctx, framesChan(1))
	assert.NoError(t, err)

	var kinds []domain.ObservationKind
	for _, e := range j.Since(0) {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, domain.ObsUserUtterance)
	assert.Contains(t, kinds, domain.ObsSearchAttempt)
	assert.Contains(t, kinds, domain.ObsClipSelected)
	assert.Contains(t, kinds, domain.ObsClipPlayed)
	assert.Contains(t, kinds, domain.ObsLLMReasoning)

	assert.Len(t, gw.Sent, 1)
	assert.Equal(t, roomURL, gw.Sent[0].RoomURL)

	updated, err := reg.GetByIdentifier(sess.Identifier)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), updated.CommandSeq)

	assert.Equal(t, 0, cleanup.callCount())
}

func TestPipeline_StallAfterThreeConsecutiveNoToolCallTurns(t *testing.T) {
	reg := registry.New(commons.NewNop())
	sess, err := reg.Create("room:2")
	assert.NoError(t, err)

	gw := transport.NewFake()
	roomURL, _, err := gw.CreateRoom(context.Background())
	assert.NoError(t, err)

	model := llm.NewFake(
		llm.Response{Content: "not sure what you mean"},
		llm.Response{Content: "could you rephrase that"},
		llm.Response{Content: "still not finding a clip"},
	)

	j := journal.New(100)
	cleanup := &recordingCleanup{}

	p := New(Deps{
		Log:         commons.NewNop(),
		Gateway:     gw,
		Transcriber: scriptedTranscriber("huh", "what do you mean", "never mind"),
		Search:      clipsearch.NewFake(),
		Model:       model,
		Journal:     j,
		Registry:    reg,
		SessionID:   sess.Identifier,
		RoomURL:     roomURL,
		Cleanup:     cleanup,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = p.Run(ctx, framesChan(3))
	assert.NoError(t, err)

	assert.Equal(t, 1, cleanup.callCount())
	assert.Equal(t, []string{sess.Identifier}, cleanup.calls)
}

func TestPipeline_LLMFailureTriggersCleanupAfterMaxConsecutiveFailures(t *testing.T) {
	reg := registry.New(commons.NewNop())
	sess, err := reg.Create("room:3")
	assert.NoError(t, err)

	gw := transport.NewFake()
	roomURL, _, err := gw.CreateRoom(context.Background())
	assert.NoError(t, err)

	model := &llm.Fake{Err: errors.New("provider unavailable")}
	j := journal.New(100)
	cleanup := &recordingCleanup{}

	p := New(Deps{
		Log:                       commons.NewNop(),
		Gateway:                   gw,
		Transcriber:               scriptedTranscriber("one", "two"),
		Search:                    clipsearch.NewFake(),
		Model:                     model,
		Journal:                   j,
		Registry:                  reg,
		SessionID:                 sess.Identifier,
		RoomURL:                   roomURL,
		Cleanup:                   cleanup,
		MaxConsecutiveLLMFailures: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = p.Run(ctx, framesChan(2))
	assert.NoError(t, err)

	assert.Equal(t, 1, cleanup.callCount())
}

func TestPipeline_EmptyUtteranceIsDropped(t *testing.T) {
	reg := registry.New(commons.NewNop())
	sess, err := reg.Create("room:empty")
	assert.NoError(t, err)

	gw := transport.NewFake()
	roomURL, _, err := gw.CreateRoom(context.Background())
	assert.NoError(t, err)

	model := llm.NewFake(
		llm.Response{Content: "should never be called"},
	)

	j := journal.New(100)

	p := New(Deps{
		Log:         commons.NewNop(),
		Gateway:     gw,
		Transcriber: scriptedTranscriber(""),
		Search:      clipsearch.NewFake(),
		Model:       model,
		Journal:     j,
		Registry:    reg,
		SessionID:   sess.Identifier,
		RoomURL:     roomURL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = p.Run(ctx, framesChan(1))
	assert.NoError(t, err)

	assert.Empty(t, j.Since(0))
	assert.Equal(t, 0, model.Calls())
}

func TestPipeline_PlayClipInvalidRangeAppendsJournalError(t *testing.T) {
	reg := registry.New(commons.NewNop())
	sess, err := reg.Create("room:5")
	assert.NoError(t, err)

	gw := transport.NewFake()
	roomURL, _, err := gw.CreateRoom(context.Background())
	assert.NoError(t, err)

	model := llm.NewFake(
		llm.Response{ToolCalls: []domain.ToolCall{
			{CallID: "call-1", Kind: domain.ToolPlayClip, ClipID: "clip-1", StartSeconds: 5, EndSeconds: 5},
		}},
		llm.Response{Content: "sorry, that range didn't work"},
	)

	j := journal.New(100)

	p := New(Deps{
		Log:         commons.NewNop(),
		Gateway:     gw,
		Transcriber: scriptedTranscriber("play that clip"),
		Search:      clipsearch.NewFake(),
		Model:       model,
		Journal:     j,
		Registry:    reg,
		SessionID:   sess.Identifier,
		RoomURL:     roomURL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = p.Run(ctx, framesChan(1))
	assert.NoError(t, err)

	assert.Empty(t, gw.Sent)

	foundInvalid := false
	for _, e := range j.Since(0) {
		if e.Kind == domain.ObsError && e.ErrorKind == "invalid_tool_call" {
			foundInvalid = true
		}
	}
	assert.True(t, foundInvalid)
}

func TestPipeline_StrictValidationRejectsUnknownClip(t *testing.T) {
	reg := registry.New(commons.NewNop())
	sess, err := reg.Create("room:4")
	assert.NoError(t, err)

	gw := transport.NewFake()
	roomURL, _, err := gw.CreateRoom(context.Background())
	assert.NoError(t, err)

	model := llm.NewFake(
		llm.Response{ToolCalls: []domain.ToolCall{
			{CallID: "call-1", Kind: domain.ToolPlayClip, ClipID: "clip-unknown", StartSeconds: 0, EndSeconds: 5},
		}},
		llm.Response{Content: "sorry, couldn't find that clip"},
	)

	j := journal.New(100)

	p := New(Deps{
		Log:                  commons.NewNop(),
		Gateway:              gw,
		Transcriber:          scriptedTranscriber("play that one clip"),
		Search:               clipsearch.NewFake(),
		Model:                model,
		Journal:              j,
		Registry:             reg,
		SessionID:            sess.Identifier,
		RoomURL:              roomURL,
		StrictClipValidation: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = p.Run(ctx, framesChan(1))
	assert.NoError(t, err)

	assert.Empty(t, gw.Sent)

	foundInvalid := false
	for _, e := range j.Since(0) {
		if e.Kind == domain.ObsError && e.ErrorKind == "invalid_tool_call" {
			foundInvalid = true
		}
	}
	assert.True(t, foundInvalid)
}
