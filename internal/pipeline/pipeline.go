// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package pipeline implements the Conversation Pipeline (C4): the
// per-session actor that runs the turn loop described in spec §4.4 —
// transcript in, bounded context, tool-calling LLM, clip search, playback
// dispatch, status journal out. One Pipeline exists per session and is
// single-threaded internally; sessions run fully in parallel (spec §5).
// Adapted from the teacher's ManagedStream actor (one goroutine per call,
// mutex-guarded turn state, cooperative interrupt/cancel) and the
// websocket_executor.go Initialize/Execute/Close lifecycle, collapsed from
// a bidirectional STT/LLM/TTS loop into this spec's STT/LLM/tool-dispatch
// loop with no TTS leg.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rapidaai/clipcast/internal/clipsearch"
	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/internal/journal"
	"github.com/rapidaai/clipcast/internal/llm"
	"github.com/rapidaai/clipcast/internal/registry"
	"github.com/rapidaai/clipcast/internal/transcriber"
	"github.com/rapidaai/clipcast/internal/transport"
	"github.com/rapidaai/clipcast/pkg/commons"
)

// maxToolRoundsPerTurn bounds how many times a single user turn may
// round-trip the LLM after tool results before the pipeline gives up and
// waits for the next utterance; prevents a misbehaving model from looping
// forever within one turn.
const maxToolRoundsPerTurn = 4

// stallThreshold is the spec §7 "3 consecutive turns with no tool call"
// count that trips Error{kind: stalled}.
const stallThreshold = 3

// Deps wires a Pipeline to its collaborators. The collaborator fields are
// required and Cleanup may be nil; ContextTurns, MaxConsecutiveLLMFailures
// and the timeout fields default per spec §6 when zero.
type Deps struct {
	Log        commons.Logger
	Gateway    transport.Gateway
	Transcriber transcriber.Transcriber
	Search     clipsearch.Client
	Model      llm.Model
	Journal    *journal.Journal
	Registry   *registry.Registry

	SessionID string
	RoomURL   string

	ContextTurns              int
	LLMTimeout                time.Duration
	SearchTimeout             time.Duration
	SendTimeout               time.Duration
	CleanupTimeout            time.Duration
	MaxConsecutiveLLMFailures int
	StrictClipValidation      bool

	// Cleanup is invoked when the pipeline itself detects a terminal
	// condition (stall, repeated LLM failure). It is the same interface the
	// registry's reaper calls on timeout, so one teardown implementation in
	// the orchestrator wiring serves both triggers.
	Cleanup registry.CleanupRequester
}

// Pipeline is the per-session conversation actor.
type Pipeline struct {
	log         commons.Logger
	gateway     transport.Gateway
	transcriber transcriber.Transcriber
	search      clipsearch.Client
	model       llm.Model
	journal     *journal.Journal
	registry    *registry.Registry
	cleanup     registry.CleanupRequester

	sessionID string
	roomURL   string

	llmTimeout                time.Duration
	searchTimeout             time.Duration
	sendTimeout               time.Duration
	cleanupTimeout            time.Duration
	maxConsecutiveLLMFailures int
	strictClipValidation      bool

	context *llm.Context

	mu             sync.Mutex
	lastCandidates []domain.ClipCandidate
	stallCount     int
	llmFailures    int
}

// New builds a Pipeline ready to Run.
func New(d Deps) *Pipeline {
	contextTurns := d.ContextTurns
	if contextTurns <= 0 {
		contextTurns = 12
	}
	maxFailures := d.MaxConsecutiveLLMFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}

	return &Pipeline{
		log:                       d.Log,
		gateway:                   d.Gateway,
		transcriber:               d.Transcriber,
		search:                    d.Search,
		model:                     d.Model,
		journal:                   d.Journal,
		registry:                  d.Registry,
		cleanup:                   d.Cleanup,
		sessionID:                 d.SessionID,
		roomURL:                   d.RoomURL,
		llmTimeout:                orDefault(d.LLMTimeout, 30*time.Second),
		searchTimeout:             orDefault(d.SearchTimeout, 5*time.Second),
		sendTimeout:               orDefault(d.SendTimeout, 3*time.Second),
		cleanupTimeout:            orDefault(d.CleanupTimeout, 10*time.Second),
		maxConsecutiveLLMFailures: maxFailures,
		strictClipValidation:      d.StrictClipValidation,
		context:                   llm.NewContext(contextTurns, 0),
	}
}

// Run starts the transcriber over frames and processes utterances one at a
// time until ctx is cancelled or the transcriber closes its output channel.
func (p *Pipeline) Run(ctx context.Context, frames <-chan transcriber.Frame) error {
	utterances, err := p.transcriber.Start(ctx, p.sessionID, frames)
	if err != nil {
		return fmt.Errorf("starting transcriber: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case utt, ok := <-utterances:
			if !ok {
				return nil
			}
			p.runTurn(ctx, utt)
		}
	}
}

// runTurn executes spec §4.4 steps 2-7 for one finalized user utterance. An
// empty-text utterance (spec §8 boundary: "Transcriber emits empty-string
// utterance → dropped; no turn is taken") is dropped before it reaches the
// journal or the LLM context.
func (p *Pipeline) runTurn(ctx context.Context, utt domain.Utterance) {
	if utt.Text == "" {
		return
	}

	p.journal.Append(domain.StatusObservation{
		SessionID: p.sessionID,
		Kind:      domain.ObsUserUtterance,
		EmittedAt: time.Now(),
		Text:      utt.Text,
	})
	p.context.Append(llm.Turn{Role: "user", Content: utt.Text})

	anyToolCalls := false

	for round := 0; round < maxToolRoundsPerTurn; round++ {
		resp, err := p.complete(ctx)
		if err != nil {
			p.recordLLMFailure(ctx, err)
			return
		}
		p.resetLLMFailures()

		if resp.Content != "" {
			// Free text is reasoning for the operator's journal only; it is
			// never forwarded to the edge (spec §4.4 step 6).
			p.journal.Append(domain.StatusObservation{
				SessionID: p.sessionID,
				Kind:      domain.ObsLLMReasoning,
				EmittedAt: time.Now(),
				Text:      resp.Content,
			})
			p.context.Append(llm.Turn{Role: "assistant", Content: resp.Content})
		}

		if len(resp.ToolCalls) == 0 {
			break
		}
		anyToolCalls = true

		for _, call := range resp.ToolCalls {
			switch call.Kind {
			case domain.ToolSearchClips:
				p.handleSearchClips(ctx, call)
			case domain.ToolPlayClip:
				p.handlePlayClip(ctx, call)
			}
		}
	}

	if anyToolCalls {
		p.resetStall()
	} else {
		p.recordStall(ctx)
	}
}

func (p *Pipeline) complete(ctx context.Context) (llm.Response, error) {
	cctx, cancel := context.WithTimeout(ctx, p.llmTimeout)
	defer cancel()

	resp, err := p.model.Complete(cctx, p.context.Turns())
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: %v", commons.ErrLLMFailed, err)
	}
	return resp, nil
}

func (p *Pipeline) handleSearchClips(ctx context.Context, call domain.ToolCall) {
	if err := call.Validate(); err != nil {
		p.appendToolError(call, fmt.Errorf("%w: %v", commons.ErrInvalidToolCall, err))
		return
	}

	sctx, cancel := context.WithTimeout(ctx, p.searchTimeout)
	candidates, err := p.search.Search(sctx, call.Query, call.TopK)
	cancel()

	obs := domain.StatusObservation{
		SessionID: p.sessionID,
		Kind:      domain.ObsSearchAttempt,
		EmittedAt: time.Now(),
		Query:     call.Query,
	}
	if err != nil {
		obs.ErrorKind = "search"
		obs.Text = err.Error()
		p.journal.Append(obs)
		p.appendToolError(call, err)
		return
	}
	obs.Results = candidates
	p.journal.Append(obs)

	p.mu.Lock()
	p.lastCandidates = candidates
	p.mu.Unlock()

	result := domain.SearchResult{CallID: call.CallID, Query: call.Query, Candidates: candidates}
	if result.Empty() {
		result.Reason = "no matching clips"
	}
	p.context.Append(llm.Turn{
		Role:       "tool",
		Content:    encodeSearchResult(result),
		ToolCallID: call.CallID,
		ToolName:   string(domain.ToolSearchClips),
	})
}

func (p *Pipeline) handlePlayClip(ctx context.Context, call domain.ToolCall) {
	if err := call.Validate(); err != nil {
		wrapped := fmt.Errorf("%w: %v", commons.ErrInvalidToolCall, err)
		p.journal.Append(domain.StatusObservation{
			SessionID: p.sessionID,
			Kind:      domain.ObsError,
			EmittedAt: time.Now(),
			ErrorKind: "invalid_tool_call",
			Text:      wrapped.Error(),
		})
		p.appendToolError(call, wrapped)
		return
	}

	candidate, known := p.lookupCandidate(call.ClipID)
	if p.strictClipValidation && !known {
		err := fmt.Errorf("%w: clip_id %s not present in last search results", commons.ErrInvalidToolCall, call.ClipID)
		p.journal.Append(domain.StatusObservation{
			SessionID: p.sessionID,
			Kind:      domain.ObsError,
			EmittedAt: time.Now(),
			ErrorKind: "invalid_tool_call",
			Text:      err.Error(),
		})
		p.appendToolError(call, err)
		return
	}

	seq, err := p.registry.NextCommandSeq(p.sessionID)
	if err != nil {
		p.appendToolError(call, err)
		return
	}

	sourceURI := call.ClipID
	if known {
		sourceURI = candidate.SourceURI
	}
	cmd := domain.PlayCommand{
		SessionID:    p.sessionID,
		SourceURI:    sourceURI,
		StartSeconds: call.StartSeconds,
		EndSeconds:   call.EndSeconds,
		IssuedAt:     time.Now(),
		CommandSeq:   seq,
	}

	p.journal.Append(domain.StatusObservation{
		SessionID:  p.sessionID,
		Kind:       domain.ObsClipSelected,
		EmittedAt:  time.Now(),
		ClipID:     call.ClipID,
		CommandSeq: seq,
	})

	payload, err := json.Marshal(cmd)
	if err != nil {
		p.appendToolError(call, err)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	sendErr := p.gateway.SendAppMessage(sctx, p.roomURL, payload, transport.Any)
	cancel()

	if sendErr != nil {
		p.journal.Append(domain.StatusObservation{
			SessionID:  p.sessionID,
			Kind:       domain.ObsError,
			EmittedAt:  time.Now(),
			ErrorKind:  "transport",
			Text:       sendErr.Error(),
			CommandSeq: seq,
		})
		p.appendToolError(call, sendErr)
		return
	}

	p.journal.Append(domain.StatusObservation{
		SessionID:  p.sessionID,
		Kind:       domain.ObsClipPlayed,
		EmittedAt:  time.Now(),
		ClipID:     call.ClipID,
		CommandSeq: seq,
	})
	p.context.Append(llm.Turn{
		Role:       "tool",
		Content:    "clip dispatched to edge",
		ToolCallID: call.CallID,
		ToolName:   string(domain.ToolPlayClip),
	})
}

func (p *Pipeline) lookupCandidate(clipID string) (domain.ClipCandidate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.lastCandidates {
		if c.ClipID == clipID {
			return c, true
		}
	}
	return domain.ClipCandidate{}, false
}

func (p *Pipeline) appendToolError(call domain.ToolCall, err error) {
	p.context.Append(llm.Turn{
		Role:       "tool",
		Content:    fmt.Sprintf("error: %v", err),
		ToolCallID: call.CallID,
		ToolName:   string(call.Kind),
	})
}

func (p *Pipeline) recordLLMFailure(ctx context.Context, err error) {
	p.mu.Lock()
	p.llmFailures++
	n := p.llmFailures
	p.mu.Unlock()

	p.journal.Append(domain.StatusObservation{
		SessionID: p.sessionID,
		Kind:      domain.ObsError,
		EmittedAt: time.Now(),
		ErrorKind: "llm",
		Text:      err.Error(),
	})
	p.log.Warnw("llm turn failed", "session_id", p.sessionID, "consecutive_failures", n, "err", err)

	if n >= p.maxConsecutiveLLMFailures {
		p.requestCleanup(ctx, "max_consecutive_llm_failures")
	}
}

func (p *Pipeline) resetLLMFailures() {
	p.mu.Lock()
	p.llmFailures = 0
	p.mu.Unlock()
}

func (p *Pipeline) recordStall(ctx context.Context) {
	p.mu.Lock()
	p.stallCount++
	n := p.stallCount
	p.mu.Unlock()

	if n >= stallThreshold {
		p.journal.Append(domain.StatusObservation{
			SessionID: p.sessionID,
			Kind:      domain.ObsError,
			EmittedAt: time.Now(),
			ErrorKind: "stalled",
			Text:      "no tool call for 3 consecutive turns",
		})
		p.requestCleanup(ctx, "stalled")
	}
}

func (p *Pipeline) resetStall() {
	p.mu.Lock()
	p.stallCount = 0
	p.mu.Unlock()
}

func (p *Pipeline) requestCleanup(ctx context.Context, reason string) {
	if p.cleanup == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, p.cleanupTimeout)
	defer cancel()
	p.log.Infow("pipeline requesting cleanup", "session_id", p.sessionID, "reason", reason)
	p.cleanup.RequestCleanup(cctx, p.sessionID)
}

func encodeSearchResult(r domain.SearchResult) string {
	type candidateView struct {
		ClipID  string  `json:"clip_id"`
		Caption string  `json:"caption"`
		Start   float64 `json:"start_seconds"`
		End     float64 `json:"end_seconds"`
		Score   float64 `json:"score"`
	}
	view := struct {
		Query      string          `json:"query"`
		Candidates []candidateView `json:"candidates"`
		Reason     string          `json:"reason,omitempty"`
	}{Query: r.Query}

	for _, c := range r.Candidates {
		view.Candidates = append(view.Candidates, candidateView{
			ClipID:  c.ClipID,
			Caption: c.Caption,
			Start:   c.StartSeconds,
			End:     c.EndSeconds,
			Score:   c.Score,
		})
	}
	view.Reason = r.Reason

	b, err := json.Marshal(view)
	if err != nil {
		return fmt.Sprintf(`{"query":%q,"candidates":[]}`, r.Query)
	}
	return string(b)
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
