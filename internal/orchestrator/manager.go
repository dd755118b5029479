// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package orchestrator wires C1-C8 into the running system: it owns the
// Session Registry, Status Journal store, device Supervisor, and launches
// one Conversation Pipeline actor per session, translating Transport Gateway
// events into the frames the pipeline consumes. It is the single
// implementation of registry.CleanupRequester, so a session tears down
// identically whether the trigger was the reaper, an LLM failure threshold,
// a stalled conversation, or an operator-initiated cleanup-room call.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rapidaai/clipcast/config"
	"github.com/rapidaai/clipcast/internal/clipsearch"
	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/internal/journal"
	"github.com/rapidaai/clipcast/internal/llm"
	"github.com/rapidaai/clipcast/internal/pipeline"
	"github.com/rapidaai/clipcast/internal/registry"
	"github.com/rapidaai/clipcast/internal/supervisor"
	"github.com/rapidaai/clipcast/internal/transcriber"
	"github.com/rapidaai/clipcast/internal/transport"
	"github.com/rapidaai/clipcast/pkg/commons"
)

// TranscriberFactory builds a fresh Transcriber for one session; adapters
// such as the Deepgram client hold per-connection state and cannot be
// shared across sessions.
type TranscriberFactory func() transcriber.Transcriber

// Manager is the orchestrator's single entrypoint for session lifecycle.
type Manager struct {
	log        commons.Logger
	cfg        *config.AppConfig
	registry   *registry.Registry
	journals   *journal.Store
	gateway    transport.Gateway
	supervisor *supervisor.Supervisor
	search     clipsearch.Client
	model      llm.Model
	newTranscriber TranscriberFactory

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
}

// New builds a Manager. Callers must call Start to launch the reaper.
func New(
	cfg *config.AppConfig,
	log commons.Logger,
	reg *registry.Registry,
	journals *journal.Store,
	gateway transport.Gateway,
	sup *supervisor.Supervisor,
	search clipsearch.Client,
	model llm.Model,
	newTranscriber TranscriberFactory,
) *Manager {
	return &Manager{
		log:            log,
		cfg:            cfg,
		registry:       reg,
		journals:       journals,
		gateway:        gateway,
		supervisor:     sup,
		search:         search,
		model:          model,
		newTranscriber: newTranscriber,
		sessions:       make(map[string]context.CancelFunc),
	}
}

// Start launches the registry's reaper against this Manager's CleanupRequester
// implementation. It blocks until ctx is cancelled; callers should run it in
// its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	policy := registry.TimeoutPolicy{
		ConnectTimeout: m.cfg.Session.ConnectTimeout(),
		IdleTimeout:    m.cfg.Session.IdleTimeout(),
		TransportGrace: m.cfg.Session.TransportGrace(),
		SweepInterval:  m.cfg.Session.ReaperInterval(),
	}
	m.registry.RunReaper(ctx, policy, m)
}

// CreateSession provisions a new room, registers a session for it, and
// launches its pipeline actor. Returns the session snapshot and the bot
// token the caller hands to the edge device.
func (m *Manager) CreateSession(ctx context.Context) (domain.Snapshot, string, error) {
	roomURL, botToken, err := m.gateway.CreateRoom(ctx)
	if err != nil {
		return domain.Snapshot{}, "", fmt.Errorf("creating room: %w", err)
	}

	sess, err := m.registry.Create(roomURL)
	if err != nil {
		_ = m.gateway.DestroyRoom(ctx, roomURL)
		return domain.Snapshot{}, "", err
	}

	if _, err := m.registry.Transition(sess.Identifier, registry.EventRoomCreated); err != nil {
		_ = m.gateway.DestroyRoom(ctx, roomURL)
		return domain.Snapshot{}, "", err
	}

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Lock()
	m.sessions[sess.Identifier] = cancel
	m.mu.Unlock()

	go m.runSession(sessCtx, sess)

	return sess.Snapshot(), botToken, nil
}

// runSession bridges transport Events into the pipeline's frame channel and
// runs the pipeline until its context is cancelled or the event stream ends.
func (m *Manager) runSession(ctx context.Context, sess *domain.Session) {
	events, err := m.gateway.Subscribe(ctx, sess.RoomURL)
	if err != nil {
		m.log.Errorw("subscribing to room failed", "session_id", sess.Identifier, "err", err)
		return
	}

	j := m.journals.GetOrCreate(sess.Identifier)
	frames := make(chan transcriber.Frame, 64)

	go m.pumpEvents(ctx, sess, events, j, frames)

	p := pipeline.New(pipeline.Deps{
		Log:                       m.log,
		Gateway:                   m.gateway,
		Transcriber:               m.newTranscriber(),
		Search:                    m.search,
		Model:                     m.model,
		Journal:                   j,
		Registry:                  m.registry,
		SessionID:                 sess.Identifier,
		RoomURL:                   sess.RoomURL,
		ContextTurns:              m.cfg.LLM.ContextTurns,
		LLMTimeout:                m.cfg.LLM.TurnTimeout(),
		SearchTimeout:             m.cfg.Search.Timeout(),
		SendTimeout:               3 * time.Second,
		CleanupTimeout:            m.cfg.Session.CleanupTimeout(),
		MaxConsecutiveLLMFailures: m.cfg.LLM.MaxConsecutiveErr,
		StrictClipValidation:      m.cfg.Tooling.StrictClipValidation,
		Cleanup:                   m,
	})

	if err := p.Run(ctx, frames); err != nil && ctx.Err() == nil {
		m.log.Warnw("pipeline exited", "session_id", sess.Identifier, "err", err)
	}
}

func (m *Manager) pumpEvents(ctx context.Context, sess *domain.Session, events <-chan transport.Event, j *journal.Journal, frames chan<- transcriber.Frame) {
	defer close(frames)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case transport.EventParticipantJoined:
				if !ev.IsBot {
					_, _ = m.registry.Transition(sess.Identifier, registry.EventParticipantJoined)
				}
			case transport.EventParticipantLeft:
				if !ev.IsBot {
					_, _ = m.registry.Transition(sess.Identifier, registry.EventTransportLost)
				}
			case transport.EventAudioFrame:
				select {
				case frames <- transcriber.Frame{PCM: ev.PCM, SampleRate: ev.SampleRate}:
				default:
					m.log.Warnw("dropping audio frame, pipeline not keeping up", "session_id", sess.Identifier)
				}
			case transport.EventGap:
				j.Append(domain.StatusObservation{
					SessionID: sess.Identifier,
					Kind:      domain.ObsProcessEvent,
					EmittedAt: time.Now(),
					Text:      "transport resubscribed; some events may have been missed",
				})
			}
		}
	}
}

// RegisterEdgePID attaches pid under role to the session owning roomURL and
// tells the Supervisor to track it.
func (m *Manager) RegisterEdgePID(roomURL string, role domain.EdgeRole, pid int) error {
	sess, err := m.registry.GetByRoom(roomURL)
	if err != nil {
		return err
	}
	if err := m.registry.RegisterEdgePID(roomURL, role, pid); err != nil {
		return err
	}
	m.supervisor.Register(sess.Identifier, role, pid)
	return nil
}

// CleanupRoom is the operator-initiated teardown path (spec's cleanup-room
// facade call): it drives the session to Terminating, then runs the same
// termination logic the reaper and pipeline use, returning the terminal
// report spec §6 mandates. Calling it on a room that was already fully
// cleaned up and removed is idempotent: it reports every resource already
// terminated rather than erroring, matching spec §8's double-cleanup case.
func (m *Manager) CleanupRoom(ctx context.Context, roomURL string) (domain.CleanupReport, error) {
	sess, err := m.registry.GetByRoom(roomURL)
	if err != nil {
		if errors.Is(err, commons.ErrUnknownRoom) {
			return domain.CleanupReport{BotTerminated: true, PiClientTerminated: true, VideoServiceTerminated: true}, nil
		}
		return domain.CleanupReport{}, err
	}
	if _, err := m.registry.Transition(sess.Identifier, registry.EventCleanupRequested); err != nil {
		return domain.CleanupReport{}, err
	}
	return m.terminateSession(ctx, sess.Identifier), nil
}

// RequestCleanup implements registry.CleanupRequester. It runs the same
// termination logic CleanupRoom uses but discards the report beyond
// logging, since the reaper and the pipeline's stall/failure detection
// have no caller waiting on a report.
func (m *Manager) RequestCleanup(ctx context.Context, identifier string) {
	report := m.terminateSession(ctx, identifier)
	for _, e := range report.Errors {
		m.log.Warnw("cleanup reported an error", "session_id", identifier, "err", e)
	}
}

// terminateSession runs the full teardown sequence for identifier: kill
// registered edge processes, destroy the transport room, and only advance
// past Terminating to Terminated (releasing the session from the registry
// and journal store) once supervisor.VerifyClean confirms no edge process
// survived. Spec §4.6: "Terminating → Terminated only when all owned
// resources released AND verify_clean=true" — a session whose edge process
// refuses to die stays in Terminating so a later cleanup attempt can retry.
func (m *Manager) terminateSession(ctx context.Context, identifier string) domain.CleanupReport {
	sess, err := m.registry.GetByIdentifier(identifier)
	if err != nil {
		return domain.CleanupReport{BotTerminated: true, PiClientTerminated: true, VideoServiceTerminated: true}
	}

	termReport := m.supervisor.Terminate(identifier)
	report := domain.CleanupReport{
		PiClientTerminated:     termReport.CaptureTerminated,
		VideoServiceTerminated: termReport.PlayerTerminated,
	}
	for _, e := range termReport.Errors {
		report.Errors = append(report.Errors, e.Error())
	}

	if err := m.gateway.DestroyRoom(ctx, sess.RoomURL); err != nil {
		m.log.Warnw("destroying room failed", "session_id", identifier, "room_url", sess.RoomURL, "err", err)
		report.Errors = append(report.Errors, err.Error())
	} else {
		report.BotTerminated = true
	}

	clean := m.supervisor.VerifyClean(identifier)
	if !clean {
		report.Errors = append(report.Errors, fmt.Sprintf("%v: edge process still alive for session %s", commons.ErrTerminationFailed, identifier))
		m.log.Warnw("verify_clean failed, session remains in Terminating", "session_id", identifier)
		return report
	}
	m.supervisor.Forget(identifier)

	if _, err := m.registry.Transition(identifier, registry.EventResourcesReleased); err != nil {
		m.log.Warnw("terminal transition failed", "session_id", identifier, "err", err)
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	m.mu.Lock()
	if cancel, ok := m.sessions[identifier]; ok {
		cancel()
		delete(m.sessions, identifier)
	}
	m.mu.Unlock()

	if err := m.registry.Remove(identifier); err != nil {
		m.log.Warnw("removing session failed", "session_id", identifier, "err", err)
		report.Errors = append(report.Errors, err.Error())
	}
	m.journals.Delete(identifier)

	return report
}

// ListSessions returns a snapshot of every tracked session.
func (m *Manager) ListSessions() []domain.Snapshot {
	return m.registry.ListActive()
}

// ConversationStatus answers spec §6's /conversation-status/{identifier}
// poll: the session's current state, whether the user's last utterance is
// still awaiting a reply (the most recent journal entry is a user
// utterance with no assistant/tool response yet), and the journal context
// since lastSeen.
func (m *Manager) ConversationStatus(identifier string, lastSeen uint64) (domain.ConversationStatus, error) {
	sess, err := m.registry.GetByIdentifier(identifier)
	if err != nil {
		return domain.ConversationStatus{}, err
	}

	j, ok := m.journals.Get(identifier)
	if !ok {
		return domain.ConversationStatus{State: sess.State}, nil
	}

	lastKind, hasEntries := j.LastKind()
	return domain.ConversationStatus{
		State:        sess.State,
		UserSpeaking: hasEntries && lastKind == domain.ObsUserUtterance,
		Context: domain.ConversationContext{
			StatusMessages:    j.Since(lastSeen),
			TotalMessageCount: j.TotalCount(),
		},
	}, nil
}
