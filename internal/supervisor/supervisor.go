// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package supervisor manages the external OS processes spawned on the edge
// device that captures audio and plays video. No collaborator in the
// dependency pack models local/remote OS process supervision, so this is
// built directly on stdlib os/syscall signals.
package supervisor

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/rapidaai/clipcast/internal/domain"
	"github.com/rapidaai/clipcast/pkg/commons"
)

// Supervisor tracks edge-device PIDs per session and terminates them on
// request. It never assumes the process lives on this host; Killer and
// Alive can be replaced with a network call that obeys the same soft-stop →
// forced-kill contract.
type Supervisor struct {
	log commons.Logger

	mu    sync.Mutex
	edges map[string]map[domain.EdgeRole]int // sessionID -> role -> pid

	// Killer sends a signal to pid. Overridden in tests and substituted with
	// a remote invocation when the edge device runs on another host.
	Killer func(pid int, sig syscall.Signal) error
	// Alive reports whether pid is still running.
	Alive func(pid int) bool

	// SoftStopWait and ForceKillWait are the spec-mandated 3s/2s budgets,
	// exposed for tests to shrink.
	SoftStopWait  time.Duration
	ForceKillWait time.Duration
	pollInterval  time.Duration
}

// New builds a Supervisor using real OS signals.
func New(log commons.Logger) *Supervisor {
	return &Supervisor{
		log:           log,
		edges:         make(map[string]map[domain.EdgeRole]int),
		Killer:        signalProcess,
		Alive:         processAlive,
		SoftStopWait:  3 * time.Second,
		ForceKillWait: 2 * time.Second,
		pollInterval:  50 * time.Millisecond,
	}
}

// Register records that pid is claimed by role for sessionID.
func (s *Supervisor) Register(sessionID string, role domain.EdgeRole, pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.edges[sessionID] == nil {
		s.edges[sessionID] = make(map[domain.EdgeRole]int)
	}
	s.edges[sessionID][role] = pid
	s.log.Infow("edge pid registered", "session", sessionID, "role", role, "pid", pid)
}

// TerminationReport summarizes the outcome of Terminate for one session.
type TerminationReport struct {
	CaptureTerminated bool
	PlayerTerminated  bool
	Errors            []error
}

// terminationOrder is fixed by spec: capture before player.
var terminationOrder = []domain.EdgeRole{domain.RoleCapture, domain.RolePlayer}

// Terminate attempts orderly termination of every registered PID for
// sessionID, in order {capture, player}: soft-stop, wait up to 3s, escalate
// to SIGKILL, wait up to 2s, verify absent. Missing PIDs are not errors.
func (s *Supervisor) Terminate(sessionID string) TerminationReport {
	s.mu.Lock()
	roles := s.edges[sessionID]
	s.mu.Unlock()

	report := TerminationReport{}
	if roles == nil {
		report.CaptureTerminated = true
		report.PlayerTerminated = true
		return report
	}

	for _, role := range terminationOrder {
		pid, ok := roles[role]
		ok = ok && pid > 0
		terminated := true
		if ok {
			terminated = s.terminateOne(sessionID, role, pid)
			if !terminated {
				report.Errors = append(report.Errors, fmt.Errorf("%w: session %s role %s pid %d", commons.ErrTerminationFailed, sessionID, role, pid))
			}
		}
		switch role {
		case domain.RoleCapture:
			report.CaptureTerminated = terminated
		case domain.RolePlayer:
			report.PlayerTerminated = terminated
		}
	}

	return report
}

// Forget drops sessionID's tracked PIDs. Callers must only call this once
// VerifyClean(sessionID) has confirmed no edge process is still alive;
// forgetting first would make VerifyClean vacuously true.
func (s *Supervisor) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, sessionID)
}

func (s *Supervisor) terminateOne(sessionID string, role domain.EdgeRole, pid int) bool {
	if !s.Alive(pid) {
		return true
	}

	if err := s.Killer(pid, syscall.SIGTERM); err != nil {
		s.log.Warnw("soft-stop signal failed", "session", sessionID, "role", role, "pid", pid, "err", err)
	}
	if !s.waitGone(pid, s.SoftStopWait) {
		if err := s.Killer(pid, syscall.SIGKILL); err != nil {
			s.log.Warnw("forced kill failed", "session", sessionID, "role", role, "pid", pid, "err", err)
		}
		if !s.waitGone(pid, s.ForceKillWait) {
			s.log.Errorw("edge process did not terminate", "session", sessionID, "role", role, "pid", pid)
			return false
		}
	}
	return true
}

func (s *Supervisor) waitGone(pid int, budget time.Duration) bool {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		if !s.Alive(pid) {
			return true
		}
		time.Sleep(s.pollInterval)
	}
	return !s.Alive(pid)
}

// VerifyClean confirms no registered PID for sessionID is still alive.
func (s *Supervisor) VerifyClean(sessionID string) bool {
	s.mu.Lock()
	roles := s.edges[sessionID]
	s.mu.Unlock()

	for _, pid := range roles {
		if pid > 0 && s.Alive(pid) {
			return false
		}
	}
	return true
}

func signalProcess(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

func processAlive(pid int) bool {
	// Signal 0 performs no-op existence/permission checking per POSIX kill(2).
	return syscall.Kill(pid, syscall.Signal(0)) == nil
}
