// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package warden

import (
	"encoding/hex"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/warden/catalog"
	"github.com/sage-x-project/warden/daemonlink"
	"github.com/sage-x-project/warden/internal/logger"
	"github.com/sage-x-project/warden/internal/metrics"
	"github.com/sage-x-project/warden/protocol"
	"github.com/sage-x-project/warden/session"
)

// Linker is the subset of *daemonlink.Link the Manager depends on,
// narrowed so tests can substitute a fake transport without a real TCP
// daemon.
type Linker interface {
	State() daemonlink.State
	RequestKeys(sessionID string, halfA, halfB []byte)
}

// Manager is the single per-process orchestrator: it owns every
// SessionContext by stable handle, the check catalog, and the daemon
// link, and drives each session's state machine to completion or
// discipline. The global structures it touches directly (catalog module
// exclusion set, link) are guarded by one coarse lock; per-session state
// lives in session.Context's own lock.
type Manager struct {
	mu sync.Mutex

	cat       *catalog.Catalog
	link      Linker
	registry  *session.Registry
	sink      SessionSink
	transport ClientTransport
	cfg       Config
	log       logger.Logger

	excludedModules map[string]bool
}

// NewManager wires a Manager from its collaborators. link must also be
// started (its Run loop) by the caller; Manager only calls RequestKeys
// and reads State.
func NewManager(cat *catalog.Catalog, link Linker, sink SessionSink, transport ClientTransport, cfg Config, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Manager{
		cat:             cat,
		link:            link,
		registry:        session.NewRegistry(),
		sink:            sink,
		transport:       transport,
		cfg:             cfg.withDefaults(),
		log:             log,
		excludedModules: make(map[string]bool),
	}
}

// Status reports the current session population by phase.
func (m *Manager) Status() session.Status {
	status := m.registry.Status()
	m.reportPhaseGauge(status)
	return status
}

// reportPhaseGauge refreshes SessionsByPhase from status, resetting
// stale phase labels first so a phase that drains to zero doesn't
// linger at its last observed value.
func (m *Manager) reportPhaseGauge(status session.Status) {
	metrics.SessionsByPhase.Reset()
	for phase, n := range status.ByPhase {
		metrics.SessionsByPhase.WithLabelValues(phase.String()).Set(float64(n))
	}
}

// Register admits a newly authenticated game session. If the daemon
// link is not Ready, the session parks in NeedsWarden and is retried on
// every Update tick rather than failing registration outright.
func (m *Manager) Register(sessionID, accountID string, keyHalves [40]byte) {
	ctx := session.New(sessionID, accountID, keyHalves, session.Config{ReplyTimeout: m.cfg.ReplyTimeout})
	m.registry.Put(ctx)
	metrics.SessionsRegistered.Inc()
	m.tryAdvanceRegistration(ctx)
}

// Unregister discards a session's state immediately. Any daemon key
// request it had in flight is not cancelled; InstallKeys finds no live
// session for it and drops the response as an orphan.
func (m *Manager) Unregister(sessionID string) {
	m.registry.Remove(sessionID)
}

func (m *Manager) tryAdvanceRegistration(ctx *session.Context) {
	if m.link.State() != daemonlink.Ready {
		ctx.SetPhase(session.NeedsWarden)
		return
	}
	mod, err := m.pickModule()
	if err != nil {
		m.log.Warn("warden: no module available, parking session", logger.String("session_id", ctx.ID()), logger.Error(err))
		ctx.SetPhase(session.NeedsWarden)
		return
	}
	ctx.SetModuleFingerprint(mod.Fingerprint)
	ctx.SetPhase(session.LoadingModule)
	if err := m.transport.SendToClient(ctx.ID(), byte(protocol.OpLoadModule), append([]byte(nil), mod.Fingerprint[:]...)); err != nil {
		m.log.Warn("warden: failed to send load-module", logger.String("session_id", ctx.ID()), logger.Error(err))
	}
}

// pickModule draws a module, skipping fingerprints this process has
// already learned are missing on disk (scenario: module missing on
// disk). The catalog's own Refresh/RandomModule already filters modules
// absent at last refresh; excludedModules covers ones discovered stale
// between refreshes.
func (m *Manager) pickModule() (catalog.Module, error) {
	m.cat.Refresh()
	for i := 0; i < 5; i++ {
		mod, err := m.cat.RandomModule()
		if err != nil {
			return catalog.Module{}, err
		}
		if !m.isExcluded(mod.Fingerprint) {
			return mod, nil
		}
	}
	return catalog.Module{}, catalog.ErrCatalogEmpty
}

func (m *Manager) isExcluded(fp [catalog.ShaSize]byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.excludedModules[hex.EncodeToString(fp[:])]
}

func (m *Manager) excludeModule(fp [catalog.ShaSize]byte) {
	m.mu.Lock()
	m.excludedModules[hex.EncodeToString(fp[:])] = true
	m.mu.Unlock()
}

// OnClientPacket advances sessionID's state machine in response to one
// decoded client acknowledgement.
func (m *Manager) OnClientPacket(sessionID string, ack ClientAck, payload []byte) error {
	ctx, ok := m.registry.Get(sessionID)
	if !ok {
		return ErrSessionUnknown
	}

	switch ack {
	case AckModuleMissing:
		return m.handleModuleMissing(ctx)
	case AckModuleLoaded:
		return m.handleModuleLoaded(ctx)
	case AckModuleFailed:
		metrics.ModuleLoadResults.WithLabelValues("failed").Inc()
		m.discipline(ctx, "module-load-failed")
		return nil
	case AckSeedTransformed:
		return m.handleSeedTransformed(ctx, payload)
	case AckCheckReply:
		return m.handleCheckReply(ctx, payload)
	default:
		return ErrUnexpectedAck
	}
}

func (m *Manager) handleModuleMissing(ctx *session.Context) error {
	if ctx.Phase() != session.LoadingModule {
		return ErrUnexpectedAck
	}
	// The client reports it lacks the module bytes on disk; re-pick so
	// the next attempt offers a (possibly different) known-good module
	// rather than retrying the same fingerprint forever.
	metrics.ModuleLoadResults.WithLabelValues("missing").Inc()
	metrics.ModulesExcluded.Inc()
	m.excludeModule(ctx.ModuleFingerprint())
	m.tryAdvanceRegistration(ctx)
	return nil
}

func (m *Manager) handleModuleLoaded(ctx *session.Context) error {
	if ctx.Phase() != session.LoadingModule {
		return ErrUnexpectedAck
	}
	metrics.ModuleLoadResults.WithLabelValues("loaded").Inc()
	seed := randomBytes(16)
	ctx.StartSeedTransform(seed)
	return m.transport.SendToClient(ctx.ID(), byte(protocol.OpHashRequest), seed)
}

func (m *Manager) handleSeedTransformed(ctx *session.Context, got []byte) error {
	if ctx.Phase() != session.TransformingSeed {
		return ErrUnexpectedAck
	}
	if !ctx.ValidateTransformedSeed(got) {
		m.discipline(ctx, "seed-transform-mismatch")
		return nil
	}
	metrics.SeedTransformDuration.Observe(ctx.SeedTransformElapsed().Seconds())
	ctx.SetPhase(session.PendingWarden)
	halfA, halfB := ctx.KeyHalves()
	m.link.RequestKeys(ctx.ID(), halfA, halfB)
	return nil
}

// InstallKeys implements daemonlink.KeyInstaller. It reports false (so
// the link logs an orphan and drops the keys) when the session is gone
// or not waiting for this answer.
func (m *Manager) InstallKeys(sessionID string, clientKey, serverKey []byte) bool {
	ctx, ok := m.registry.Get(sessionID)
	if !ok {
		return false
	}
	if ctx.Phase() != session.PendingWarden {
		return false
	}
	if err := ctx.InstallKeys(clientKey, serverKey); err != nil {
		m.log.Error("warden: failed to install session keys", logger.String("session_id", sessionID), logger.Error(err))
		return false
	}
	m.issueBatch(ctx)
	return true
}

func (m *Manager) handleCheckReply(ctx *session.Context, payload []byte) error {
	if ctx.Phase() != session.ChecksOutstanding {
		return ErrUnexpectedAck
	}
	batch, _, batchID, elapsed, ok := ctx.ConsumeReply()
	if !ok {
		return nil
	}
	metrics.CheckReplyDuration.Observe(elapsed.Seconds())

	decrypted := append([]byte(nil), payload...)
	if err := ctx.DecryptInbound(decrypted); err != nil {
		metrics.CheckReplyResults.WithLabelValues("no-keystream").Inc()
		m.discipline(ctx, "no-keystream")
		return nil
	}

	results, err := protocol.DecodeCheckResult(batch, decrypted)
	if err != nil {
		metrics.CheckReplyResults.WithLabelValues("malformed-reply").Inc()
		m.discipline(ctx, "malformed-reply")
		return nil
	}

	if !validateResults(batch, results) {
		metrics.CheckReplyResults.WithLabelValues("integrity-fail").Inc()
		m.discipline(ctx, "integrity-fail")
		return nil
	}

	metrics.CheckReplyResults.WithLabelValues("pass").Inc()
	m.log.Debug("warden: batch passed", logger.String("session_id", ctx.ID()), logger.String("batch_id", batchID))
	ctx.RecordSuccess()
	jitter := m.cfg.CheckIntervalJitter
	delay := m.cfg.CheckInterval - jitter + time.Duration(rand.Int64N(int64(2*jitter)+1))
	ctx.SetNextCheckDue(time.Now().Add(delay))
	return nil
}

func validateResults(batch []catalog.Entry, results []protocol.CheckResult) bool {
	for i, r := range results {
		if r.Kind == catalog.KindLua {
			if r.LuaStatus != 0 {
				return false
			}
			continue
		}
		if r.SHA != expectedSHA(batch[i]) {
			return false
		}
	}
	return true
}

func expectedSHA(e catalog.Entry) [catalog.ShaSize]byte {
	switch v := e.(type) {
	case catalog.MemoryCheck:
		var out [catalog.ShaSize]byte
		copy(out[:], v.Expected)
		return out
	case catalog.PageCheck:
		return v.ExpectedSHA
	case catalog.FileCheck:
		return v.ExpectedSHA
	case catalog.DriverCheck:
		return v.ExpectedSHA
	case catalog.ModuleCheck:
		return v.ExpectedSHA
	default:
		return [catalog.ShaSize]byte{}
	}
}

func (m *Manager) issueBatch(ctx *session.Context) {
	batch, err := AssembleBatch(m.cat, nil)
	if err != nil {
		m.log.Warn("warden: could not assemble batch", logger.String("session_id", ctx.ID()), logger.Error(err))
		return
	}
	xorkey := byte(rand.IntN(256))
	payload, err := protocol.EncodeCheckRequest(xorkey, batch)
	if err != nil {
		m.log.Error("warden: failed to encode check batch", logger.String("session_id", ctx.ID()), logger.Error(err))
		return
	}
	if err := ctx.EncryptOutbound(payload); err != nil {
		m.log.Error("warden: failed to encrypt check batch", logger.String("session_id", ctx.ID()), logger.Error(err))
		return
	}
	batchID := uuid.NewString()
	ctx.StageBatch(batch, xorkey, batchID, m.cfg.ReplyTimeout)
	metrics.BatchSize.Observe(float64(len(batch)))
	for _, e := range batch {
		metrics.ChecksIssued.WithLabelValues(e.Kind().String()).Inc()
	}
	m.log.Debug("warden: batch issued", logger.String("session_id", ctx.ID()), logger.String("batch_id", batchID), logger.Int("size", len(batch)))
	if err := m.transport.SendToClient(ctx.ID(), byte(protocol.OpCheatChecksRequest), payload); err != nil {
		m.log.Warn("warden: failed to send check batch", logger.String("session_id", ctx.ID()), logger.Error(err))
	}
}

// discipline kicks (and, if configured, bans) a session and removes it.
func (m *Manager) discipline(ctx *session.Context, reason string) {
	m.log.Info("warden: disciplining session", logger.String("session_id", ctx.ID()), logger.String("reason", reason))
	m.sink.Kick(ctx.ID(), reason)
	metrics.DisciplineActions.WithLabelValues("kick", reason).Inc()
	if m.cfg.BanningEnabled {
		m.sink.Ban(ctx.AccountID(), reason, 0)
		metrics.DisciplineActions.WithLabelValues("ban", reason).Inc()
	}
	ctx.SetPhase(session.Unregistered)
	m.registry.Remove(ctx.ID())
}

// Update advances sessions that don't depend on an incoming client
// packet: retrying NeedsWarden registrations, timing out overdue
// batches, and issuing the next batch once a passing session's
// scheduled delay has elapsed.
func (m *Manager) Update(now time.Time) {
	for _, ctx := range m.registry.All() {
		switch ctx.Phase() {
		case session.NeedsWarden:
			m.tryAdvanceRegistration(ctx)
		case session.ChecksOutstanding:
			if ctx.IsReplyOverdue(now) {
				m.discipline(ctx, "no-reply")
			}
		case session.ChecksReceived:
			if ctx.NextCheckDueReached(now) {
				m.issueBatch(ctx)
			}
		}
	}
	m.reportPhaseGauge(m.registry.Status())
}

func randomBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(rand.IntN(256))
	}
	return out
}
