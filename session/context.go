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

package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sage-x-project/warden/catalog"
	"github.com/sage-x-project/warden/internal/metrics"
	"github.com/sage-x-project/warden/wcrypto"
)

// SeedTransform computes the value a genuine client is expected to
// return for a given server seed. The real transform lives in the
// client binary and is not something this module can derive on its
// own; callers must supply the function their deployment actually uses.
// DefaultSeedTransform is a documented stand-in, not a real
// implementation — see DESIGN.md.
type SeedTransform func(serverSeed []byte) []byte

// DefaultSeedTransform XORs every byte with 0xA5. It exists so the
// package is usable out of the box in tests and examples; production
// callers must override it with the transform their client build uses.
func DefaultSeedTransform(serverSeed []byte) []byte {
	out := make([]byte, len(serverSeed))
	for i, b := range serverSeed {
		out[i] = b ^ 0xA5
	}
	return out
}

// Context is one client's SessionContext: its phase, its module
// assignment, its two keystreams, and whatever check batch is currently
// in flight. It is owned exclusively by WardenManager; all mutators
// below acquire the per-session lock.
type Context struct {
	mu sync.Mutex

	id        string
	accountID string

	createdAt    time.Time
	lastActivity time.Time

	phase Phase

	moduleFP      [catalog.ShaSize]byte
	serverSeed    []byte
	transform     SeedTransform
	seedStartedAt time.Time

	keyHalfA []byte
	keyHalfB []byte

	keystreamIn  *wcrypto.Keystream
	keystreamOut *wcrypto.Keystream

	pendingBatch   []catalog.Entry
	pendingXorkey  byte
	pendingBatchID string
	batchIssuedAt  time.Time
	replyDeadline  time.Time
	nextCheckDue   time.Time

	failCount int
	config    Config
	closed    bool
}

// New creates a SessionContext in the Unregistered phase for a client
// identified by id/accountID, carrying the 40-byte session key halves
// the game-session layer supplied at registration.
func New(id, accountID string, keyHalves [40]byte, cfg Config) *Context {
	now := time.Now()
	return &Context{
		id:           id,
		accountID:    accountID,
		createdAt:    now,
		lastActivity: now,
		phase:        Unregistered,
		keyHalfA:     append([]byte(nil), keyHalves[:20]...),
		keyHalfB:     append([]byte(nil), keyHalves[20:]...),
		transform:    DefaultSeedTransform,
		config:       withDefaults(cfg),
	}
}

// ID returns the session identifier.
func (c *Context) ID() string { return c.id }

// AccountID returns the owning account identifier.
func (c *Context) AccountID() string { return c.accountID }

// Phase returns the current lifecycle phase.
func (c *Context) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SetPhase transitions the session to a new phase.
func (c *Context) SetPhase(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = p
	c.lastActivity = time.Now()
}

// SetTransform overrides the seed-transform function used to validate a
// client's TransformingSeed response. Call before StartSeedTransform.
func (c *Context) SetTransform(fn SeedTransform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn != nil {
		c.transform = fn
	}
}

// KeyHalves returns the session key halves forwarded to the key daemon
// on a NEW_KEYS_REQ.
func (c *Context) KeyHalves() (a, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.keyHalfA...), append([]byte(nil), c.keyHalfB...)
}

// StartSeedTransform records serverSeed (16 random bytes, supplied by the
// caller) and moves the session to TransformingSeed. The expected client
// response is computed later, by ValidateTransformedSeed, with the
// configured SeedTransform.
func (c *Context) StartSeedTransform(serverSeed []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverSeed = append([]byte(nil), serverSeed...)
	c.phase = TransformingSeed
	now := time.Now()
	c.seedStartedAt = now
	c.lastActivity = now
}

// SeedTransformElapsed reports how long has passed since StartSeedTransform
// dispatched the server seed this session is expected to answer. Callers
// use it to observe the round-trip once ValidateTransformedSeed passes.
func (c *Context) SeedTransformElapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.seedStartedAt)
}

// ValidateTransformedSeed reports whether got matches the transform this
// session expects for the server seed it issued.
func (c *Context) ValidateTransformedSeed(got []byte) bool {
	c.mu.Lock()
	expected := c.transform(c.serverSeed)
	c.mu.Unlock()
	if len(expected) != len(got) {
		return false
	}
	for i := range expected {
		if expected[i] != got[i] {
			return false
		}
	}
	return true
}

// SetModuleFingerprint records which catalog module this client was
// assigned during LoadingModule.
func (c *Context) SetModuleFingerprint(fp [catalog.ShaSize]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moduleFP = fp
}

// ModuleFingerprint returns the module this session was assigned.
func (c *Context) ModuleFingerprint() [catalog.ShaSize]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moduleFP
}

// InstallKeys seeds both keystreams from the daemon's NEW_KEYS_RSP and
// advances the session to ChecksOutstanding. clientKey feeds the inbound
// (client->server) stream, serverKey the outbound stream.
func (c *Context) InstallKeys(clientKey, serverKey []byte) error {
	in, err := wcrypto.NewKeystream(clientKey)
	if err != nil {
		return fmt.Errorf("install inbound keystream: %w", err)
	}
	out, err := wcrypto.NewKeystream(serverKey)
	if err != nil {
		return fmt.Errorf("install outbound keystream: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.keystreamIn = in
	c.keystreamOut = out
	c.phase = ChecksOutstanding
	c.lastActivity = time.Now()
	return nil
}

// EncryptOutbound XORs buf in place with the outbound keystream.
func (c *Context) EncryptOutbound(buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keystreamOut == nil {
		return fmt.Errorf("session %s: outbound keystream not installed", c.id)
	}
	c.keystreamOut.Apply(buf)
	metrics.CryptoOperations.WithLabelValues("encrypt").Inc()
	return nil
}

// DecryptInbound XORs buf in place with the inbound keystream.
func (c *Context) DecryptInbound(buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keystreamIn == nil {
		return fmt.Errorf("session %s: inbound keystream not installed", c.id)
	}
	c.keystreamIn.Apply(buf)
	metrics.CryptoOperations.WithLabelValues("decrypt").Inc()
	return nil
}

// StageBatch records the outstanding check batch and its reply deadline.
// batchID is an opaque identifier (the caller's choice, typically a
// UUID) used only for log/metric correlation between issue and reply.
func (c *Context) StageBatch(checks []catalog.Entry, xorkey byte, batchID string, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.pendingBatch = checks
	c.pendingXorkey = xorkey
	c.pendingBatchID = batchID
	c.batchIssuedAt = now
	c.replyDeadline = now.Add(timeout)
	c.phase = ChecksOutstanding
}

// ConsumeReply returns and clears the outstanding batch and its
// correlation id, along with how long it took from StageBatch to this
// call, reporting whether one was actually staged.
func (c *Context) ConsumeReply() ([]catalog.Entry, byte, string, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingBatch == nil {
		return nil, 0, "", 0, false
	}
	batch, xorkey, batchID := c.pendingBatch, c.pendingXorkey, c.pendingBatchID
	elapsed := time.Since(c.batchIssuedAt)
	c.pendingBatch = nil
	c.pendingBatchID = ""
	c.phase = ChecksReceived
	c.lastActivity = time.Now()
	return batch, xorkey, batchID, elapsed, true
}

// PendingBatchLen reports how many checks are in the currently staged
// batch, used by operator tooling to summarize session state.
func (c *Context) PendingBatchLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pendingBatch)
}

// IsReplyOverdue reports whether the staged batch's deadline has passed.
func (c *Context) IsReplyOverdue(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingBatch != nil && now.After(c.replyDeadline)
}

// SetNextCheckDue records when this session becomes eligible for its
// next batch, used after a passing ChecksReceived result.
func (c *Context) SetNextCheckDue(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextCheckDue = t
}

// NextCheckDueReached reports whether now has passed the scheduled next
// batch time set by SetNextCheckDue.
func (c *Context) NextCheckDueReached(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.nextCheckDue.IsZero() && !now.Before(c.nextCheckDue)
}

// RecordFailure increments the consecutive-failure counter and reports
// whether the session has now reached its configured tolerance
// (MaxConsecutiveFails consecutive failures).
func (c *Context) RecordFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failCount++
	return c.failCount >= c.config.MaxConsecutiveFails
}

// RecordSuccess resets the consecutive-failure counter.
func (c *Context) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failCount = 0
}

// LastActivity returns the last time this session's phase or batch was
// touched.
func (c *Context) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Close zeroes all key material and discards the pending batch. It is
// safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.keystreamIn != nil {
		c.keystreamIn.Zero()
	}
	if c.keystreamOut != nil {
		c.keystreamOut.Zero()
	}
	zero(c.keyHalfA)
	zero(c.keyHalfB)
	zero(c.serverSeed)
	c.pendingBatch = nil
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
