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

package daemonlink

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sage-x-project/warden/internal/logger"
	"github.com/sage-x-project/warden/internal/metrics"
)

// Link is the single TCP client to the key/module daemon. One instance
// is owned by WardenManager for the lifetime of the process; Run blocks,
// reconnecting with backoff, until ctx is cancelled.
type Link struct {
	cfg       Config
	installer KeyInstaller
	log       logger.Logger

	mu    sync.Mutex
	conn  net.Conn

	stateMu sync.RWMutex
	state   State

	queueMu  sync.Mutex
	queue    []*keyRequest
	inFlight *keyRequest

	pingMu         sync.Mutex
	pingOutstanding bool
	pingSentAt     time.Time
}

// New creates a Link that forwards answered key requests to installer.
func New(cfg Config, installer KeyInstaller, log logger.Logger) *Link {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Link{
		cfg:       cfg.withDefaults(),
		installer: installer,
		log:       log,
		state:     Disconnected,
	}
}

// Close releases the current connection, if any. Run's reconnect loop
// is stopped by cancelling the context passed to Run, not by Close.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

// State reports the link's current connection state.
func (l *Link) State() State {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.state
}

func (l *Link) setState(s State) {
	l.stateMu.Lock()
	l.state = s
	l.stateMu.Unlock()

	for _, known := range []State{Disconnected, Connecting, Ready, Stalled} {
		v := 0.0
		if known == s {
			v = 1
		}
		metrics.DaemonLinkState.WithLabelValues(known.String()).Set(v)
	}
}

// RequestKeys enqueues a NEW_KEYS_REQ for sessionID. At most one request
// is ever in flight; additional calls queue FIFO and are sent as earlier
// requests are answered or re-sent after a reconnect.
func (l *Link) RequestKeys(sessionID string, halfA, halfB []byte) {
	req := &keyRequest{sessionID: sessionID, halfA: append([]byte(nil), halfA...), halfB: append([]byte(nil), halfB...), sentAt: time.Now()}

	l.queueMu.Lock()
	if l.inFlight == nil {
		l.inFlight = req
		l.queueMu.Unlock()
		l.sendKeyRequest(req)
		return
	}
	l.queue = append(l.queue, req)
	l.queueMu.Unlock()
}

func (l *Link) sendKeyRequest(req *keyRequest) {
	var body [8 + KeyHalvesSize]byte
	binary.LittleEndian.PutUint64(body[:8], sessionToken(req.sessionID))
	copy(body[8:28], req.halfA)
	copy(body[28:48], req.halfB)

	if err := l.writeFrame(OpNewKeysReq, body[:]); err != nil {
		l.log.Warn("daemonlink: failed to send key request", logger.String("session_id", req.sessionID), logger.Error(err))
	}
}

// advanceQueue completes the in-flight request and sends the next queued
// one, if any.
func (l *Link) advanceQueue() {
	l.queueMu.Lock()
	l.inFlight = nil
	if len(l.queue) > 0 {
		l.inFlight = l.queue[0]
		l.queue = l.queue[1:]
	}
	next := l.inFlight
	l.queueMu.Unlock()

	if next != nil {
		l.sendKeyRequest(next)
	}
}

// resendOutstanding re-sends the in-flight request (if any) after a fresh
// connection is established, per the "requests outstanding at the moment
// of disconnection are re-sent on the next Ready" rule.
func (l *Link) resendOutstanding() {
	l.queueMu.Lock()
	req := l.inFlight
	l.queueMu.Unlock()
	if req != nil {
		l.sendKeyRequest(req)
	}
}

func sessionToken(sessionID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sessionID))
	return h.Sum64()
}

// Run dials the daemon and services it until ctx is cancelled, restarting
// the connection with capped exponential backoff on every failure.
func (l *Link) Run(ctx context.Context) error {
	bo := newBackoff(l.cfg.ReconnectMin, l.cfg.ReconnectMax)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.setState(Connecting)
		metrics.DaemonLinkReconnects.Inc()
		conn, err := net.DialTimeout("tcp", l.cfg.Address, l.cfg.DialTimeout)
		if err != nil {
			l.log.Warn("daemonlink: dial failed", logger.Error(err))
			l.setState(Disconnected)
			if !sleepOrDone(ctx, bo.Next()) {
				return ctx.Err()
			}
			continue
		}
		bo.Reset()

		l.mu.Lock()
		l.conn = conn
		l.mu.Unlock()
		l.setState(Ready)
		l.clearPingOutstanding()
		l.resendOutstanding()

		err = l.serve(ctx, conn)
		conn.Close()
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()

		if ctx.Err() != nil {
			l.setState(Disconnected)
			return ctx.Err()
		}
		l.log.Warn("daemonlink: connection lost, reconnecting", logger.Error(err))
		l.setState(Disconnected)
		if !sleepOrDone(ctx, bo.Next()) {
			return ctx.Err()
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (l *Link) serve(ctx context.Context, conn net.Conn) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.pingLoop(gctx, conn) })
	g.Go(func() error { return l.readLoop(gctx, conn) })
	return g.Wait()
}

func (l *Link) pingLoop(ctx context.Context, conn net.Conn) error {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.pingMu.Lock()
			if l.pingOutstanding {
				l.pingMu.Unlock()
				l.setState(Stalled)
				return fmt.Errorf("daemonlink: ping outstanding, link stalled")
			}
			l.pingOutstanding = true
			l.pingSentAt = time.Now()
			l.pingMu.Unlock()

			if err := l.writeFrame(OpPing, nil); err != nil {
				return err
			}
		}
	}
}

func (l *Link) clearPingOutstanding() {
	l.pingMu.Lock()
	l.pingOutstanding = false
	l.pingMu.Unlock()
}

func (l *Link) readLoop(ctx context.Context, conn net.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		op, body, err := readFrame(conn)
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("daemonlink: connection closed by daemon")
			}
			return err
		}
		if err := l.dispatch(op, body); err != nil {
			return err
		}
	}
}

func (l *Link) dispatch(op Opcode, body []byte) error {
	switch op {
	case OpPong:
		l.pingMu.Lock()
		l.pingOutstanding = false
		sentAt := l.pingSentAt
		l.pingMu.Unlock()
		if !sentAt.IsZero() {
			metrics.DaemonLinkPingLatency.Observe(time.Since(sentAt).Seconds())
		}
		return nil
	case OpNewKeysRsp:
		return l.handleNewKeysResponse(body)
	case OpDisconnect:
		return fmt.Errorf("daemonlink: daemon requested disconnect")
	default:
		return fmt.Errorf("%w: opcode %d", ErrProtocolViolation, op)
	}
}

func (l *Link) handleNewKeysResponse(body []byte) error {
	if len(body) != 8+16+16 {
		return fmt.Errorf("%w: malformed NEW_KEYS_RSP", ErrProtocolViolation)
	}
	token := binary.LittleEndian.Uint64(body[:8])
	clientKey := append([]byte(nil), body[8:24]...)
	serverKey := append([]byte(nil), body[24:40]...)

	l.queueMu.Lock()
	req := l.inFlight
	l.queueMu.Unlock()

	if req == nil || sessionToken(req.sessionID) != token {
		l.log.Warn("daemonlink: dropping orphan key response", logger.String("event", "orphan"))
		return nil
	}

	metrics.KeyRequestDuration.Observe(time.Since(req.sentAt).Seconds())

	if !l.installer.InstallKeys(req.sessionID, clientKey, serverKey) {
		l.log.Info("daemonlink: key response for session no longer alive", logger.String("session_id", req.sessionID))
	}
	l.advanceQueue()
	return nil
}

func (l *Link) writeFrame(op Opcode, body []byte) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return ErrNotReady
	}
	return writeFrame(conn, op, body)
}

func writeFrame(w io.Writer, op Opcode, body []byte) error {
	header := make([]byte, 3)
	header[0] = byte(op)
	binary.LittleEndian.PutUint16(header[1:3], uint16(len(body)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

func readFrame(r io.Reader) (Opcode, []byte, error) {
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	length := binary.LittleEndian.Uint16(header[1:3])
	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, err
		}
	}
	return Opcode(header[0]), body, nil
}
