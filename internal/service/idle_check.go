package service

import (
	"context"
	"time"

	"github.com/sandeepkv93/chat-session-client/internal/observability"
)

// startIdleLoopLocked starts the idle check if a session is held and no
// loop is running. Callers hold m.mu.
func (m *SessionManager) startIdleLoopLocked() {
	if m.closed || m.current == nil || m.idleCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.idleCancel = cancel
	m.idleWG.Add(1)
	go func() {
		defer m.idleWG.Done()
		m.runIdleLoop(ctx)
	}()
}

func (m *SessionManager) stopIdleLoopLocked() {
	if m.idleCancel != nil {
		m.idleCancel()
		m.idleCancel = nil
	}
}

func (m *SessionManager) runIdleLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if !m.CheckIdle(ctx) {
				return
			}
		}
	}
}

// CheckIdle runs one idle check: the stored record is re-loaded through the
// same path as Initialize. If it no longer yields a session, the held
// session is dropped, the real-time connection closed and the navigator
// replaced to the landing route. A store that cannot be reached keeps the
// session until the next check. It reports whether a session is still held.
func (m *SessionManager) CheckIdle(ctx context.Context) bool {
	m.storeMu.Lock()
	rec, err := m.loadFromStorageLocked(ctx)
	if err != nil || rec != nil {
		m.storeMu.Unlock()
		if err != nil {
			m.logger.Warn("idle check skipped, storage unavailable", "error", err)
		}
		return true
	}
	if ctx.Err() != nil {
		m.storeMu.Unlock()
		return false
	}
	held, snap, subs := m.dropSessionLocked()
	m.storeMu.Unlock()
	m.notify(snap, subs)
	if !held {
		return false
	}

	m.logger.Info("session idle-expired")
	observability.RecordIdleExpiry(ctx)
	observability.Audit(ctx, m.logger, "session.idle_expired")
	m.realtimeConn().Disconnect()
	m.nav.Replace(m.cfg.LandingRoute)
	return false
}
