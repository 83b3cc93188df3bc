package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sandeepkv93/chat-session-client/internal/domain"
	"github.com/sandeepkv93/chat-session-client/internal/observability"
	"github.com/sandeepkv93/chat-session-client/internal/storage"

	"golang.org/x/oauth2"
)

// VerifyToken re-validates the held credential. A nil error means the
// session is valid. A non-success body or a 401 escalates to exactly one
// refresh; if that fails the session is logged out and ErrSessionExpired is
// returned.
func (m *SessionManager) VerifyToken(ctx context.Context) error {
	m.mu.Lock()
	cur := m.current.Clone()
	m.mu.Unlock()
	if !cur.HasCredential() {
		return domain.ErrNoCredential
	}

	ctx, span := observability.StartSpan(ctx, "session.verify")
	defer span.End()

	m.setState(StateVerifying)
	if m.verifiedRecently(ctx) {
		m.setState(StateActive)
		observability.RecordSessionVerify(ctx, "throttled")
		return nil
	}

	res, err := m.verifier.VerifyToken(ctx, cur.Token, cur.SessionID)
	if err == nil && res != nil && res.Success {
		m.markVerified(ctx)
		m.setState(StateActive)
		observability.RecordSessionVerify(ctx, "ok")
		return nil
	}

	if err != nil && !errors.Is(err, domain.ErrTransportAuth) {
		m.setState(StateActive)
		observability.RecordSessionVerify(ctx, "error")
		return err
	}
	if err == nil {
		msg := ""
		if res != nil {
			msg = res.Message
		}
		err = &domain.RemoteRejectionError{Message: msg}
	}
	m.logger.Info("credential rejected, refreshing", "session_id", cur.SessionID, "reason", err)

	if _, rerr := m.refresh(ctx); rerr != nil {
		m.logger.Warn("refresh after rejected verification failed", "session_id", cur.SessionID, "error", rerr)
		observability.RecordSessionVerify(ctx, "expired")
		m.Logout(ctx)
		return fmt.Errorf("%w: %w", domain.ErrSessionExpired, rerr)
	}
	m.markVerified(ctx)
	m.setState(StateActive)
	observability.RecordSessionVerify(ctx, "refreshed")
	return nil
}

// RefreshToken exchanges the held credential for a new one, replacing only
// the token field of the record.
func (m *SessionManager) RefreshToken(ctx context.Context) (string, error) {
	ctx, span := observability.StartSpan(ctx, "session.refresh")
	defer span.End()

	token, err := m.refresh(ctx)
	if err != nil && !errors.Is(err, domain.ErrNoCredential) {
		m.setState(StateActive)
	}
	return token, err
}

func (m *SessionManager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	cur := m.current.Clone()
	m.mu.Unlock()
	if cur == nil || cur.Token == "" {
		return "", domain.ErrNoCredential
	}

	m.setState(StateRefreshing)
	res, err := m.verifier.RefreshToken(ctx, cur.Token, cur.SessionID)
	if err != nil {
		observability.RecordSessionRefresh(ctx, "error")
		return "", fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}
	if res == nil || !res.Success || res.Token == "" {
		observability.RecordSessionRefresh(ctx, "rejected")
		return "", domain.ErrRefreshFailed
	}

	m.mu.Lock()
	latest := m.current.Clone()
	m.mu.Unlock()
	if latest == nil {
		observability.RecordSessionRefresh(ctx, "error")
		return "", fmt.Errorf("%w: %w", domain.ErrRefreshFailed, domain.ErrNoCredential)
	}
	latest.Token = res.Token
	if _, err := m.saveUser(ctx, latest); err != nil {
		observability.RecordSessionRefresh(ctx, "error")
		return "", fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}
	observability.RecordSessionRefresh(ctx, "success")
	observability.Audit(ctx, m.logger, "session.refresh", "session_id", latest.SessionID)
	return res.Token, nil
}

func (m *SessionManager) verifiedRecently(ctx context.Context) bool {
	raw, ok, err := m.store.Get(ctx, storage.KeyLastVerification)
	if err != nil {
		m.logger.Warn("read verification marker", "error", err)
		return false
	}
	if !ok {
		return false
	}
	last, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return false
	}
	return m.now().UnixMilli()-last < m.cfg.VerifyThrottle.Milliseconds()
}

func (m *SessionManager) markVerified(ctx context.Context) {
	stamp := strconv.FormatInt(m.now().UnixMilli(), 10)
	if err := m.store.Set(ctx, storage.KeyLastVerification, stamp); err != nil {
		m.logger.Warn("write verification marker", "error", err)
	}
}

// TokenSource exposes the held credential to transports that authenticate
// with it. The session id travels in Extra("session_id").
func (m *SessionManager) TokenSource() oauth2.TokenSource {
	return sessionTokenSource{m: m}
}

type sessionTokenSource struct {
	m *SessionManager
}

func (s sessionTokenSource) Token() (*oauth2.Token, error) {
	s.m.mu.Lock()
	cur := s.m.current.Clone()
	s.m.mu.Unlock()
	if !cur.HasCredential() {
		return nil, domain.ErrNoCredential
	}
	tok := &oauth2.Token{AccessToken: cur.Token, TokenType: "session"}
	return tok.WithExtra(map[string]any{"session_id": cur.SessionID}), nil
}
