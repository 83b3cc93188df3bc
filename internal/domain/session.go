package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"time"
)

const (
	fieldToken        = "token"
	fieldSessionID    = "sessionId"
	fieldLastActivity = "lastActivity"
)

// SessionRecord is the persisted user/credential bundle. Profile fields are
// opaque to the session layer and are serialized next to the credential
// fields at the top level of the JSON document.
type SessionRecord struct {
	Token        string
	SessionID    string
	LastActivity int64
	Profile      map[string]any
}

func NewSessionRecord(token, sessionID string, profile map[string]any) *SessionRecord {
	r := &SessionRecord{Token: token, SessionID: sessionID, Profile: map[string]any{}}
	r.Merge(profile)
	return r
}

func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Profile = maps.Clone(r.Profile)
	if cp.Profile == nil {
		cp.Profile = map[string]any{}
	}
	return &cp
}

func (r *SessionRecord) Touch(now time.Time) {
	r.LastActivity = now.UnixMilli()
}

// Expired reports whether the record has been idle for longer than timeout.
func (r *SessionRecord) Expired(now time.Time, timeout time.Duration) bool {
	return now.UnixMilli()-r.LastActivity > timeout.Milliseconds()
}

func (r *SessionRecord) HasCredential() bool {
	return r != nil && r.Token != "" && r.SessionID != ""
}

// Merge copies fields onto the record. The credential keys update the
// credential fields; lastActivity is owned by Touch and ignored.
func (r *SessionRecord) Merge(fields map[string]any) {
	if r.Profile == nil {
		r.Profile = map[string]any{}
	}
	for k, v := range fields {
		switch k {
		case fieldToken:
			if s, ok := v.(string); ok {
				r.Token = s
			}
		case fieldSessionID:
			if s, ok := v.(string); ok {
				r.SessionID = s
			}
		case fieldLastActivity:
		default:
			r.Profile[k] = v
		}
	}
}

func (r *SessionRecord) Field(name string) (any, bool) {
	v, ok := r.Profile[name]
	return v, ok
}

func (r *SessionRecord) ProfileString(name string) string {
	v, ok := r.Profile[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (r SessionRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Profile)+3)
	maps.Copy(out, r.Profile)
	out[fieldToken] = r.Token
	out[fieldSessionID] = r.SessionID
	out[fieldLastActivity] = r.LastActivity
	return json.Marshal(out)
}

func (r *SessionRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("session record: expected object")
	}
	r.Token, _ = raw[fieldToken].(string)
	r.SessionID, _ = raw[fieldSessionID].(string)
	last, err := parseMillis(raw[fieldLastActivity])
	if err != nil {
		return fmt.Errorf("session record: lastActivity: %w", err)
	}
	r.LastActivity = last
	delete(raw, fieldToken)
	delete(raw, fieldSessionID)
	delete(raw, fieldLastActivity)
	r.Profile = raw
	return nil
}

func parseMillis(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
}

type RefreshResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
}
