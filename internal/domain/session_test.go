package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestSessionRecordJSONFlattensProfile(t *testing.T) {
	rec := NewSessionRecord("tok", "sid", map[string]any{"name": "Kim", "email": "kim@example.com"})
	rec.LastActivity = 1700000000123

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		t.Fatalf("unmarshal flat: %v", err)
	}
	if flat["token"] != "tok" || flat["sessionId"] != "sid" || flat["name"] != "Kim" {
		t.Fatalf("unexpected flat document: %s", raw)
	}

	var back SessionRecord
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if back.LastActivity != 1700000000123 {
		t.Fatalf("lastActivity=%d", back.LastActivity)
	}
	if _, ok := back.Profile["token"]; ok {
		t.Fatal("credential keys must not leak into profile")
	}
	if back.ProfileString("email") != "kim@example.com" {
		t.Fatalf("email=%q", back.ProfileString("email"))
	}
}

func TestSessionRecordUnmarshalRejectsNonObject(t *testing.T) {
	var rec SessionRecord
	if err := json.Unmarshal([]byte(`null`), &rec); err == nil {
		t.Fatal("expected error for null document")
	}
	if err := json.Unmarshal([]byte(`{"lastActivity":true}`), &rec); err == nil {
		t.Fatal("expected error for non-numeric lastActivity")
	}
}

func TestSessionRecordExpiredBoundary(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	rec := &SessionRecord{LastActivity: now.Add(-2 * time.Hour).UnixMilli()}
	if rec.Expired(now, 2*time.Hour) {
		t.Fatal("record exactly at the timeout must still be valid")
	}
	rec.LastActivity--
	if !rec.Expired(now, 2*time.Hour) {
		t.Fatal("record past the timeout must be expired")
	}
}

func TestSessionRecordMergeAndClone(t *testing.T) {
	rec := NewSessionRecord("tok", "sid", map[string]any{"name": "a"})
	cp := rec.Clone()
	cp.Merge(map[string]any{"name": "b", "token": "tok2", "lastActivity": 5})

	if rec.ProfileString("name") != "a" || rec.Token != "tok" {
		t.Fatal("clone must not share profile with original")
	}
	if cp.ProfileString("name") != "b" || cp.Token != "tok2" {
		t.Fatalf("merge not applied: %+v", cp)
	}
	if cp.LastActivity != 0 {
		t.Fatal("merge must not set lastActivity")
	}
}

func TestRemoteRejectionErrorMatchesSentinel(t *testing.T) {
	err := error(&RemoteRejectionError{Message: "bad token"})
	if !errors.Is(err, ErrRemoteRejection) {
		t.Fatal("expected errors.Is to match ErrRemoteRejection")
	}
	if err.Error() != "remote rejected credential: bad token" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
