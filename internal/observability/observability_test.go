package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sandeepkv93/chat-session-client/internal/config"
)

func collectCounters(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out
}

func TestRecordHelpersFeedRegisteredInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		metricsMu.Lock()
		appMetrics = nil
		metricsMu.Unlock()
		_ = mp.Shutdown(context.Background())
	})
	if err := RegisterMetrics(mp); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	ctx := context.Background()
	RecordSessionLogin(ctx, "success")
	RecordSessionLogin(ctx, "error")
	RecordSessionLogout(ctx, "success")
	RecordSessionVerify(ctx, "throttled")
	RecordSessionRefresh(ctx, "success")
	RecordIdleExpiry(ctx)
	RecordStorageOperation(ctx, "redis", "get", "miss")
	RecordConfigLoad(ctx, "  ProD ", config.ErrorClass(nil))

	got := collectCounters(t, reader)
	want := map[string]int64{
		"session.login.attempts":   2,
		"session.logout.attempts":  1,
		"session.verify.attempts":  1,
		"session.refresh.attempts": 1,
		"session.idle.expirations": 1,
		"storage.operations":       1,
		"config.load.events":       1,
	}
	for name, n := range want {
		if got[name] != n {
			t.Fatalf("%s=%d want %d (all=%v)", name, got[name], n, got)
		}
	}
}

func TestRecordHelpersWithoutRegistrationAreNoops(t *testing.T) {
	metricsMu.Lock()
	appMetrics = nil
	metricsMu.Unlock()
	RecordSessionLogin(context.Background(), "success")
	RecordIdleExpiry(context.Background())
}

func TestAuditLogsEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	Audit(context.Background(), logger, "session.logout", "status", "success")
	out := buf.String()
	if !strings.Contains(out, "msg=audit") || !strings.Contains(out, "event=session.logout") || !strings.Contains(out, "status=success") {
		t.Fatalf("unexpected audit line %q", out)
	}
}

func TestNewLoggerLocalFormats(t *testing.T) {
	var buf bytes.Buffer
	logger, lp, err := NewLogger(context.Background(), &config.Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	if err != nil || lp != nil {
		t.Fatalf("expected local logger, lp=%v err=%v", lp, err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected json output %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Fatalf("parseLevel(%q)=%v want %v", raw, got, want)
		}
	}
}

func TestInitRuntimeDisabledAndShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt, err := InitRuntime(context.Background(), &config.Config{OTELServiceName: "test"}, logger, nil)
	if err != nil {
		t.Fatalf("init runtime: %v", err)
	}
	if rt.MeterProvider == nil || rt.TracerProvider == nil {
		t.Fatal("expected providers even when export is disabled")
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	var nilRuntime *Runtime
	if err := nilRuntime.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil runtime shutdown: %v", err)
	}
}

func TestNormalizeProfile(t *testing.T) {
	if got := normalizeProfile("  ProD  "); got != "prod" {
		t.Fatalf("expected prod, got %q", got)
	}
	if got := normalizeProfile("   "); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func FuzzNormalizeProfile(f *testing.F) {
	f.Add("  ProD  ")
	f.Add("")
	f.Add("\u00e9PROD\u00e9")
	f.Add(strings.Repeat("A", 4096))

	f.Fuzz(func(t *testing.T, raw string) {
		got := normalizeProfile(raw)
		if got == "" {
			t.Fatal("normalized profile must not be empty")
		}
		if strings.TrimSpace(raw) == "" && got != "unknown" {
			t.Fatalf("expected unknown for blank input, got %q", got)
		}
		if utf8.ValidString(raw) && !utf8.ValidString(got) {
			t.Fatalf("normalized profile must stay valid UTF-8: %q", got)
		}
		if again := normalizeProfile(raw); again != got {
			t.Fatalf("normalizeProfile not deterministic: %q then %q", got, again)
		}
	})
}
