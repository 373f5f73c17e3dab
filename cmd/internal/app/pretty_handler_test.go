package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandler_ColoredOutputStripsToPlain(t *testing.T) {
	t.Parallel()

	var plain, colored bytes.Buffer
	for _, tc := range []struct {
		buf   *bytes.Buffer
		color bool
	}{{&plain, false}, {&colored, true}} {
		log := slog.New(newPrettyHandler(tc.buf, &slog.HandlerOptions{Level: slog.LevelInfo}, tc.color))
		log.Info("http.request", "method", "get", "path", "/pair", "status", 200, "status_class", "2xx", "duration_ms", 2501)
	}

	if !strings.Contains(colored.String(), "\x1b[") {
		t.Fatalf("expected ansi codes in %q", colored.String())
	}
	// Timestamps differ between the two records.
	trim := func(s string) string { return s[strings.Index(s, " lvl="):] }
	if got, want := trim(stripANSI(colored.String())), trim(plain.String()); got != want {
		t.Fatalf("colored=%q plain=%q", got, want)
	}
	for _, want := range []string{"method=GET", "path=/pair", "status=200", "class=2xx", "duration_ms=2501ms"} {
		if !strings.Contains(plain.String(), want) {
			t.Fatalf("missing %q in %q", want, plain.String())
		}
	}
}

func TestPrettyHandler_GroupsAndQuoting(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false)).With("session_id", "qr_01").WithGroup("flow")
	log.Info("qr.fail", "err", "stream closed", "empty", "")

	out := buf.String()
	for _, want := range []string{`session_id=qr_01`, `flow.err="stream closed"`, `flow.empty=""`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	t.Parallel()

	h := newPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}, false)
	if h.Enabled(t.Context(), slog.LevelInfo) {
		t.Fatalf("info enabled at warn level")
	}
	if !h.Enabled(t.Context(), slog.LevelError) {
		t.Fatalf("error disabled at warn level")
	}
}
