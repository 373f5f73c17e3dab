package app

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("WALINK_TEST_STR", "  value ")
	t.Setenv("WALINK_TEST_BOOL", "false")
	t.Setenv("WALINK_TEST_BAD_BOOL", "maybe")
	t.Setenv("WALINK_TEST_INT", "7")
	t.Setenv("WALINK_TEST_ZERO", "0")
	t.Setenv("WALINK_TEST_NEG", "-3")
	t.Setenv("WALINK_TEST_DUR", "90s")
	t.Setenv("WALINK_TEST_BAD_DUR", "-1s")

	if got := EnvString("WALINK_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString=%q", got)
	}
	if got := EnvString("WALINK_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString default=%q", got)
	}
	if got := EnvBool("WALINK_TEST_BOOL", true); got {
		t.Fatalf("EnvBool=%v", got)
	}
	if got := EnvBool("WALINK_TEST_BAD_BOOL", true); !got {
		t.Fatalf("EnvBool fallback=%v", got)
	}
	if got := EnvInt("WALINK_TEST_INT", 1); got != 7 {
		t.Fatalf("EnvInt=%d", got)
	}
	if got := EnvInt("WALINK_TEST_ZERO", 1); got != 0 {
		t.Fatalf("EnvInt zero=%d", got)
	}
	if got := EnvInt32("WALINK_TEST_NEG", 5); got != 5 {
		t.Fatalf("EnvInt32 negative=%d", got)
	}
	if got := EnvDuration("WALINK_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration=%v", got)
	}
	if got := EnvDuration("WALINK_TEST_BAD_DUR", time.Second); got != time.Second {
		t.Fatalf("EnvDuration fallback=%v", got)
	}
}

func TestEnvStringAllowEmpty(t *testing.T) {
	if got := EnvStringAllowEmpty("WALINK_TEST_UNSET_DIR", "./public"); got != "./public" {
		t.Fatalf("unset=%q", got)
	}
	t.Setenv("WALINK_TEST_EMPTY_DIR", "")
	if got := EnvStringAllowEmpty("WALINK_TEST_EMPTY_DIR", "./public"); got != "" {
		t.Fatalf("empty=%q", got)
	}
}
