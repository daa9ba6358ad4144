package env

import "testing"

func TestGetPrefersEarlierKeys(t *testing.T) {
	t.Setenv("DENTALQUOTE_LOG_FORMAT", "console")
	t.Setenv("LOG_FORMAT", "json")
	if got := Get("text", "DENTALQUOTE_LOG_FORMAT", "LOG_FORMAT"); got != "console" {
		t.Fatalf("expected prefixed value, got %q", got)
	}

	t.Setenv("DENTALQUOTE_LOG_FORMAT", "  ")
	if got := Get("text", "DENTALQUOTE_LOG_FORMAT", "LOG_FORMAT"); got != "json" {
		t.Fatalf("blank values should fall through, got %q", got)
	}

	if got := Get("text", "DENTALQUOTE_UNSET_FOR_TEST"); got != "text" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
