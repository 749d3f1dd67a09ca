package tools

import (
	"strings"
	"testing"
)

func TestSanitizeIdentifierWhitelistsHexAndDash(t *testing.T) {
	cases := map[string]string{
		"a1b2c3d4-e5f6-47a8-9b0c-1d2e3f4a5b6c": "a1b2c3d4-e5f6-47a8-9b0c-1d2e3f4a5b6c",
		"'; DROP TABLE--":                      "",
		"abc123<script>":                       "abc123",
	}
	for in, want := range cases {
		if got := sanitizeIdentifier(in); got != want {
			t.Errorf("sanitizeIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInjectPendingCountOnObject(t *testing.T) {
	out := injectPendingCount(`{"value":true}`, 3)
	if out == `{"value":true}` {
		t.Fatal("expected pending_annotations to be injected")
	}
	if want := `"pending_annotations":3`; !strings.Contains(out, want) {
		t.Fatalf("expected %q to contain %q", out, want)
	}
}

func TestInjectPendingCountLeavesNonObjectUntouched(t *testing.T) {
	array := `[1,2,3]`
	if got := injectPendingCount(array, 5); got != array {
		t.Fatalf("expected non-object payload untouched, got %q", got)
	}
}

func TestTruncateBody(t *testing.T) {
	short := "hello"
	body, truncated := truncateBody(short)
	if truncated || body != short {
		t.Fatalf("expected short body untouched, got %q truncated=%v", body, truncated)
	}

	long := make([]byte, truncateLimit+100)
	for i := range long {
		long[i] = 'a'
	}
	body, truncated = truncateBody(string(long))
	if !truncated || len(body) != truncateLimit {
		t.Fatalf("expected body truncated to %d bytes, got %d truncated=%v", truncateLimit, len(body), truncated)
	}
}

func TestSplitDataURL(t *testing.T) {
	data, mime, ok := splitDataURL("data:image/png;base64,QUJD")
	if !ok || data != "QUJD" || mime != "image/png" {
		t.Fatalf("unexpected split result: data=%q mime=%q ok=%v", data, mime, ok)
	}

	if _, _, ok := splitDataURL("not-a-data-url"); ok {
		t.Fatal("expected non-data URL to fail to split")
	}
}
