package correlation

import "testing"

func TestFromHeader(t *testing.T) {
	cases := []struct {
		name, key, value, want string
	}{
		{"request id", "X-Request-Id", "REQ-12345", "req-12345"},
		{"correlation id", "x-correlation-id", "corr-abc-789", "corr-abc-789"},
		{"traceparent", "traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-00", "4bf92f3577b34da6a3ce929d0e0e4736"},
		{"cloud trace context", "x-cloud-trace-context", "105445aa7843bc8bf206b12000100000/123;o=1", "105445aa7843bc8bf206b12000100000"},
		{"unsupported header", "content-type", "application/json", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := FromHeader(c.key, c.value); got != c.want {
				t.Fatalf("FromHeader(%q, %q) = %q, want %q", c.key, c.value, got, c.want)
			}
		})
	}
}

func TestFromMessage(t *testing.T) {
	msg := `error handling request_id=REQ-999 traceparent=00-4bf92f3577b34da6a3ce929d0e0e4736-1111111111111111-01`
	keys := FromMessage(msg)
	want := map[string]bool{"req-999": true, "4bf92f3577b34da6a3ce929d0e0e4736": true}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %#v", len(want), len(keys), keys)
	}
	for _, k := range keys {
		if !want[k] {
			t.Fatalf("unexpected key: %s", k)
		}
	}
}

func TestFromMessageDedupes(t *testing.T) {
	msg := `request_id=req-123 x-request-id=req-123`
	keys := FromMessage(msg)
	if len(keys) != 1 || keys[0] != "req-123" {
		t.Fatalf("expected deduped single key, got %#v", keys)
	}
}

func TestFromMessageEmpty(t *testing.T) {
	if keys := FromMessage("   "); keys != nil {
		t.Fatalf("expected nil, got %v", keys)
	}
}
