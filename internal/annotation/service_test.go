package annotation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestCreateListResolveDelete(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	createResp := doJSON(t, srv, http.MethodPost, "/annotations", CreateRequest{
		URL: "http://localhost:3000/", Selector: "#button", Text: "fix this",
		Viewport: Viewport{Width: 1280, Height: 720},
	})
	if createResp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", createResp.StatusCode)
	}
	var created map[string]string
	_ = json.NewDecoder(createResp.Body).Decode(&created)
	createResp.Body.Close()
	id := created["id"]
	if id == "" {
		t.Fatal("expected non-empty annotation id")
	}

	listResp := doJSON(t, srv, http.MethodGet, "/annotations", nil)
	var list []*Annotation
	_ = json.NewDecoder(listResp.Body).Decode(&list)
	listResp.Body.Close()
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("expected one annotation with id %s, got %+v", id, list)
	}

	resolveResp := doJSON(t, srv, http.MethodPost, "/annotations/"+id+"/resolve", nil)
	if resolveResp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", resolveResp.StatusCode)
	}
	resolveResp.Body.Close()

	if open := svc.OpenAnnotations(); len(open) != 0 {
		t.Fatalf("expected no open annotations after resolve, got %d", len(open))
	}

	deleteResp := doJSON(t, srv, http.MethodDelete, "/annotations/"+id, nil)
	if deleteResp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", deleteResp.StatusCode)
	}
	deleteResp.Body.Close()

	if _, ok := svc.Annotation(id); ok {
		t.Fatal("expected annotation to be gone after delete")
	}
}

func TestCreateRejectsOversizedText(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	big := make([]byte, maxTextBytes+1)
	for i := range big {
		big[i] = 'x'
	}

	resp := doJSON(t, srv, http.MethodPost, "/annotations", CreateRequest{
		URL: "http://localhost/", Text: string(big),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized text, got %d", resp.StatusCode)
	}
}

func TestAnnotationCapAt50(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	for i := 0; i < maxAnnotations; i++ {
		resp := doJSON(t, srv, http.MethodPost, "/annotations", CreateRequest{URL: "http://localhost/"})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("annotation %d: expected 201, got %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := doJSON(t, srv, http.MethodPost, "/annotations", CreateRequest{URL: "http://localhost/"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once cap is reached, got %d", resp.StatusCode)
	}
}

func TestSendWakesWaiter(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	done := make(chan bool, 1)
	go func() { done <- svc.WaitForSend(2000) }()

	time.Sleep(50 * time.Millisecond)
	resp := doJSON(t, srv, http.MethodPost, "/annotations/send", nil)
	resp.Body.Close()

	select {
	case sent := <-done:
		if !sent {
			t.Fatal("expected WaitForSend to report true after a send")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for WaitForSend to return")
	}

	if !svc.ConsumeSentState() {
		t.Fatal("expected ConsumeSentState to report true once after the send")
	}
	if svc.ConsumeSentState() {
		t.Fatal("expected ConsumeSentState to be one-shot")
	}
}

func TestCORSRejectsNonLoopbackOrigin(t *testing.T) {
	svc := newTestService(t)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/annotations", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "https://evil.example.com" {
		t.Fatalf("expected non-loopback origin to not be echoed back, got %q", got)
	}
}
