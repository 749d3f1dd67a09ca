package annotation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 64 * 1024

// ScreenshotFunc captures a page screenshot, optionally clipped to rect,
// returning a data URL. It is injected by the session manager so this
// package never imports browser-control internals directly.
type ScreenshotFunc func(ctx context.Context, rect *Rect) (string, error)

// SendNotifyFunc is invoked whenever a send is registered, with the count
// of annotations still open at that moment.
type SendNotifyFunc func(openCount int)

// Service is the annotation HTTP service (component F).
type Service struct {
	store *store
	gate  *sendGate
	audit *auditLog

	screenshotFn ScreenshotFunc
	sendNotifyFn SendNotifyFunc

	listener net.Listener
	server   *http.Server
	port     int
}

// NewService creates a service with its audit trail rooted at auditDir
// ("" uses the package default).
func NewService(auditDir string) (*Service, error) {
	audit, err := newAuditLog(auditDir)
	if err != nil {
		return nil, fmt.Errorf("annotation: new service: %w", err)
	}
	return &Service{store: newStore(), gate: newSendGate(), audit: audit}, nil
}

// OnScreenshot registers the screenshot capture hook.
func (s *Service) OnScreenshot(fn ScreenshotFunc) { s.screenshotFn = fn }

// OnSendNotify registers the send-notification hook.
func (s *Service) OnSendNotify(fn SendNotifyFunc) { s.sendNotifyFn = fn }

// Start binds the HTTP server to loopback, trying basePort then the next
// three consecutive ports on conflict.
func (s *Service) Start(basePort int) (int, error) {
	var lastErr error
	for offset := 0; offset < 4; offset++ {
		port := basePort + offset
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			lastErr = err
			continue
		}
		s.listener = ln
		s.port = port
		s.server = &http.Server{Handler: s}
		go func() {
			if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
				log.Printf("annotation: serve: %v", err)
			}
		}()
		return port, nil
	}
	return 0, fmt.Errorf("annotation: no free port in [%d, %d]: %w", basePort, basePort+3, lastErr)
}

// Shutdown stops the HTTP server and closes the audit log.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.server != nil {
		_ = s.server.Shutdown(ctx)
	}
	return s.audit.close()
}

// Port returns the bound port.
func (s *Service) Port() int { return s.port }

// Annotations returns a snapshot of all annotations (used by the tool
// surface's response-envelope augmentation and listing tool).
func (s *Service) Annotations() []*Annotation { return s.store.list() }

// OpenAnnotations returns a snapshot of open annotations.
func (s *Service) OpenAnnotations() []*Annotation { return s.store.openAnnotations() }

// Annotation looks up a single annotation by id.
func (s *Service) Annotation(id string) (*Annotation, bool) { return s.store.get(id) }

// Resolve transitions an annotation to resolved.
func (s *Service) Resolve(id string) (*Annotation, error) { return s.store.resolve(id) }

// Delete removes a single annotation, reporting whether it existed.
func (s *Service) Delete(id string) bool {
	ok := s.store.delete(id)
	if ok {
		s.audit.log("delete", id, nil)
	}
	return ok
}

// AutoResolveAndRemove is the delete half of the "auto-resolve" step from
// spec §4.H's response envelope augmentation: it deletes every open
// annotation. Removing the overlay badges is left to the caller (the tool
// surface does it before calling this).
func (s *Service) AutoResolveAndRemove() {
	for _, a := range s.store.openAnnotations() {
		s.store.delete(a.ID)
		s.audit.log("auto_resolve_delete", a.ID, nil)
	}
}

// WaitForSend blocks up to timeoutMs (capped at 600s per spec §5) for a send.
func (s *Service) WaitForSend(timeoutMs int) bool {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	const cap = 600 * time.Second
	if timeout > cap || timeout <= 0 {
		timeout = cap
	}
	return s.gate.wait(timeout)
}

// ConsumeSentState reports, one-shot, whether a send has happened since the
// last call.
func (s *Service) ConsumeSentState() bool { return s.gate.consumeSentState() }

// ServeHTTP is the simple method+path router described in spec §4.F.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin, allowed := isAllowedOrigin(r.Header.Get("Origin"))
	w.Header().Set("Vary", "Origin")
	if allowed {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	} else {
		w.Header().Set("Access-Control-Allow-Origin", neutralOrigin)
	}

	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	path := strings.TrimRight(r.URL.Path, "/")
	if path == "" {
		path = "/"
	}

	switch {
	case r.Method == http.MethodGet && path == "/":
		s.handleRoot(w)
	case r.Method == http.MethodGet && path == "/annotations":
		s.handleList(w)
	case r.Method == http.MethodPost && path == "/annotations":
		s.handleCreate(w, r)
	case r.Method == http.MethodDelete && path == "/annotations":
		s.handleDeleteAll(w)
	case r.Method == http.MethodPost && path == "/annotations/send":
		s.handleSend(w)
	case r.Method == http.MethodPatch && strings.HasPrefix(path, "/annotations/"):
		s.handlePatch(w, r, strings.TrimPrefix(path, "/annotations/"))
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/annotations/"):
		s.handleDeleteOne(w, strings.TrimPrefix(path, "/annotations/"))
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/annotations/") && strings.HasSuffix(path, "/resolve"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/annotations/"), "/resolve")
		s.handleResolve(w, id)
	default:
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (s *Service) handleRoot(w http.ResponseWriter) {
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"count":  len(s.store.list()),
		"port":   s.port,
	})
}

func (s *Service) handleList(w http.ResponseWriter) {
	writeJSONStatus(w, http.StatusOK, s.store.list())
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "malformed body: " + err.Error()})
		return
	}

	a, err := s.store.create(req)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.audit.log("create", a.ID, req)

	if rect := req.ElementRect; rect != nil && rect.Width > 0 && rect.Height > 0 && s.screenshotFn != nil {
		dataURL, err := s.screenshotFn(r.Context(), rect)
		if err != nil {
			log.Printf("annotation: screenshot capture failed: %v", err)
		} else {
			s.store.setScreenshot(a.ID, dataURL)
		}
	}

	writeJSONStatus(w, http.StatusCreated, map[string]string{"id": a.ID})
}

func (s *Service) handlePatch(w http.ResponseWriter, r *http.Request, id string) {
	var req PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "malformed body: " + err.Error()})
		return
	}
	a, err := s.store.patch(id, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.audit.log("patch", id, req)
	writeJSONStatus(w, http.StatusOK, a)
}

func (s *Service) handleResolve(w http.ResponseWriter, id string) {
	a, err := s.store.resolve(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.audit.log("resolve", id, nil)
	writeJSONStatus(w, http.StatusOK, a)
}

func (s *Service) handleDeleteOne(w http.ResponseWriter, id string) {
	if !s.store.delete(id) {
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	s.audit.log("delete", id, nil)
	writeJSONStatus(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleDeleteAll(w http.ResponseWriter) {
	n := s.store.deleteAll()
	s.audit.log("delete_all", "", map[string]int{"count": n})
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": n})
}

func (s *Service) handleSend(w http.ResponseWriter) {
	s.gate.notify()
	s.audit.log("send", "", nil)
	if s.sendNotifyFn != nil {
		openCount := s.store.openCount()
		go s.sendNotifyFn(openCount)
	}
	writeJSONStatus(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSONStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case isKind(err, "bad_request"):
		status = http.StatusBadRequest
	case isKind(err, "quota_exceeded"):
		status = http.StatusTooManyRequests
	case isKind(err, "target_not_found"), isKind(err, "not_found"):
		status = http.StatusNotFound
	}
	writeJSONStatus(w, status, map[string]string{"error": err.Error()})
}

// isKind checks the bridgeerr kind without importing it into this file's
// signature noise; kept local since only this handler needs the mapping.
// bridgeerr.Error.Error() always leads with "<kind>: ", so a prefix match
// on "<kind>:" is exact.
func isKind(err error, kind string) bool {
	return strings.HasPrefix(err.Error(), kind+":")
}
