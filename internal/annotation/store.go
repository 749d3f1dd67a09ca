package annotation

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"agentbridge-mcp-server/internal/bridgeerr"
)

const (
	maxTextBytes     = 10 * 1024
	maxViewportValue = 100000
	maxAnnotations   = 50
)

// store is the in-memory, mutex-serialized annotation map (spec §5: exactly
// one owning component per mutable aggregate).
type store struct {
	mu          sync.Mutex
	annotations map[string]*Annotation
	order       []string // insertion order, for stable listing
}

func newStore() *store {
	return &store{annotations: make(map[string]*Annotation)}
}

// validateCreate enforces spec §3's creation-time invariants.
func validateCreate(req CreateRequest) error {
	if len(req.Text) > maxTextBytes {
		return bridgeerr.New(bridgeerr.KindBadRequest, "Text exceeds maximum length of 10KiB")
	}
	if !validViewportDim(req.Viewport.Width) || !validViewportDim(req.Viewport.Height) {
		return bridgeerr.New(bridgeerr.KindBadRequest, "viewport dimensions must be finite, non-negative, and at most 100000")
	}
	return nil
}

func validViewportDim(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= 0 && v <= maxViewportValue
}

func confidenceOf(raw string) SelectorConfidence {
	if raw == string(SelectorStable) {
		return SelectorStable
	}
	return SelectorFragile
}

// create inserts a new annotation, enforcing the 50-annotation cap.
func (s *store) create(req CreateRequest) (*Annotation, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.annotations) >= maxAnnotations {
		return nil, bridgeerr.New(bridgeerr.KindQuota, "annotation cap of 50 reached")
	}

	now := nowIso()
	a := &Annotation{
		ID:                 uuid.NewString(),
		URL:                req.URL,
		Selector:           req.Selector,
		SelectorConfidence: confidenceOf(req.SelectorConfidence),
		Text:               req.Text,
		Status:             StatusOpen,
		Viewport:           req.Viewport,
		ComponentInfo:      req.ReactSource,
		Elements:           req.Elements,
		AnchorPoint:        req.AnchorPoint,
		CreatedAtIso:       now,
		UpdatedAtIso:       now,
	}
	s.annotations[a.ID] = a
	s.order = append(s.order, a.ID)
	return a, nil
}

// list returns a stable-order snapshot of all annotations.
func (s *store) list() []*Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Annotation, 0, len(s.order))
	for _, id := range s.order {
		if a, ok := s.annotations[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (s *store) get(id string) (*Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.annotations[id]
	return a, ok
}

// openCount reports the number of annotations still in the open state.
func (s *store) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.annotations {
		if a.Status == StatusOpen {
			n++
		}
	}
	return n
}

// openAnnotations returns a snapshot of all open annotations, in insertion order.
func (s *store) openAnnotations() []*Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Annotation, 0)
	for _, id := range s.order {
		if a, ok := s.annotations[id]; ok && a.Status == StatusOpen {
			out = append(out, a)
		}
	}
	return out
}

func (s *store) patch(id string, req PatchRequest) (*Annotation, error) {
	if req.Text != nil && len(*req.Text) > maxTextBytes {
		return nil, bridgeerr.New(bridgeerr.KindBadRequest, "Text exceeds maximum length of 10KiB")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.annotations[id]
	if !ok {
		return nil, bridgeerr.New(bridgeerr.KindResourceNotFound, "annotation not found")
	}
	if req.Text != nil {
		a.Text = *req.Text
	}
	a.UpdatedAtIso = nowIso()
	return a, nil
}

func (s *store) resolve(id string) (*Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.annotations[id]
	if !ok {
		return nil, bridgeerr.New(bridgeerr.KindResourceNotFound, "annotation not found")
	}
	if a.Status == StatusOpen {
		a.Status = StatusResolved
		a.UpdatedAtIso = nowIso()
	}
	return a, nil
}

func (s *store) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.annotations[id]; !ok {
		return false
	}
	delete(s.annotations, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// deleteAll clears every annotation and reports how many were removed.
func (s *store) deleteAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.annotations)
	s.annotations = make(map[string]*Annotation)
	s.order = nil
	return n
}

// setScreenshot attaches a captured screenshot data URL to an existing
// annotation; a no-op if the annotation has since been deleted.
func (s *store) setScreenshot(id, dataURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.annotations[id]; ok {
		a.ScreenshotDataURL = dataURL
	}
}
