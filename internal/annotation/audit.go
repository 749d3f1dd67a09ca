package annotation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	maxRotatedAuditFiles = 3
	defaultAuditDir      = "data/annotation-audit"
)

// auditEvent is one line of the rotating JSONL audit trail.
type auditEvent struct {
	Timestamp time.Time   `json:"ts"`
	Action    string      `json:"action"`
	Annotation string     `json:"annotationId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// auditLog is a rotating JSONL flight recorder for annotation lifecycle
// events, adapted from the teacher's internal/recorder.
type auditLog struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	dir     string
}

func newAuditLog(dir string) (*auditLog, error) {
	if dir == "" {
		dir = defaultAuditDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	a := &auditLog{dir: dir}
	if err := a.rotate(); err != nil {
		return nil, fmt.Errorf("annotation: audit rotate: %w", err)
	}
	filename := fmt.Sprintf("annotations_%d.jsonl", time.Now().UnixMilli())
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	a.file = f
	a.encoder = json.NewEncoder(f)
	return a, nil
}

func (a *auditLog) log(action, annotationID string, data interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.encoder == nil {
		return
	}
	_ = a.encoder.Encode(auditEvent{Timestamp: time.Now(), Action: action, Annotation: annotationID, Data: data})
}

func (a *auditLog) rotate() error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return err
	}
	var files []struct {
		name string
		mod  time.Time
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, struct {
			name string
			mod  time.Time
		}{e.Name(), info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })

	if len(files) >= maxRotatedAuditFiles {
		keep := maxRotatedAuditFiles - 1
		if keep < 0 {
			keep = 0
		}
		for i := keep; i < len(files); i++ {
			_ = os.Remove(filepath.Join(a.dir, files[i].name))
		}
	}
	return nil
}

func (a *auditLog) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	a.encoder = nil
	return err
}
