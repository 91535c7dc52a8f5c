package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AppendLog is a JSON-lines file that is only ever appended to. The file is
// opened per write so external rotation is picked up.
type AppendLog struct {
	path string
	mu   sync.Mutex
}

func NewAppendLog(path string) (*AppendLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &AppendLog{path: path}, nil
}

func (l *AppendLog) Path() string { return l.path }

// Append writes v as one JSON line.
func (l *AppendLog) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.path, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	return f.Close()
}
