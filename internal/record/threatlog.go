// Package record keeps a per-session threat log: every frame analysis
// worth remembering is appended to a JSONL file and mirrored in a
// bounded in-memory tail for transport read-back.
package record

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/gatewarden/internal/session"
)

// Entry is one logged frame analysis.
type Entry struct {
	Timestamp       string `json:"timestamp"`
	SessionID       string `json:"session_id"`
	FaceDetected    bool   `json:"face_detected"`
	AngryFace       bool   `json:"angry_face"`
	DangerousObject bool   `json:"dangerous_object"`
	ThreatLevel     string `json:"threat_level"`
	Details         string `json:"details,omitempty"`
}

// Store persists threat entries under dir, one JSONL file per session.
// The in-memory tail is capped at maxEntries per session; the files are
// append-only until the session clears.
type Store struct {
	dir        string
	maxEntries int

	mu    sync.Mutex
	tails map[string][]Entry
	files map[string]*os.File
}

// Open creates the threat log directory and recovers existing tails.
func Open(dir string, maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("record: create directory: %w", err)
	}

	s := &Store{
		dir:        dir,
		maxEntries: maxEntries,
		tails:      make(map[string][]Entry),
		files:      make(map[string]*os.File),
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("record: scan directory: %w", err)
	}
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), ".jsonl")
		tail, err := readTail(path, maxEntries)
		if err != nil {
			return nil, err
		}
		if len(tail) > 0 {
			s.tails[id] = tail
		}
	}
	return s, nil
}

// readTail recovers the last max entries of an existing log file.
func readTail(path string, max int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: read existing log: %w", err)
	}
	defer f.Close()

	var tail []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			// Torn or corrupt line, skip it.
			continue
		}
		tail = append(tail, e)
		if len(tail) > max {
			tail = tail[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("record: scan existing log: %w", err)
	}
	return tail, nil
}

// Record appends one frame analysis for the session.
func (s *Store) Record(sessionID string, schema session.VisionSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		Timestamp:       time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		SessionID:       sessionID,
		FaceDetected:    schema.FaceDetected,
		AngryFace:       schema.AngryFace,
		DangerousObject: schema.DangerousObject,
		ThreatLevel:     string(schema.ThreatLevel),
		Details:         schema.Details,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("record: marshal entry: %w", err)
	}

	f, err := s.fileLocked(sessionID)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("record: write entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("record: sync: %w", err)
	}

	tail := append(s.tails[sessionID], entry)
	if len(tail) > s.maxEntries {
		tail = tail[1:]
	}
	s.tails[sessionID] = tail
	return nil
}

// Entries returns the session's recorded tail, oldest first.
func (s *Store) Entries(sessionID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	tail := s.tails[sessionID]
	out := make([]Entry, len(tail))
	copy(out, tail)
	return out
}

// Clear drops the session's entries and removes its log file. Called
// when the visitor leaves.
func (s *Store) Clear(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tails, sessionID)
	if f, ok := s.files[sessionID]; ok {
		f.Close()
		delete(s.files, sessionID)
	}
	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("record: clear: %w", err)
	}
	return nil
}

// Close flushes and closes every open log file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.files, id)
	}
	return firstErr
}

func (s *Store) fileLocked(sessionID string) (*os.File, error) {
	if f, ok := s.files[sessionID]; ok {
		return f, nil
	}
	f, err := os.OpenFile(s.path(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("record: open file: %w", err)
	}
	s.files[sessionID] = f
	return f, nil
}

// path sanitizes the session id into a file name.
func (s *Store) path(sessionID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, sessionID)
	return filepath.Join(s.dir, safe+".jsonl")
}
