package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

// Store persists transcriptions as JSON lines, one entry per line,
// appended in chronological order. Simple enough to grep, robust to a
// torn final line.
type Store struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

var _ ports.HistoryStore = (*Store)(nil)

// NewStore opens (or creates) the history file under the user data
// directory.
func NewStore(log zerolog.Logger) (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".local", "share", "voxkey")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory %q: %w", dir, err)
	}
	return NewStoreAt(filepath.Join(dir, "history.jsonl"), log), nil
}

func NewStoreAt(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log.With().Str("component", "history").Logger()}
}

// AddEntry appends a transcription record and returns its id.
func (s *Store) AddEntry(text string, durationMS int, mode domain.RecordingMode) (string, error) {
	entry := domain.HistoryEntry{
		ID:         uuid.NewString(),
		Text:       text,
		DurationMS: durationMS,
		Mode:       mode,
		Timestamp:  time.Now().UTC(),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("could not open history file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("could not append history entry: %w", err)
	}
	return entry.ID, nil
}

// Recent returns up to limit entries, newest first. Unparseable lines
// are skipped rather than failing the whole read.
func (s *Store) Recent(limit int) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not open history file: %w", err)
	}
	defer f.Close()

	var entries []domain.HistoryEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var entry domain.HistoryEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			s.log.Debug().Err(err).Msg("skipping malformed history line")
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read history file: %w", err)
	}

	// File order is oldest first; reverse and cap.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
