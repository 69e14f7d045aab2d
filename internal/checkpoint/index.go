// internal/checkpoint/index.go
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// IndexStore persists the per-session checkpoint catalog. The index is
// rewritten wholesale on every mutation: a single file write either lands
// or does not, which keeps it crash-consistent without an append log.
type IndexStore struct {
	baseDir string
}

// NewIndexStore creates an index store rooted at baseDir
func NewIndexStore(baseDir string) *IndexStore {
	return &IndexStore{baseDir: baseDir}
}

// indexPath returns the index file path for a session
func (s *IndexStore) indexPath(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID, "index.json")
}

// Load reads a session's index. A session with no index on disk gets an
// empty, freshly-initialized one; this is never an error.
func (s *IndexStore) Load(sessionID string) (*SessionIndex, error) {
	data, err := os.ReadFile(s.indexPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return &SessionIndex{
				SessionID:   sessionID,
				Checkpoints: []CheckpointIndexEntry{},
			}, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var index SessionIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("unmarshal index: %w", err)
	}
	if index.Checkpoints == nil {
		index.Checkpoints = []CheckpointIndexEntry{}
	}

	return &index, nil
}

// Save overwrites the whole index and stamps LastUpdated
func (s *IndexStore) Save(index *SessionIndex) error {
	index.LastUpdated = time.Now().UTC()

	dir := filepath.Join(s.baseDir, index.SessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := os.WriteFile(s.indexPath(index.SessionID), data, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	return nil
}

// AddEntry appends a checkpoint's catalog entry and saves the index
func (s *IndexStore) AddEntry(sessionID string, cp *Checkpoint) error {
	index, err := s.Load(sessionID)
	if err != nil {
		return err
	}

	index.Checkpoints = append(index.Checkpoints, entryFor(cp))
	return s.Save(index)
}

// RemoveEntry drops a checkpoint's catalog entry and saves the index.
// Removing an id that is not present is a no-op.
func (s *IndexStore) RemoveEntry(sessionID, checkpointID string) error {
	index, err := s.Load(sessionID)
	if err != nil {
		return err
	}

	kept := index.Checkpoints[:0]
	for _, entry := range index.Checkpoints {
		if entry.ID != checkpointID {
			kept = append(kept, entry)
		}
	}
	index.Checkpoints = kept

	return s.Save(index)
}

// entryFor builds the lightweight index entry for a checkpoint
func entryFor(cp *Checkpoint) CheckpointIndexEntry {
	entry := CheckpointIndexEntry{
		ID:        cp.ID,
		Type:      cp.Type,
		CreatedAt: cp.CreatedAt,
		Label:     cp.Label,
		Automatic: cp.Automatic,
		FileCount: len(cp.Files),
	}
	if cp.Conversation != nil {
		entry.MessageCount = cp.Conversation.MessageCount
	}
	return entry
}
