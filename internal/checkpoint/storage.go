// internal/checkpoint/storage.go
package checkpoint

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Storage persists assembled checkpoints. Write ordering is content blobs
// first, checkpoint record second, index entry third: a crash mid-sequence
// can leave unreferenced blobs (harmless) or an un-indexed record, but
// never an index entry pointing at a missing record.
type Storage struct {
	baseDir string
	content *ContentStore
	index   *IndexStore
}

// NewStorage creates checkpoint storage rooted at baseDir
func NewStorage(baseDir string) *Storage {
	return &Storage{
		baseDir: baseDir,
		content: NewContentStore(baseDir),
		index:   NewIndexStore(baseDir),
	}
}

// Content returns the underlying content store
func (s *Storage) Content() *ContentStore {
	return s.content
}

// Index returns the underlying index store
func (s *Storage) Index() *IndexStore {
	return s.index
}

// sessionDir returns the directory holding one session's state
func (s *Storage) sessionDir(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID)
}

// recordPath returns the path of a serialized checkpoint record
func (s *Storage) recordPath(sessionID, checkpointID string) string {
	return filepath.Join(s.sessionDir(sessionID), checkpointID+".json")
}

// Store writes a checkpoint durably: file contents go through the content
// store, the record holds hashes plus metadata, then the session index is
// updated. Persistence failures are surfaced, never downgraded.
func (s *Storage) Store(cp *Checkpoint) error {
	if err := os.MkdirAll(s.sessionDir(cp.SessionID), 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	rec := checkpointRecord{
		ID:           cp.ID,
		SessionID:    cp.SessionID,
		Type:         cp.Type,
		CreatedAt:    cp.CreatedAt,
		Label:        cp.Label,
		Automatic:    cp.Automatic,
		Files:        make([]fileRecord, 0, len(cp.Files)),
		Conversation: cp.Conversation,
		Git:          cp.Git,
	}

	for _, f := range cp.Files {
		hash, err := s.content.Store(cp.SessionID, f.OriginalContent)
		if err != nil {
			return fmt.Errorf("store content for %s: %w", f.FilePath, err)
		}

		fr := fileRecord{
			ID:          f.ID,
			FilePath:    f.FilePath,
			ContentHash: hash,
			CreatedAt:   f.CreatedAt,
			TriggeredBy: f.TriggeredBy,
			ToolCallID:  f.ToolCallID,
			Size:        f.Size,
		}
		if f.NewContent != nil {
			newHash, err := s.content.Store(cp.SessionID, *f.NewContent)
			if err != nil {
				return fmt.Errorf("store new content for %s: %w", f.FilePath, err)
			}
			fr.NewContentHash = newHash
		}
		rec.Files = append(rec.Files, fr)
	}

	data, err := json.MarshalIndent(&rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(s.recordPath(cp.SessionID, cp.ID), data, 0644); err != nil {
		return fmt.Errorf("write checkpoint record: %w", err)
	}

	if err := s.index.AddEntry(cp.SessionID, cp); err != nil {
		return fmt.Errorf("index checkpoint: %w", err)
	}

	return nil
}

// Load reads a checkpoint record back and rehydrates file contents from
// their hashes. A file whose blob is missing is skipped, not an error.
// Returns nil when no record exists for the id.
func (s *Storage) Load(sessionID, checkpointID string) (*Checkpoint, error) {
	rec, err := s.readRecord(sessionID, checkpointID)
	if err != nil || rec == nil {
		return nil, err
	}

	cp := &Checkpoint{
		ID:           rec.ID,
		SessionID:    rec.SessionID,
		Type:         rec.Type,
		CreatedAt:    rec.CreatedAt,
		Label:        rec.Label,
		Automatic:    rec.Automatic,
		Files:        make([]FileCheckpoint, 0, len(rec.Files)),
		Conversation: rec.Conversation,
		Git:          rec.Git,
	}

	for _, fr := range rec.Files {
		content, ok := s.content.Load(sessionID, fr.ContentHash)
		if !ok {
			log.Printf("[Checkpoint] missing blob %s for %s, skipping file", fr.ContentHash, fr.FilePath)
			continue
		}

		fc := FileCheckpoint{
			ID:              fr.ID,
			FilePath:        fr.FilePath,
			OriginalContent: content,
			CreatedAt:       fr.CreatedAt,
			TriggeredBy:     fr.TriggeredBy,
			ToolCallID:      fr.ToolCallID,
			Size:            fr.Size,
		}
		if fr.NewContentHash != "" {
			if newContent, ok := s.content.Load(sessionID, fr.NewContentHash); ok {
				fc.NewContent = &newContent
			}
		}
		cp.Files = append(cp.Files, fc)
	}

	return cp, nil
}

// readRecord reads the raw on-disk record, nil if absent
func (s *Storage) readRecord(sessionID, checkpointID string) (*checkpointRecord, error) {
	data, err := os.ReadFile(s.recordPath(sessionID, checkpointID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint record: %w", err)
	}

	var rec checkpointRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint record: %w", err)
	}

	return &rec, nil
}

// Delete removes a checkpoint record file. Content blobs are left in
// place; see Manager.PruneCheckpoints.
func (s *Storage) Delete(sessionID, checkpointID string) error {
	err := os.Remove(s.recordPath(sessionID, checkpointID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Sessions lists every session id with on-disk state
func (s *Storage) Sessions() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []string
	for _, entry := range entries {
		if entry.IsDir() {
			sessions = append(sessions, entry.Name())
		}
	}
	return sessions, nil
}

// ClearSession removes a session's entire directory, records, index and
// blobs included, and drops its cached content
func (s *Storage) ClearSession(sessionID string) error {
	if err := os.RemoveAll(s.sessionDir(sessionID)); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	s.content.ClearSession(sessionID)
	return nil
}
