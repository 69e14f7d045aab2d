// internal/checkpoint/manager.go
package checkpoint

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"rewindcore/internal/git"
	"rewindcore/internal/locator"
	"rewindcore/internal/watcher"
)

// DefaultMaxCheckpoints bounds how many checkpoints the automatic path
// retains per session before pruning the oldest
const DefaultMaxCheckpoints = 50

// Manager is the engine facade the REPL/tool layer calls into. It owns no
// process-wide state: callers construct an instance and inject it wherever
// it is needed. The engine assumes a single writer per session; the index
// rewrite-on-save is last-writer-wins across concurrent writers.
type Manager struct {
	storage        *Storage
	locator        *locator.Index
	tracker        *watcher.Tracker
	workspaceDir   string
	maxCheckpoints int
}

// Option configures a Manager
type Option func(*Manager)

// WithMaxCheckpoints overrides the per-session retention bound
func WithMaxCheckpoints(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxCheckpoints = n
		}
	}
}

// WithLocator attaches the global checkpoint-id locator. Lookups fall
// back to a directory scan when the locator misses.
func WithLocator(idx *locator.Index) Option {
	return func(m *Manager) {
		m.locator = idx
	}
}

// WithTracker attaches a workspace change tracker; files are marked clean
// as the automatic path snapshots them
func WithTracker(t *watcher.Tracker) Option {
	return func(m *Manager) {
		m.tracker = t
	}
}

// WithWorkspace records the workspace directory whose VCS state is
// captured on each stored checkpoint
func WithWorkspace(dir string) Option {
	return func(m *Manager) {
		m.workspaceDir = dir
	}
}

// NewManager creates a checkpoint manager persisting under baseDir
func NewManager(baseDir string, opts ...Option) *Manager {
	m := &Manager{
		storage:        NewStorage(baseDir),
		maxCheckpoints: DefaultMaxCheckpoints,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// generateID returns a prefixed, time-plus-random id
func generateID(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// CreateFileCheckpoint snapshots a file's current content before a
// modification. A file that does not exist yet yields an empty snapshot;
// that is the canonical way to checkpoint a file about to be created.
func (m *Manager) CreateFileCheckpoint(filePath, triggeredBy, toolCallID string) (*FileCheckpoint, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", filePath, err)
	}

	content := ""
	data, err := os.ReadFile(abs)
	if err == nil {
		content = string(data)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}

	return &FileCheckpoint{
		ID:              generateID("fc"),
		FilePath:        abs,
		OriginalContent: content,
		CreatedAt:       time.Now(),
		TriggeredBy:     triggeredBy,
		ToolCallID:      toolCallID,
		Size:            int64(len(content)),
	}, nil
}

// CreateConversationCheckpoint snapshots a message history. The messages
// slice is copied; later mutation of the caller's live history never
// affects the stored checkpoint.
func (m *Manager) CreateConversationCheckpoint(sessionID string, messages []Message, description string) *ConversationCheckpoint {
	return &ConversationCheckpoint{
		ID:           generateID("cc"),
		SessionID:    sessionID,
		Messages:     slices.Clone(messages),
		MessageCount: len(messages),
		CreatedAt:    time.Now(),
		Description:  description,
	}
}

// CreateCheckpoint assembles and persists a user-requested checkpoint.
// File paths are snapshotted for file/combined types, messages for
// conversation/combined types.
func (m *Manager) CreateCheckpoint(sessionID string, cpType CheckpointType, filePaths []string, messages []Message, label string) (*Checkpoint, error) {
	cp := &Checkpoint{
		ID:        generateID("cp"),
		SessionID: sessionID,
		Type:      cpType,
		Files:     []FileCheckpoint{},
		CreatedAt: time.Now(),
		Label:     label,
		Automatic: false,
	}

	if cpType == TypeFile || cpType == TypeCombined {
		for _, path := range filePaths {
			fc, err := m.CreateFileCheckpoint(path, "checkpoint", "")
			if err != nil {
				return nil, err
			}
			cp.Files = append(cp.Files, *fc)
		}
	}

	if (cpType == TypeConversation || cpType == TypeCombined) && messages != nil {
		cp.Conversation = m.CreateConversationCheckpoint(sessionID, messages, label)
	}

	m.attachGitState(cp)

	if err := m.storage.Store(cp); err != nil {
		return nil, err
	}
	m.recordLocation(cp)

	return cp, nil
}

// UpdateFileCheckpointWithNewContent attaches post-modification content to
// a file checkpoint for later diff display. Pure transform; nothing is
// persisted here.
func (m *Manager) UpdateFileCheckpointWithNewContent(fc FileCheckpoint, newContent string) FileCheckpoint {
	fc.NewContent = &newContent
	return fc
}

// StoreAutoFileCheckpoint wraps a single file checkpoint as an automatic
// checkpoint, persists it and immediately prunes, so the retention bound
// is enforced continuously rather than by a scheduled job.
func (m *Manager) StoreAutoFileCheckpoint(sessionID string, fc *FileCheckpoint, label string) (*Checkpoint, error) {
	if label == "" {
		label = "Before " + fc.TriggeredBy
	}

	cp := &Checkpoint{
		ID:        generateID("cp"),
		SessionID: sessionID,
		Type:      TypeFile,
		Files:     []FileCheckpoint{*fc},
		CreatedAt: time.Now(),
		Label:     label,
		Automatic: true,
	}
	m.attachGitState(cp)

	if err := m.storage.Store(cp); err != nil {
		return nil, err
	}
	m.recordLocation(cp)

	if m.tracker != nil {
		m.tracker.MarkClean(fc.FilePath)
	}

	if _, err := m.PruneCheckpoints(sessionID); err != nil {
		log.Printf("[Checkpoint] prune after auto checkpoint: %v", err)
	}

	return cp, nil
}

// GetCheckpoints lists a session's checkpoints, newest first, without
// loading checkpoint bodies
func (m *Manager) GetCheckpoints(sessionID string) ([]CheckpointIndexEntry, error) {
	index, err := m.storage.Index().Load(sessionID)
	if err != nil {
		return nil, err
	}

	entries := slices.Clone(index.Checkpoints)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	return entries, nil
}

// GetCheckpoint resolves a checkpoint id without knowing its session. The
// locator answers in one lookup when present; otherwise every session
// directory is scanned. Returns nil when no session has the id.
func (m *Manager) GetCheckpoint(checkpointID string) (*Checkpoint, error) {
	if m.locator != nil {
		if sessionID, ok := m.locator.Lookup(checkpointID); ok {
			cp, err := m.storage.Load(sessionID, checkpointID)
			if err != nil {
				return nil, err
			}
			if cp != nil {
				return cp, nil
			}
			// stale locator row; fall through to the scan
		}
	}

	sessions, err := m.storage.Sessions()
	if err != nil {
		return nil, err
	}
	for _, sessionID := range sessions {
		cp, err := m.storage.Load(sessionID, checkpointID)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			return cp, nil
		}
	}

	return nil, nil
}

// GetLatestCheckpoint loads the most recent checkpoint of a session, nil
// if the session has none
func (m *Manager) GetLatestCheckpoint(sessionID string) (*Checkpoint, error) {
	entries, err := m.GetCheckpoints(sessionID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	return m.storage.Load(sessionID, entries[0].ID)
}

// GetCheckpointedFiles returns the distinct file paths covered by any of
// a session's checkpoints
func (m *Manager) GetCheckpointedFiles(sessionID string) ([]string, error) {
	entries, err := m.GetCheckpoints(sessionID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var paths []string
	for _, entry := range entries {
		rec, err := m.storage.readRecord(sessionID, entry.ID)
		if err != nil || rec == nil {
			continue
		}
		for _, fr := range rec.Files {
			if !seen[fr.FilePath] {
				seen[fr.FilePath] = true
				paths = append(paths, fr.FilePath)
			}
		}
	}
	sort.Strings(paths)

	return paths, nil
}

// Rewind restores the selected parts of a checkpoint. Files are restored
// independently: one file's failure is recorded in FilesFailed and never
// aborts the others. Only an unknown checkpoint id is an error.
func (m *Manager) Rewind(opts RewindOptions) (*RewindResult, error) {
	cp, err := m.GetCheckpoint(opts.CheckpointID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, &NotFoundError{CheckpointID: opts.CheckpointID}
	}

	result := &RewindResult{
		CheckpointID:  cp.ID,
		FilesRestored: []string{},
		FilesFailed:   []FileRestoreError{},
	}

	if opts.RestoreFiles {
		excluded := make(map[string]bool, len(opts.ExcludeFiles))
		for _, path := range opts.ExcludeFiles {
			excluded[filepath.Clean(path)] = true
		}

		for _, fc := range cp.Files {
			if excluded[filepath.Clean(fc.FilePath)] {
				continue
			}

			if err := os.MkdirAll(filepath.Dir(fc.FilePath), 0755); err != nil {
				result.FilesFailed = append(result.FilesFailed, FileRestoreError{
					Path:  fc.FilePath,
					Error: err.Error(),
				})
				continue
			}
			if err := os.WriteFile(fc.FilePath, []byte(fc.OriginalContent), 0644); err != nil {
				result.FilesFailed = append(result.FilesFailed, FileRestoreError{
					Path:  fc.FilePath,
					Error: err.Error(),
				})
				continue
			}
			result.FilesRestored = append(result.FilesRestored, fc.FilePath)
		}
	}

	// Splicing messages back into a live session belongs to the caller;
	// the engine only reports what a conversation restore would yield.
	if opts.RestoreConversation && cp.Conversation != nil {
		result.ConversationRestored = true
		result.MessagesAfterRestore = cp.Conversation.MessageCount
	}

	return result, nil
}

// PruneCheckpoints enforces the retention bound: the newest maxCheckpoints
// entries survive, older records are deleted best-effort and the index is
// rewritten with only the retained entries. Content blobs referenced only
// by pruned checkpoints stay on disk; nothing garbage-collects them.
func (m *Manager) PruneCheckpoints(sessionID string) (int, error) {
	index, err := m.storage.Index().Load(sessionID)
	if err != nil {
		return 0, err
	}
	if len(index.Checkpoints) <= m.maxCheckpoints {
		return 0, nil
	}

	entries := slices.Clone(index.Checkpoints)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	retained := entries[:m.maxCheckpoints]
	evicted := entries[m.maxCheckpoints:]

	for _, entry := range evicted {
		if err := m.storage.Delete(sessionID, entry.ID); err != nil {
			log.Printf("[Checkpoint] prune: remove record %s: %v", entry.ID, err)
		}
		if m.locator != nil {
			if err := m.locator.Remove(entry.ID); err != nil {
				log.Printf("[Checkpoint] prune: locator remove %s: %v", entry.ID, err)
			}
		}
	}

	index.Checkpoints = retained
	if err := m.storage.Index().Save(index); err != nil {
		return 0, err
	}

	return len(evicted), nil
}

// ClearCheckpoints removes all of a session's checkpoint state: records,
// index, content blobs and cache entries
func (m *Manager) ClearCheckpoints(sessionID string) error {
	if err := m.storage.ClearSession(sessionID); err != nil {
		return err
	}
	if m.locator != nil {
		if err := m.locator.RemoveSession(sessionID); err != nil {
			log.Printf("[Checkpoint] clear: locator remove session %s: %v", sessionID, err)
		}
	}
	return nil
}

// ShouldCheckpointFile reports whether a file currently exists. Callers
// use it to skip checkpointing brand-new files.
func (m *Manager) ShouldCheckpointFile(filePath string) bool {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// HasFileChangedSinceLastCheckpoint compares a file's current content hash
// against the most recent checkpoint covering that path. A file never
// checkpointed reports true, so callers always snapshot it once.
func (m *Manager) HasFileChangedSinceLastCheckpoint(sessionID, filePath string) (bool, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return true, fmt.Errorf("resolve path %s: %w", filePath, err)
	}

	entries, err := m.GetCheckpoints(sessionID)
	if err != nil {
		return true, err
	}

	for _, entry := range entries {
		rec, err := m.storage.readRecord(sessionID, entry.ID)
		if err != nil || rec == nil {
			continue
		}
		for _, fr := range rec.Files {
			if fr.FilePath != abs {
				continue
			}

			content := ""
			if data, err := os.ReadFile(abs); err == nil {
				content = string(data)
			}
			return HashContent(content) != fr.ContentHash, nil
		}
	}

	return true, nil
}

// ModifiedFiles returns the tracker's dirty set, the candidates for the
// next automatic checkpoint. Empty without an attached tracker.
func (m *Manager) ModifiedFiles() []string {
	if m.tracker == nil {
		return nil
	}
	return m.tracker.Dirty()
}

// attachGitState records workspace VCS context on a checkpoint,
// best-effort: a workspace that is not a repository leaves it unset
func (m *Manager) attachGitState(cp *Checkpoint) {
	if m.workspaceDir == "" {
		return
	}
	state, err := git.Describe(m.workspaceDir)
	if err != nil {
		return
	}
	cp.Git = state
}

// recordLocation registers a stored checkpoint with the locator,
// best-effort after the record is durable
func (m *Manager) recordLocation(cp *Checkpoint) {
	if m.locator == nil {
		return
	}
	if err := m.locator.Add(cp.ID, cp.SessionID); err != nil {
		log.Printf("[Checkpoint] locator add %s: %v", cp.ID, err)
	}
}
