// internal/checkpoint/models.go
package checkpoint

import (
	"time"

	"rewindcore/internal/git"
)

// CheckpointType describes what a checkpoint captures
type CheckpointType string

const (
	TypeFile         CheckpointType = "file"
	TypeConversation CheckpointType = "conversation"
	TypeCombined     CheckpointType = "combined"
)

// Message is a single entry in a conversation history
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// FileCheckpoint is a snapshot of one file taken before a modification.
// FilePath is always absolute and Size is the byte length of
// OriginalContent at creation time.
type FileCheckpoint struct {
	ID              string    `json:"id"`
	FilePath        string    `json:"filePath"`
	OriginalContent string    `json:"originalContent"`
	NewContent      *string   `json:"newContent,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	TriggeredBy     string    `json:"triggeredBy"`
	ToolCallID      string    `json:"toolCallId,omitempty"`
	Size            int64     `json:"size"`
}

// ConversationCheckpoint is an immutable snapshot of a message history.
// Messages is a defensive copy taken at creation time.
type ConversationCheckpoint struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	Messages     []Message `json:"messages"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	Description  string    `json:"description,omitempty"`
}

// Checkpoint is the unit of restoration: zero or more file snapshots plus
// an optional conversation snapshot
type Checkpoint struct {
	ID           string                  `json:"id"`
	SessionID    string                  `json:"sessionId"`
	Type         CheckpointType          `json:"type"`
	Files        []FileCheckpoint        `json:"files"`
	Conversation *ConversationCheckpoint `json:"conversation,omitempty"`
	CreatedAt    time.Time               `json:"createdAt"`
	Label        string                  `json:"label,omitempty"`
	Automatic    bool                    `json:"automatic"`
	Git          *git.State              `json:"git,omitempty"`
}

// CheckpointIndexEntry is the lightweight per-checkpoint view held in the
// session index, enough for listing without loading checkpoint bodies
type CheckpointIndexEntry struct {
	ID           string         `json:"id"`
	Type         CheckpointType `json:"type"`
	CreatedAt    time.Time      `json:"createdAt"`
	Label        string         `json:"label,omitempty"`
	Automatic    bool           `json:"automatic"`
	FileCount    int            `json:"fileCount"`
	MessageCount int            `json:"messageCount,omitempty"`
}

// SessionIndex is the per-session catalog of checkpoints
type SessionIndex struct {
	SessionID   string                 `json:"sessionId"`
	Checkpoints []CheckpointIndexEntry `json:"checkpoints"`
	LastUpdated time.Time              `json:"lastUpdated"`
}

// RewindOptions selects a checkpoint and which parts of it to restore
type RewindOptions struct {
	CheckpointID        string   `json:"checkpoint_id"`
	RestoreFiles        bool     `json:"restore_files"`
	RestoreConversation bool     `json:"restore_conversation"`
	ExcludeFiles        []string `json:"exclude_files,omitempty"`
}

// FileRestoreError records a single file that could not be restored
type FileRestoreError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// RewindResult reports the outcome of a rewind. One file failing never
// aborts the others; failures land in FilesFailed instead.
type RewindResult struct {
	CheckpointID         string             `json:"checkpoint_id"`
	FilesRestored        []string           `json:"files_restored"`
	FilesFailed          []FileRestoreError `json:"files_failed"`
	ConversationRestored bool               `json:"conversation_restored"`
	MessagesAfterRestore int                `json:"messages_after_restore,omitempty"`
}

// checkpointRecord is the on-disk form of a Checkpoint: file contents are
// replaced by content-store hashes, conversation messages stay inline
type checkpointRecord struct {
	ID           string                  `json:"id"`
	SessionID    string                  `json:"sessionId"`
	Type         CheckpointType          `json:"type"`
	CreatedAt    time.Time               `json:"createdAt"`
	Label        string                  `json:"label,omitempty"`
	Automatic    bool                    `json:"automatic"`
	Files        []fileRecord            `json:"files"`
	Conversation *ConversationCheckpoint `json:"conversation,omitempty"`
	Git          *git.State              `json:"git,omitempty"`
}

// fileRecord is the on-disk form of a FileCheckpoint
type fileRecord struct {
	ID             string    `json:"id"`
	FilePath       string    `json:"filePath"`
	ContentHash    string    `json:"contentHash"`
	NewContentHash string    `json:"newContentHash,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	TriggeredBy    string    `json:"triggeredBy"`
	ToolCallID     string    `json:"toolCallId,omitempty"`
	Size           int64     `json:"size"`
}
