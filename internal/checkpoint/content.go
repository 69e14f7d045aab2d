// internal/checkpoint/content.go
package checkpoint

import (
	"crypto/sha256"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ContentStore is deduplicated, hash-addressed blob storage for file
// contents. Each unique content string is written once per session under
// files/<sha256-hex>.txt and shared by every checkpoint that references it.
type ContentStore struct {
	baseDir string
	mu      sync.RWMutex
	cache   map[string]string // "sessionId:hash" -> content
}

// NewContentStore creates a content store rooted at baseDir
func NewContentStore(baseDir string) *ContentStore {
	return &ContentStore{
		baseDir: baseDir,
		cache:   make(map[string]string),
	}
}

// blobDir returns the blob directory for a session
func (s *ContentStore) blobDir(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID, "files")
}

// Store writes content under its SHA-256 digest and returns the hash.
// Storing identical content twice never duplicates bytes on disk.
func (s *ContentStore) Store(sessionID, content string) (string, error) {
	hash := HashContent(content)

	dir := s.blobDir(sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	blobPath := filepath.Join(dir, hash+".txt")
	if _, err := os.Stat(blobPath); os.IsNotExist(err) {
		if err := os.WriteFile(blobPath, []byte(content), 0644); err != nil {
			return "", fmt.Errorf("write blob %s: %w", hash, err)
		}
	}

	return hash, nil
}

// Load resolves a hash back to its content. A missing blob is reported as
// a miss, never an error: callers treat it as "content unavailable" and
// skip the affected file.
func (s *ContentStore) Load(sessionID, hash string) (string, bool) {
	key := sessionID + ":" + hash

	s.mu.RLock()
	if content, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return content, true
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.blobDir(sessionID), hash+".txt"))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Checkpoint] read blob %s/%s: %v", sessionID, hash, err)
		}
		return "", false
	}

	content := string(data)
	s.mu.Lock()
	s.cache[key] = content
	s.mu.Unlock()

	return content, true
}

// ClearSession drops all cached entries for a session. Called alongside
// removal of the session's on-disk directory.
func (s *ContentStore) ClearSession(sessionID string) {
	prefix := sessionID + ":"

	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.cache {
		if strings.HasPrefix(key, prefix) {
			delete(s.cache, key)
		}
	}
}

// HashContent returns the SHA-256 hex digest of content
func HashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h)
}
