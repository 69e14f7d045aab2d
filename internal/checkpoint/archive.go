// internal/checkpoint/archive.go
package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
)

// sessionArchive is the envelope for a whole session: its index, raw
// checkpoint records and every referenced content blob, keyed by hash
type sessionArchive struct {
	SessionID  string            `json:"sessionId"`
	ExportedAt time.Time         `json:"exportedAt"`
	Index      *SessionIndex     `json:"index"`
	Records    []json.RawMessage `json:"records"`
	Blobs      map[string]string `json:"blobs"`
}

// ExportSession writes a session's complete checkpoint state to w as one
// zstd-compressed JSON envelope, suitable for backup or moving a session
// between machines. Blobs already missing on disk are skipped, matching
// load semantics.
func (m *Manager) ExportSession(sessionID string, w io.Writer) error {
	index, err := m.storage.Index().Load(sessionID)
	if err != nil {
		return err
	}

	arc := sessionArchive{
		SessionID:  sessionID,
		ExportedAt: time.Now().UTC(),
		Index:      index,
		Records:    []json.RawMessage{},
		Blobs:      make(map[string]string),
	}

	for _, entry := range index.Checkpoints {
		data, err := os.ReadFile(m.storage.recordPath(sessionID, entry.ID))
		if err != nil {
			log.Printf("[Checkpoint] export: record %s unreadable, skipping: %v", entry.ID, err)
			continue
		}

		var rec checkpointRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Printf("[Checkpoint] export: record %s corrupt, skipping: %v", entry.ID, err)
			continue
		}

		for _, fr := range rec.Files {
			for _, hash := range []string{fr.ContentHash, fr.NewContentHash} {
				if hash == "" {
					continue
				}
				if _, have := arc.Blobs[hash]; have {
					continue
				}
				if content, ok := m.storage.Content().Load(sessionID, hash); ok {
					arc.Blobs[hash] = content
				}
			}
		}

		arc.Records = append(arc.Records, json.RawMessage(data))
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(&arc); err != nil {
		enc.Close()
		return fmt.Errorf("encode archive: %w", err)
	}

	return enc.Close()
}

// ImportSession restores a session exported by ExportSession and returns
// its session id. Blobs are re-verified through the content store (they
// are written under the hash of what was actually read back) and the
// index is saved last, after every record it points at exists.
func (m *Manager) ImportSession(r io.Reader) (string, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	var arc sessionArchive
	if err := json.NewDecoder(dec).Decode(&arc); err != nil {
		return "", fmt.Errorf("decode archive: %w", err)
	}
	if arc.SessionID == "" || arc.Index == nil {
		return "", fmt.Errorf("archive has no session index")
	}

	if err := os.MkdirAll(m.storage.sessionDir(arc.SessionID), 0755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}

	for _, content := range arc.Blobs {
		if _, err := m.storage.Content().Store(arc.SessionID, content); err != nil {
			return "", fmt.Errorf("import blob: %w", err)
		}
	}

	for _, raw := range arc.Records {
		var rec checkpointRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return "", fmt.Errorf("decode archived record: %w", err)
		}
		if err := os.WriteFile(m.storage.recordPath(arc.SessionID, rec.ID), raw, 0644); err != nil {
			return "", fmt.Errorf("write record %s: %w", rec.ID, err)
		}
		if m.locator != nil {
			if err := m.locator.Add(rec.ID, arc.SessionID); err != nil {
				log.Printf("[Checkpoint] import: locator add %s: %v", rec.ID, err)
			}
		}
	}

	arc.Index.SessionID = arc.SessionID
	if err := m.storage.Index().Save(arc.Index); err != nil {
		return "", err
	}

	return arc.SessionID, nil
}
