// Package syncer keeps file-backed standards in step with the graph:
// discovery, hash-based change detection, reconciliation, and a
// scheduled loop with an optional filesystem watcher.
package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MetadataFile is the sidecar index written next to the standards root.
const MetadataFile = ".sync_metadata.json"

// FileEntry is the persisted state of one tracked file.
type FileEntry struct {
	Path           string    `json:"path"`
	LastModified   time.Time `json:"last_modified"`
	ContentHash    string    `json:"content_hash"`
	StandardsCount int       `json:"standards_count"`
}

// index maps relative paths to their last-synced state.
type index map[string]FileEntry

// loadIndex reads the sidecar index. A missing file is an empty index.
func loadIndex(root string) (index, error) {
	data, err := os.ReadFile(filepath.Join(root, MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return index{}, nil
		}
		return nil, fmt.Errorf("reading sync metadata: %w", err)
	}

	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing sync metadata: %w", err)
	}
	if idx == nil {
		idx = index{}
	}
	return idx, nil
}

// save writes the index atomically: temp file in the same directory,
// then rename. A failed sync leaves the prior index intact.
func (idx index) save(root string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sync metadata: %w", err)
	}

	tmp, err := os.CreateTemp(root, MetadataFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp metadata file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing sync metadata: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(root, MetadataFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("installing sync metadata: %w", err)
	}
	return nil
}

// hashBytes returns the hex SHA-256 of file content.
func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
