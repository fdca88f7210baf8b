package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Metadata records store-level bookkeeping alongside the per-symbol files.
type Metadata struct {
	LastFullDownload time.Time `json:"last_full_download,omitzero"`
	LastUpdate       time.Time `json:"last_update,omitzero"`
	TotalSymbols     int       `json:"total_symbols"`
	StartDate        string    `json:"start_date"`
}

func (s *Store) metaPath() string {
	return filepath.Join(s.DataDir, "meta.json")
}

// LoadMetadata reads the metadata file. A missing or unreadable file yields
// zero-valued metadata rather than an error; metadata is advisory.
func (s *Store) LoadMetadata() Metadata {
	var meta Metadata
	data, err := os.ReadFile(s.metaPath())
	if err != nil {
		return meta
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}
	}
	return meta
}

// SaveMetadata writes the metadata file atomically.
func (s *Store) SaveMetadata(meta Metadata) error {
	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.metaPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.metaPath())
}
