// Package manifest parses and validates the descriptor and content files
// shipped inside a pack archive.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmfontan/libropack/internal/domain"
)

// FileName is the descriptor's well-known name at the archive root.
const FileName = "manifest.json"

// ErrMissing reports that manifest.json does not exist in the pack root.
var ErrMissing = errors.New("manifest.json not found")

// FileEntry is one per-file integrity record.
type FileEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// Integrity holds the archive hash and the per-file hash list.
type Integrity struct {
	PackSHA256 string      `json:"packSha256"`
	Files      []FileEntry `json:"files"`
}

// BookEntry describes one book and the content file backing it.
type BookEntry struct {
	BookID    string `json:"bookId"`
	Title     string `json:"title"`
	SortOrder int    `json:"sortOrder"`
	Path      string `json:"path"`
}

// Manifest is the pack descriptor. It is validated and consumed once per
// install, never persisted verbatim.
type Manifest struct {
	SchemaVersion int         `json:"schemaVersion"`
	PackID        string      `json:"packId"`
	PackVersion   string      `json:"packVersion"`
	MinAppVersion string      `json:"minAppVersion"`
	Integrity     Integrity   `json:"integrity"`
	Books         []BookEntry `json:"books"`
}

// Load reads manifest.json from the given pack root. A missing file returns
// ErrMissing; anything unreadable or unparsable is a format error.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissing
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Validate checks the manifest against the pack id the caller asked to
// install.
func (m *Manifest) Validate(packID string) error {
	if m.PackID != packID {
		return fmt.Errorf("manifest packId %q does not match requested %q", m.PackID, packID)
	}
	if m.PackVersion == "" {
		return errors.New("manifest packVersion is missing")
	}
	if len(m.Books) == 0 {
		return errors.New("manifest lists no books")
	}
	for i, b := range m.Books {
		if b.BookID == "" {
			return fmt.Errorf("book %d has no bookId", i)
		}
		if b.Path == "" {
			return fmt.Errorf("book %q has no path", b.BookID)
		}
	}
	return nil
}

// Segment is the smallest addressable unit of book content.
type Segment struct {
	SegmentID string             `json:"segmentId"`
	Type      domain.SegmentType `json:"type"`
	Text      string             `json:"text"`
	Poetry    bool               `json:"poetry,omitempty"`
}

// SectionContent is one section of a book file, segments inline.
type SectionContent struct {
	SectionID string    `json:"sectionId"`
	Title     string    `json:"title"`
	SortOrder int       `json:"sortOrder"`
	Segments  []Segment `json:"segments"`
}

// BookFile is the content format behind a manifest book path.
type BookFile struct {
	Sections []SectionContent `json:"sections"`
}

// LoadBookFile reads and parses one book content file from an installed
// pack.
func LoadBookFile(path string) (*BookFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read book file: %w", err)
	}
	var bf BookFile
	if err := json.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse book file %s: %w", filepath.Base(path), err)
	}
	return &bf, nil
}
