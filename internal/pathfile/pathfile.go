// Package pathfile loads waypoint paths from JSON files.
//
// Two layouts are accepted: a bare array of points,
//
//	[{"x":0,"y":0},{"x":1,"y":0}]
//
// or an object with a waypoints array and an optional name.
package pathfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/intnav/internal/geom"
)

const maxFileSize = 4 * 1024 * 1024

// Document is the object layout of a path file.
type Document struct {
	Name      string    `json:"name,omitempty"`
	Waypoints geom.Path `json:"waypoints"`
}

// Load reads and validates the path file at path.
func Load(path string) (Document, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Document{}, fmt.Errorf("path file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Document{}, fmt.Errorf("failed to stat path file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return Document{}, fmt.Errorf("path file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read path file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", cleanPath, err)
	}
	if doc.Name == "" {
		doc.Name = filepath.Base(cleanPath)
	}
	return doc, nil
}

// Parse decodes either layout and validates the waypoints.
func Parse(data []byte) (Document, error) {
	var doc Document
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Waypoints); err != nil {
			return Document{}, fmt.Errorf("failed to parse waypoints: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse path JSON: %w", err)
	}

	if err := doc.Waypoints.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Write encodes doc in the object layout.
func Write(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
