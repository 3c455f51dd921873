package spool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Writer stages fetched external content on the local filesystem before the
// file processor picks it up. Layout:
//
//	{root}/{connector}/{queryName}/{externalId}[_{desc}].{ext}
//
// with a JSON sidecar at {sameFilename}.json holding connector metadata,
// the only place provider metadata survives for later audit or re-parsing.
type Writer struct {
	root string
}

func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Write stores content and returns the absolute spool path.
func (w *Writer) Write(connector, queryName, externalID, description, ext string, content []byte) (string, error) {
	dir := filepath.Join(w.root, Sanitize(connector), Sanitize(queryName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}

	name := Sanitize(externalID)
	if desc := Sanitize(description); desc != "" {
		name += "_" + desc
	}
	ext = strings.TrimPrefix(ext, ".")

	// A retried item must not overwrite the earlier copy, so collisions get
	// a numeric suffix.
	path := filepath.Join(dir, name+"."+ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.%s", name, n, ext))
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write spool file: %w", err)
	}
	return path, nil
}

// WriteSidecar stores metadata next to a previously written spool file.
func (w *Writer) WriteSidecar(spoolPath string, metadata any) (string, error) {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sidecar: %w", err)
	}

	sidecarPath := spoolPath + ".json"
	if err := os.WriteFile(sidecarPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write sidecar: %w", err)
	}
	return sidecarPath, nil
}

// Sanitize makes an arbitrary string safe as a path segment. Long values
// are truncated so descriptions from email subjects stay manageable.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._-")
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
