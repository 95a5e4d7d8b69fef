// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultArchiveName is the file the account export is saved as.
const DefaultArchiveName = "chat-export.zip"

// Source streams an archive into w, e.g. session.Manager.ExportData.
type Source func(ctx context.Context, w io.Writer) (int64, error)

// Summary describes a saved archive.
type Summary struct {
	Path  string
	Size  int64
	Files []string
}

// SaveArchive downloads an archive from src to path. A directory path
// gets DefaultArchiveName inside it. The archive is written to a temporary
// file and renamed into place only after it downloads completely and
// opens as a zip.
func SaveArchive(ctx context.Context, src Source, path string) (*Summary, error) {
	if path == "" {
		path = DefaultArchiveName
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultArchiveName)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".parley-export-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := src(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}

	files, err := listZip(tmpName)
	if err != nil {
		return nil, fmt.Errorf("export is not a valid archive: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("save archive: %w", err)
	}
	return &Summary{Path: path, Size: n, Files: files}, nil
}

func listZip(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}
