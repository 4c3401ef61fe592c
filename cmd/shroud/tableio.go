package main

import (
	"fmt"
	"io"
	"os"

	"github.com/zoobzio/shroud"
)

// maxTableSize bounds table files read from disk (64MB).
const maxTableSize = 64 * 1024 * 1024

// readTable decodes a table file; the codec follows the file extension.
func readTable(path string) (*shroud.Table, error) {
	codec, err := shroud.CodecFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxTableSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	if len(data) > maxTableSize {
		return nil, fmt.Errorf("table file exceeds %d bytes", maxTableSize)
	}

	var t shroud.Table
	if err := codec.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if t.Privacy.Mode == "" {
		t.Privacy.Mode = shroud.ModeRaw
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("%s: row %d has %d cells, want %d", path, i, len(row), len(t.Columns))
		}
	}
	return &t, nil
}

// writeOutput encodes v to path, or to w in the given format when path is
// empty. Files are written owner-only.
func writeOutput(w io.Writer, path, format string, v any) error {
	name := format
	if path != "" {
		name = path
	}
	codec, err := shroud.CodecFor(name)
	if err != nil {
		return err
	}
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	if path == "" {
		_, err = w.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
