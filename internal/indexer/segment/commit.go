package segment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CommitFile is the name of the commit point inside a data directory.
const CommitFile = "CURRENT"

// CommitPoint names the files of the current generation together with the
// analysis settings the index was built with.
type CommitPoint struct {
	Generation  uint64    `json:"generation"`
	IndexFile   string    `json:"index_file"`
	DocsFile    string    `json:"docs_file"`
	Analyzer    string    `json:"analyzer"`
	Fields      []string  `json:"fields"`
	Documents   int       `json:"documents"`
	CommittedAt time.Time `json:"committed_at"`
}

// WriteCommit atomically replaces CURRENT. Once it returns, cp is the
// generation every subsequent open will load.
func (w *Writer) WriteCommit(cp CommitPoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling commit point: %w", err)
	}
	return w.writeAtomic(CommitFile, func(f *os.File) error {
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing commit point: %w", err)
		}
		return nil
	})
}

// ReadCommit loads the commit point of dataDir. ok is false when no commit
// has ever been written.
func ReadCommit(dataDir string) (cp CommitPoint, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(dataDir, CommitFile))
	if errors.Is(err, fs.ErrNotExist) {
		return CommitPoint{}, false, nil
	}
	if err != nil {
		return CommitPoint{}, false, fmt.Errorf("reading commit point: %w", err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return CommitPoint{}, false, fmt.Errorf("%w: parsing commit point: %v", ErrCorrupt, err)
	}
	return cp, true, nil
}

// Cleanup removes segment files and leftover temp files not referenced by
// keep. It returns the names it removed.
func Cleanup(dataDir string, keep CommitPoint) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("listing data directory: %w", err)
	}
	var removed []string
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == keep.IndexFile || name == keep.DocsFile || name == CommitFile {
			continue
		}
		stale := strings.HasSuffix(name, ".tmp") ||
			(strings.HasPrefix(name, "seg_") && strings.HasSuffix(name, ".spdx")) ||
			(strings.HasPrefix(name, "docs_") && strings.HasSuffix(name, ".spds"))
		if !stale {
			continue
		}
		if err := os.Remove(filepath.Join(dataDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, name)
	}
	return removed, errors.Join(errs...)
}
