// Package registry stores built program binaries on disk.
//
// A registry directory holds an index and a content-addressed blob store:
//
//	<dir>/index.yaml
//	<dir>/blobs/<sha256>.spv
//
// Identical binaries produced by different programs share one blob.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/progbuild"
)

// IndexVersion is the index format written by this package.
const IndexVersion = 1

const (
	indexFile = "index.yaml"
	blobDir   = "blobs"
	blobExt   = ".spv"
)

var (
	// ErrNotFound is returned by Lookup for unknown identifiers.
	ErrNotFound = errors.New("registry: program not found")

	// ErrDuplicate is returned by Add when an identifier is added twice.
	ErrDuplicate = errors.New("registry: duplicate program")

	// ErrCorrupt is returned when a blob does not match its digest.
	ErrCorrupt = errors.New("registry: corrupt blob")

	// ErrEmptyBinary is returned by Add for empty binaries.
	ErrEmptyBinary = errors.New("registry: empty binary")
)

// ProgramIdentifier names a program by the test case that declared it.
type ProgramIdentifier struct {
	TestCasePath string
	ProgramName  string
}

func (id ProgramIdentifier) String() string {
	return id.TestCasePath + " / " + id.ProgramName
}

type indexEntry struct {
	Case    string `yaml:"case"`
	Program string `yaml:"program"`
	Blob    string `yaml:"blob"`
	Size    int    `yaml:"size"`
}

type index struct {
	Version  int          `yaml:"version"`
	Programs []indexEntry `yaml:"programs"`
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func blobPath(dir, sum string) string {
	return filepath.Join(dir, blobDir, sum+blobExt)
}

// Writer collects binaries and writes them to a registry directory.
// Add is safe for concurrent use.
type Writer struct {
	dir string

	mu      sync.Mutex
	entries map[ProgramIdentifier]string
	blobs   map[string][]byte
}

// NewWriter returns a writer targeting dir. Nothing touches the filesystem
// until Write.
func NewWriter(dir string) *Writer {
	return &Writer{
		dir:     dir,
		entries: make(map[ProgramIdentifier]string),
		blobs:   make(map[string][]byte),
	}
}

// Dir returns the registry directory.
func (w *Writer) Dir() string { return w.dir }

// Add records binary under id. The binary is copied.
func (w *Writer) Add(id ProgramIdentifier, binary []byte) error {
	if len(binary) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyBinary, id)
	}
	sum := digest(binary)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, dup := w.entries[id]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	w.entries[id] = sum
	if _, ok := w.blobs[sum]; !ok {
		w.blobs[sum] = append([]byte(nil), binary...)
	}
	return nil
}

// Len returns the number of programs added so far.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Write stores all blobs and then the index. Blobs already present are left
// alone; every file is written through a temporary file and a rename, so a
// crash never leaves a truncated blob or index behind.
func (w *Writer) Write() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(w.dir, blobDir), 0o755); err != nil {
		return fmt.Errorf("registry: creating directory: %w", err)
	}

	written := 0
	for sum, data := range w.blobs {
		path := blobPath(w.dir, sum)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := writeFileAtomic(path, data, 0o644); err != nil {
			return fmt.Errorf("registry: writing blob: %w", err)
		}
		written++
	}

	idx := index{Version: IndexVersion, Programs: make([]indexEntry, 0, len(w.entries))}
	for id, sum := range w.entries {
		idx.Programs = append(idx.Programs, indexEntry{
			Case:    id.TestCasePath,
			Program: id.ProgramName,
			Blob:    sum,
			Size:    len(w.blobs[sum]),
		})
	}
	sort.Slice(idx.Programs, func(i, j int) bool {
		a, b := idx.Programs[i], idx.Programs[j]
		if a.Case != b.Case {
			return a.Case < b.Case
		}
		return a.Program < b.Program
	})

	data, err := yaml.Marshal(&idx)
	if err != nil {
		return fmt.Errorf("registry: encoding index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(w.dir, indexFile), data, 0o644); err != nil {
		return fmt.Errorf("registry: writing index: %w", err)
	}

	progbuild.Logger().Debug("registry written",
		"dir", w.dir, "programs", len(w.entries), "blobs", len(w.blobs), "new_blobs", written)
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Reader reads a registry written by Writer.
type Reader struct {
	dir     string
	entries map[ProgramIdentifier]indexEntry
}

// Open loads the index of the registry in dir.
func Open(dir string) (*Reader, error) {
	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		return nil, fmt.Errorf("registry: reading index: %w", err)
	}
	var idx index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("registry: decoding index: %w", err)
	}
	if idx.Version != IndexVersion {
		return nil, fmt.Errorf("registry: unsupported index version %d", idx.Version)
	}

	r := &Reader{dir: dir, entries: make(map[ProgramIdentifier]indexEntry, len(idx.Programs))}
	for _, e := range idx.Programs {
		r.entries[ProgramIdentifier{TestCasePath: e.Case, ProgramName: e.Program}] = e
	}
	return r, nil
}

// Len returns the number of programs in the registry.
func (r *Reader) Len() int { return len(r.entries) }

// IDs returns the program identifiers sorted by case path and name.
func (r *Reader) IDs() []ProgramIdentifier {
	ids := make([]ProgramIdentifier, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].TestCasePath != ids[j].TestCasePath {
			return ids[i].TestCasePath < ids[j].TestCasePath
		}
		return ids[i].ProgramName < ids[j].ProgramName
	})
	return ids
}

// Lookup returns the binary stored for id, verifying its digest.
func (r *Reader) Lookup(id ProgramIdentifier) ([]byte, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	data, err := os.ReadFile(blobPath(r.dir, e.Blob))
	if err != nil {
		return nil, fmt.Errorf("registry: reading blob for %s: %w", id, err)
	}
	if digest(data) != e.Blob {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, id)
	}
	return data, nil
}
