// Package archive packages generated project files into downloadable zip
// archives.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrOutsideDir is returned when asked to touch a path outside the archive dir.
var ErrOutsideDir = errors.New("path is outside the archive directory")

// ErrInvalidName is returned for file names that would escape the archive root.
var ErrInvalidName = errors.New("invalid file name in archive")

const filePrefix = "generated_code_"

// Build returns a deflated zip containing files, written in name order.
func Build(files map[string]string) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		clean, err := cleanName(name)
		if err != nil {
			return nil, err
		}
		if clean != name {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	return buf.Bytes(), nil
}

func cleanName(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, '\\') || path.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return clean, nil
}

// Writer stores archives in a directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter returns a Writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve archive directory: %w", err)
	}
	return &Writer{dir: abs, now: time.Now}, nil
}

// Dir returns the absolute archive directory.
func (w *Writer) Dir() string { return w.dir }

// Write zips files and stores the archive under a unique name of the form
// generated_code_<YYYYMMDD_HHMMSS>_<id>.zip. It returns the archive path.
func (w *Writer) Write(files map[string]string) (string, error) {
	data, err := Build(files)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s%s_%s.zip", filePrefix, w.now().Format("20060102_150405"), uuid.New().String()[:8])
	p := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, ".partial-*.zip")
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("store archive: %w", err)
	}
	return p, nil
}

// Open opens an archive previously written by w.
func (w *Writer) Open(p string) (*os.File, error) {
	if err := w.contains(p); err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Remove deletes an archive previously written by w. Missing files are not an error.
func (w *Writer) Remove(p string) error {
	if p == "" {
		return nil
	}
	if err := w.contains(p); err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove archive: %w", err)
	}
	return nil
}

func (w *Writer) contains(p string) error {
	abs, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("resolve archive path: %w", err)
	}
	if filepath.Dir(abs) != w.dir || !strings.HasPrefix(filepath.Base(abs), filePrefix) {
		return fmt.Errorf("%w: %s", ErrOutsideDir, p)
	}
	return nil
}
